package molecule

import (
	"github.com/turtacn/MolDock-Screen/internal/config"
)

// Properties are the ligand descriptors the pre-docking filters act on.
// MolWeight includes hydrogens; the atom counts cover heavy atoms only.
// NetCharge is the rounded sum of the atomic partial charges. LogP and TPSA
// cannot be derived from a PDBQT block alone; they are read from REMARK
// annotations when the preparation tool wrote them, with HasLogP/HasTPSA
// reporting whether a value was present.
type Properties struct {
	MolWeight      float64
	HeavyAtoms     int
	RotatableBonds int
	HBondDonors    int
	HBondAcceptors int
	NetCharge      int
	LogP           float64
	TPSA           float64
	HasLogP        bool
	HasTPSA        bool
}

// Filter screens ligands against the configured property windows before any
// docking work is spent on them. Zero-valued upper bounds disable the
// corresponding window so a partially filled config stays permissive; the
// signed windows (logp, tpsa, charge) are disabled while both bounds are
// zero.
type Filter struct {
	cfg config.FilterConfig
}

// NewFilter builds a Filter from the configured property windows.
func NewFilter(cfg config.FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Check reports whether p passes every configured window. When it does not,
// reason names the first violated filter using the metric labels the
// monitoring layer aggregates on.
func (f *Filter) Check(p Properties) (ok bool, reason string) {
	c := f.cfg
	if c.MaxMolecularWeight > 0 && (p.MolWeight < c.MinMolecularWeight || p.MolWeight > c.MaxMolecularWeight) {
		return false, "molecular_weight"
	}
	if c.MaxHeavyAtoms > 0 && (p.HeavyAtoms < c.MinHeavyAtoms || p.HeavyAtoms > c.MaxHeavyAtoms) {
		return false, "heavy_atoms"
	}
	if c.MaxRotatableBonds > 0 && p.RotatableBonds > c.MaxRotatableBonds {
		return false, "rotatable_bonds"
	}
	if c.MaxHBondDonors > 0 && p.HBondDonors > c.MaxHBondDonors {
		return false, "hbond_donors"
	}
	if c.MaxHBondAcceptors > 0 && p.HBondAcceptors > c.MaxHBondAcceptors {
		return false, "hbond_acceptors"
	}
	// LogP and TPSA windows apply only to ligands that carry the
	// annotation; an unannotated library is not rejected wholesale.
	if (c.MinLogP != 0 || c.MaxLogP != 0) && p.HasLogP && (p.LogP < c.MinLogP || p.LogP > c.MaxLogP) {
		return false, "logp"
	}
	if (c.MinTPSA != 0 || c.MaxTPSA != 0) && p.HasTPSA && (p.TPSA < c.MinTPSA || p.TPSA > c.MaxTPSA) {
		return false, "tpsa"
	}
	if (c.MinCharge != 0 || c.MaxCharge != 0) && (p.NetCharge < c.MinCharge || p.NetCharge > c.MaxCharge) {
		return false, "net_charge"
	}
	return true, ""
}
