package docking

// AtomType is the XScore-style classification of a heavy atom, used to index
// the scoring-function tables and the grid-map arena. The set is finite and
// known at compile time.
type AtomType int8

const (
	TypeCarbonH   AtomType = iota // hydrophobic carbon, only C/H neighbours
	TypeCarbonP                   // polar carbon, bonded to a heteroatom
	TypeNitrogenP                 // nitrogen, neither donor nor acceptor
	TypeNitrogenD                 // nitrogen hydrogen-bond donor
	TypeNitrogenA                 // nitrogen hydrogen-bond acceptor
	TypeNitrogenDA                // nitrogen donor and acceptor
	TypeOxygenA                   // oxygen acceptor
	TypeOxygenDA                  // oxygen donor and acceptor
	TypeSulfur
	TypePhosphorus
	TypeFluorine
	TypeChlorine
	TypeBromine
	TypeIodine
	TypeMetal

	// NumAtomTypes is the size of the AtomType enumeration.
	NumAtomTypes = int(TypeMetal) + 1
)

var atomTypeNames = [NumAtomTypes]string{
	"C_H", "C_P", "N_P", "N_D", "N_A", "N_DA", "O_A", "O_DA",
	"S_P", "P_P", "F_H", "Cl_H", "Br_H", "I_H", "Met_D",
}

func (t AtomType) String() string {
	if t < 0 || int(t) >= NumAtomTypes {
		return "invalid"
	}
	return atomTypeNames[t]
}

// IsValid reports whether t is a member of the enumeration.
func (t AtomType) IsValid() bool {
	return t >= 0 && int(t) < NumAtomTypes
}

// vdwRadii holds the XScore van der Waals radius per atom type, in Ångström.
var vdwRadii = [NumAtomTypes]float64{
	1.9, 1.9, // C_H, C_P
	1.8, 1.8, 1.8, 1.8, // N_*
	1.7, 1.7, // O_*
	2.0, 2.1, // S, P
	1.5, 1.8, 2.0, 2.2, // F, Cl, Br, I
	1.2, // Met
}

// VdwRadius returns the van der Waals radius of t in Ångström.
func (t AtomType) VdwRadius() float64 {
	return vdwRadii[t]
}

// Hydrophobic reports whether t participates in the hydrophobic term.
func (t AtomType) Hydrophobic() bool {
	switch t {
	case TypeCarbonH, TypeFluorine, TypeChlorine, TypeBromine, TypeIodine:
		return true
	}
	return false
}

// Donor reports whether t can donate a hydrogen bond.
func (t AtomType) Donor() bool {
	switch t {
	case TypeNitrogenD, TypeNitrogenDA, TypeOxygenDA, TypeMetal:
		return true
	}
	return false
}

// Acceptor reports whether t can accept a hydrogen bond.
func (t AtomType) Acceptor() bool {
	switch t {
	case TypeNitrogenA, TypeNitrogenDA, TypeOxygenA, TypeOxygenDA:
		return true
	}
	return false
}

// hbonding reports whether atoms of types t and u can form a hydrogen bond.
func hbonding(t, u AtomType) bool {
	return (t.Donor() && u.Acceptor()) || (t.Acceptor() && u.Donor())
}

// Atom is one heavy atom of a receptor or ligand: a coordinate and an atom
// type, immutable after parsing. Serial carries the source file serial for
// diagnostics only.
type Atom struct {
	Serial int
	Coord  Vec3
	Type   AtomType
}

// Receptor is the rigid protein: an ordered list of heavy atoms with no
// further structure assumed.
type Receptor struct {
	Atoms []Atom
}
