// Package molecule parses PDBQT receptors and ligand libraries into the
// docking engine's model types and computes the physicochemical properties
// the pre-docking filters act on.
package molecule

import (
	"strings"

	"github.com/turtacn/MolDock-Screen/internal/docking"
)

// element is the chemical element of a parsed atom, reduced to the set the
// AutoDock type vocabulary can produce.
type element int8

const (
	elemHydrogen element = iota
	elemCarbon
	elemNitrogen
	elemOxygen
	elemSulfur
	elemPhosphorus
	elemFluorine
	elemChlorine
	elemBromine
	elemIodine
	elemMetal
	numElements = int(elemMetal) + 1
)

// atomicWeights holds the standard atomic weight per element in g/mol.
// Metals use the weight of zinc, the most common metal in binding sites;
// the filters use molecular weight as a coarse window, not an assay value.
var atomicWeights = [numElements]float64{
	1.008, 12.011, 14.007, 15.999, 32.06, 30.974,
	18.998, 35.45, 79.904, 126.904, 65.38,
}

// covalentRadii holds the single-bond covalent radius per element in Å,
// used to infer connectivity from interatomic distances.
var covalentRadii = [numElements]float64{
	0.37, 0.77, 0.75, 0.73, 1.02, 1.06,
	0.71, 0.99, 1.14, 1.33, 1.30,
}

// covalentTolerance widens the covalent-radius sum when testing for a bond,
// absorbing the coordinate noise of minimised structures.
const covalentTolerance = 1.1

// covalentBond reports whether two atoms of elements a and b separated by
// distSq (Å²) are covalently bonded.
func covalentBond(a, b element, distSq float64) bool {
	d := covalentTolerance * (covalentRadii[a] + covalentRadii[b])
	return distSq < d*d
}

// adType is one entry of the AutoDock atom-type vocabulary as it appears in
// columns 78-79 of a PDBQT ATOM record.
type adType struct {
	elem element

	// polarH marks the HD type: a hydrogen bonded to a donor heteroatom.
	polarH bool

	// donorizable marks N/NA/OA types whose XScore class is promoted to the
	// donor variant when a polar hydrogen is attached.
	donorizable bool

	// base is the XScore type before donorization and carbon-polarity
	// resolution. For carbon it is TypeCarbonH and may become TypeCarbonP.
	base docking.AtomType
}

// adTypes maps the AutoDock type token to its parse-time classification.
// Aromatic carbon (A) folds into the carbon classes; S and SA both map to
// sulfur since XScore does not split it. The common binding-site metals all
// map to the single metal class.
var adTypes = map[string]adType{
	"H":  {elem: elemHydrogen},
	"HS": {elem: elemHydrogen},
	"HD": {elem: elemHydrogen, polarH: true},

	"C": {elem: elemCarbon, base: docking.TypeCarbonH},
	"A": {elem: elemCarbon, base: docking.TypeCarbonH},

	"N":  {elem: elemNitrogen, base: docking.TypeNitrogenP, donorizable: true},
	"NS": {elem: elemNitrogen, base: docking.TypeNitrogenP, donorizable: true},
	"NA": {elem: elemNitrogen, base: docking.TypeNitrogenA, donorizable: true},

	"OA": {elem: elemOxygen, base: docking.TypeOxygenA, donorizable: true},
	"OS": {elem: elemOxygen, base: docking.TypeOxygenA, donorizable: true},

	"S":  {elem: elemSulfur, base: docking.TypeSulfur},
	"SA": {elem: elemSulfur, base: docking.TypeSulfur},
	"P":  {elem: elemPhosphorus, base: docking.TypePhosphorus},

	"F":  {elem: elemFluorine, base: docking.TypeFluorine},
	"CL": {elem: elemChlorine, base: docking.TypeChlorine},
	"BR": {elem: elemBromine, base: docking.TypeBromine},
	"I":  {elem: elemIodine, base: docking.TypeIodine},

	"MG": {elem: elemMetal, base: docking.TypeMetal},
	"CA": {elem: elemMetal, base: docking.TypeMetal},
	"MN": {elem: elemMetal, base: docking.TypeMetal},
	"FE": {elem: elemMetal, base: docking.TypeMetal},
	"ZN": {elem: elemMetal, base: docking.TypeMetal},
	"CU": {elem: elemMetal, base: docking.TypeMetal},
	"NI": {elem: elemMetal, base: docking.TypeMetal},
	"CO": {elem: elemMetal, base: docking.TypeMetal},
	"K":  {elem: elemMetal, base: docking.TypeMetal},
}

// lookupADType resolves a raw type token from a PDBQT record. Tokens are
// case-normalised because receptor preparation tools disagree on casing.
func lookupADType(token string) (adType, bool) {
	t, ok := adTypes[strings.ToUpper(strings.TrimSpace(token))]
	return t, ok
}

// donorize promotes an acceptor or apolar XScore type to its donor variant.
func donorize(t docking.AtomType) docking.AtomType {
	switch t {
	case docking.TypeNitrogenP:
		return docking.TypeNitrogenD
	case docking.TypeNitrogenA:
		return docking.TypeNitrogenDA
	case docking.TypeOxygenA:
		return docking.TypeOxygenDA
	}
	return t
}

// isHetero reports whether e is a heteroatom for carbon-polarity purposes:
// anything other than carbon and hydrogen.
func isHetero(e element) bool {
	return e != elemCarbon && e != elemHydrogen
}
