package molecule

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/MolDock-Screen/internal/docking"
	apperrors "github.com/turtacn/MolDock-Screen/pkg/errors"
)

// atomLine renders a PDBQT ATOM record with the AutoDock type in its fixed
// columns (78-79).
func atomLine(serial int, name string, x, y, z float64, adType string) string {
	return fmt.Sprintf("ATOM  %5d %-4s LIG A   1    %8.3f%8.3f%8.3f  1.00  0.00    0.000  %-2s",
		serial, name, x, y, z, adType)
}

// aminoAlcohol is an ethanolamine-like test ligand: a root with a donor
// nitrogen, one rotatable carbon branch, and a hydroxyl sub-branch whose
// torsion moves no heavy atom off its axis.
func aminoAlcohol() string {
	return strings.Join([]string{
		"REMARK  Name = TEST-001",
		"ROOT",
		atomLine(1, "C1", 0, 0, 0, "C"),
		atomLine(2, "N1", 1.4, 0, 0, "N"),
		atomLine(3, "H1", 1.9, 0.8, 0, "HD"),
		"ENDROOT",
		"BRANCH   1   4",
		atomLine(4, "C2", -1.5, 0, 0, "C"),
		atomLine(7, "C3", -2.2, 1.2, 0, "A"),
		"BRANCH   4   5",
		atomLine(5, "O1", -1.9, -1.3, 0, "OA"),
		atomLine(6, "H2", -1.5, -2.0, 0, "HD"),
		"ENDBRANCH   4   5",
		"ENDBRANCH   1   4",
		"TORSDOF 2",
	}, "\n")
}

func TestParseLigand_BuildsTorsionTree(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(aminoAlcohol()), "TEST-001")
	require.NoError(t, err)
	m := lig.Model

	assert.Equal(t, "TEST-001", m.Name)
	assert.Equal(t, 5, m.NumHeavyAtoms())
	// The hydroxyl branch collapses: its only heavy atom sits on the axis.
	assert.Equal(t, 1, m.NumTorsions())
	assert.Equal(t, 1, m.InactiveTorsions)

	require.Len(t, m.Frames, 2)
	assert.Equal(t, -1, m.Frames[0].Parent)
	assert.Equal(t, 0, m.Frames[1].Parent)
}

func TestParseLigand_FrameGeometry(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(aminoAlcohol()), "TEST-001")
	require.NoError(t, err)
	m := lig.Model

	f := m.Frames[1]
	// RotorX is C1 (serial 1), RotorY is C2 (serial 4).
	assert.Equal(t, 1, m.Atoms[f.RotorX].Serial)
	assert.Equal(t, 4, m.Atoms[f.RotorY].Serial)
	assert.Equal(t, docking.Vec3{-1.5, 0, 0}, f.ParseOrigin)
	// Axis points from C1 toward C2.
	assert.InDelta(t, -1.0, f.LocalAxis[0], 1e-12)
	assert.InDelta(t, 0.0, f.LocalAxis[1], 1e-12)
}

func TestParseLigand_AtomTyping(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(aminoAlcohol()), "TEST-001")
	require.NoError(t, err)

	types := map[int]docking.AtomType{}
	for _, a := range lig.Model.Atoms {
		types[a.Serial] = a.Type
	}
	// C1 bonds the nitrogen, C2 bonds the hydroxyl oxygen: both polar.
	assert.Equal(t, docking.TypeCarbonP, types[1])
	assert.Equal(t, docking.TypeCarbonP, types[4])
	// C3 has only carbon neighbours.
	assert.Equal(t, docking.TypeCarbonH, types[7])
	// N carries a polar hydrogen; OA carries one too.
	assert.Equal(t, docking.TypeNitrogenD, types[2])
	assert.Equal(t, docking.TypeOxygenDA, types[5])
}

func TestParseLigand_Properties(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(aminoAlcohol()), "TEST-001")
	require.NoError(t, err)
	p := lig.Props

	assert.InDelta(t, 3*12.011+14.007+15.999+2*1.008, p.MolWeight, 1e-9)
	assert.Equal(t, 5, p.HeavyAtoms)
	// Active torsion plus the collapsed hydroxyl.
	assert.Equal(t, 2, p.RotatableBonds)
	assert.Equal(t, 2, p.HBondDonors)   // N_D and O_DA
	assert.Equal(t, 1, p.HBondAcceptors) // O_DA
}

// chargedAtomLine is atomLine with an explicit partial charge in columns
// 71-76.
func chargedAtomLine(serial int, name string, x, y, z, q float64, adType string) string {
	return fmt.Sprintf("ATOM  %5d %-4s LIG A   1    %8.3f%8.3f%8.3f  1.00  0.00    %6.3f %-2s",
		serial, name, x, y, z, q, adType)
}

func TestParseLigand_NetChargeFromPartialCharges(t *testing.T) {
	block := strings.Join([]string{
		"ROOT",
		chargedAtomLine(1, "C1", 0, 0, 0, 0.120, "C"),
		chargedAtomLine(2, "N1", 1.4, 0, 0, -0.350, "N"),
		chargedAtomLine(3, "O1", -1.3, 0, 0, -0.820, "OA"),
		"ENDROOT",
		"TORSDOF 0",
	}, "\n")

	lig, err := ParseLigand(strings.NewReader(block), "anion")
	require.NoError(t, err)
	// Sum is -1.05, rounded to the nearest formal charge.
	assert.Equal(t, -1, lig.Props.NetCharge)
}

func TestParseLigand_DescriptorRemarks(t *testing.T) {
	block := strings.Join([]string{
		"REMARK  Name = TEST-002",
		"REMARK  LogP = 2.70",
		"REMARK  TPSA = 63.4",
		"ROOT",
		atomLine(1, "C1", 0, 0, 0, "C"),
		atomLine(2, "N1", 1.4, 0, 0, "N"),
		"ENDROOT",
		"TORSDOF 0",
	}, "\n")

	lig, err := ParseLigand(strings.NewReader(block), "TEST-002")
	require.NoError(t, err)

	assert.True(t, lig.Props.HasLogP)
	assert.InDelta(t, 2.7, lig.Props.LogP, 1e-12)
	assert.True(t, lig.Props.HasTPSA)
	assert.InDelta(t, 63.4, lig.Props.TPSA, 1e-12)
}

func TestParseLigand_MissingDescriptorRemarks(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(aminoAlcohol()), "TEST-001")
	require.NoError(t, err)

	assert.False(t, lig.Props.HasLogP)
	assert.False(t, lig.Props.HasTPSA)
	// The fixture writes explicit zero partial charges.
	assert.Zero(t, lig.Props.NetCharge)
}

func TestParseLigand_AdjacentFramesHaveNoPairs(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(aminoAlcohol()), "TEST-001")
	require.NoError(t, err)
	// Only two frames remain and they are parent-child.
	assert.Empty(t, lig.Model.Pairs)
}

// chain builds a three-frame ligand: root — frame1 — frame2, where frame1
// owns a single heavy atom but keeps its torsion because frame2 hangs off it.
func chain() string {
	return strings.Join([]string{
		"ROOT",
		atomLine(1, "C1", 0, 0, 0, "C"),
		"ENDROOT",
		"BRANCH   1   2",
		atomLine(2, "C2", 1.5, 0, 0, "C"),
		"BRANCH   2   3",
		atomLine(3, "C3", 3.0, 0, 0, "C"),
		atomLine(4, "C4", 3.7, 1.2, 0, "C"),
		"ENDBRANCH   2   3",
		"ENDBRANCH   1   2",
		"TORSDOF 2",
	}, "\n")
}

func TestParseLigand_InteriorSingleAtomFrameSurvives(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(chain()), "chain")
	require.NoError(t, err)
	m := lig.Model

	assert.Equal(t, 2, m.NumTorsions())
	assert.Equal(t, 0, m.InactiveTorsions)
	assert.Equal(t, 4, m.NumHeavyAtoms())
}

func TestParseLigand_PairsSkipAdjacentFrames(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(chain()), "chain")
	require.NoError(t, err)
	m := lig.Model

	// Root and frame2 are two torsions apart: C1 pairs with C3 and C4.
	require.Len(t, m.Pairs, 2)
	for _, pr := range m.Pairs {
		assert.Equal(t, 1, m.Atoms[pr.I].Serial)
		assert.Contains(t, []int{3, 4}, m.Atoms[pr.J].Serial)
	}
}

func TestParseLigand_AllCarbonsHydrophobic(t *testing.T) {
	lig, err := ParseLigand(strings.NewReader(chain()), "chain")
	require.NoError(t, err)
	for _, a := range lig.Model.Atoms {
		assert.Equal(t, docking.TypeCarbonH, a.Type)
	}
}

func TestParseLigand_UnsupportedAtomType(t *testing.T) {
	src := strings.Join([]string{
		"ROOT",
		atomLine(1, "X1", 0, 0, 0, "XX"),
		"ENDROOT",
		"TORSDOF 0",
	}, "\n")
	_, err := ParseLigand(strings.NewReader(src), "bad")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMoleculeUnsupportedAtom))
}

func TestParseLigand_NoHeavyAtoms(t *testing.T) {
	src := strings.Join([]string{
		"ROOT",
		atomLine(1, "H1", 0, 0, 0, "HD"),
		"ENDROOT",
		"TORSDOF 0",
	}, "\n")
	_, err := ParseLigand(strings.NewReader(src), "hydrogens")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMoleculeNoHeavyAtoms))
}

func TestParseLigand_UnclosedBranch(t *testing.T) {
	src := strings.Join([]string{
		"ROOT",
		atomLine(1, "C1", 0, 0, 0, "C"),
		"ENDROOT",
		"BRANCH   1   2",
		atomLine(2, "C2", 1.5, 0, 0, "C"),
		"TORSDOF 1",
	}, "\n")
	_, err := ParseLigand(strings.NewReader(src), "unclosed")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMoleculeParseFailed))
}

func TestParseLigand_TruncatedAtomRecord(t *testing.T) {
	src := strings.Join([]string{
		"ROOT",
		"ATOM      1  C1  LIG A   1",
		"ENDROOT",
	}, "\n")
	_, err := ParseLigand(strings.NewReader(src), "short")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMoleculeParseFailed))
}

func TestParseLigand_DuplicateRoot(t *testing.T) {
	src := strings.Join([]string{
		"ROOT",
		atomLine(1, "C1", 0, 0, 0, "C"),
		"ENDROOT",
		"ROOT",
		"ENDROOT",
	}, "\n")
	_, err := ParseLigand(strings.NewReader(src), "tworoots")
	require.Error(t, err)
}

func TestParseReceptor_TypesAndMetals(t *testing.T) {
	src := strings.Join([]string{
		atomLine(1, "CA", 0, 0, 0, "C"),
		atomLine(2, "N", 1.4, 0, 0, "N"),
		atomLine(3, "H", 1.9, 0.8, 0, "HD"),
		atomLine(4, "O", 10, 10, 10, "OA"),
		"HETATM" + atomLine(5, "ZN", 20, 20, 20, "ZN")[6:],
		"TER",
	}, "\n")
	rec, err := ParseReceptor(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rec.Atoms, 4)

	assert.Equal(t, docking.TypeCarbonP, rec.Atoms[0].Type)   // bonded to N
	assert.Equal(t, docking.TypeNitrogenD, rec.Atoms[1].Type) // polar H attached
	assert.Equal(t, docking.TypeOxygenA, rec.Atoms[2].Type)   // isolated, no donorization
	assert.Equal(t, docking.TypeMetal, rec.Atoms[3].Type)
}

func TestParseReceptor_Empty(t *testing.T) {
	_, err := ParseReceptor(strings.NewReader("TER\nEND\n"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeReceptorParse))
}
