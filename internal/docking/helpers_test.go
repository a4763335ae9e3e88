package docking

import (
	"testing"
)

// newTestPool returns a small worker pool torn down with the test.
func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p := NewPool(4)
	t.Cleanup(p.Close)
	return p
}

// harmonicModel is a synthetic pairwise potential with a single well at
// r = r0 and depth 1, smooth everywhere. Tests inject it to get a landscape
// whose minimum is known in closed form.
type harmonicModel struct {
	r0 float64
}

func (m harmonicModel) Score(_, _ AtomType, r float64) float64 {
	d := r - m.r0
	return d*d - 1
}

// newHarmonicScoring precomputes tables over a harmonic well.
func newHarmonicScoring(t *testing.T, pool *Pool, r0 float64) *ScoringFunction {
	t.Helper()
	sf := NewScoringFunction(harmonicModel{r0: r0})
	if err := sf.Precompute(pool); err != nil {
		t.Fatalf("precompute: %v", err)
	}
	return sf
}

// singleAtomReceptor places one carbon at p.
func singleAtomReceptor(p Vec3) *Receptor {
	return &Receptor{Atoms: []Atom{{Serial: 1, Coord: p, Type: TypeCarbonH}}}
}

// rigidLigand builds a one-frame ligand from the given parse-time atom
// coordinates. All atoms are hydrophobic carbons.
func rigidLigand(name string, coords ...Vec3) *Ligand {
	lig := &Ligand{
		Name:   name,
		Frames: []Frame{{Parent: -1, RotorX: -1, RotorY: -1, ParseOrigin: coords[0]}},
	}
	for i, c := range coords {
		lig.Atoms = append(lig.Atoms, LigandAtom{Atom: Atom{Serial: i + 1, Coord: c, Type: TypeCarbonH}, Frame: 0})
	}
	return lig
}

// flexLigand builds a two-frame ligand with one rotatable bond:
//
//	atom 0 (root, origin) — atom 1 (branch origin) with atom 2 off-axis,
//
// so the torsion actually moves mass. The 0–2 pair is scored.
func flexLigand(name string) *Ligand {
	a0 := Vec3{0, 0, 0}
	a1 := Vec3{1.5, 0, 0}
	a2 := Vec3{2.2, 1.0, 0}
	return &Ligand{
		Name: name,
		Atoms: []LigandAtom{
			{Atom: Atom{Serial: 1, Coord: a0, Type: TypeCarbonH}, Frame: 0},
			{Atom: Atom{Serial: 2, Coord: a1, Type: TypeCarbonH}, Frame: 1},
			{Atom: Atom{Serial: 3, Coord: a2, Type: TypeCarbonH}, Frame: 1},
		},
		Frames: []Frame{
			{Parent: -1, RotorX: -1, RotorY: -1, ParseOrigin: a0},
			{Parent: 0, RotorX: 0, RotorY: 1, ParseOrigin: a1, LocalAxis: a1.Sub(a0).Normalized()},
		},
		Pairs: []InteractionPair{{I: 0, J: 2}},
	}
}

// dockScene is the shared read-only state of a small docking problem: a box
// around the origin, a harmonic scoring function, a single receptor atom at
// the center, and populated grid maps.
type dockScene struct {
	box  *Box
	sf   *ScoringFunction
	gm   *GridMapBuilder
	pool *Pool
}

func newDockScene(t *testing.T, granularity float64) *dockScene {
	t.Helper()
	pool := newTestPool(t)
	box, err := NewBox(Vec3{0, 0, 0}, Vec3{12, 12, 12}, granularity)
	if err != nil {
		t.Fatalf("box: %v", err)
	}
	sf := newHarmonicScoring(t, pool, 2.0)
	gm := NewGridMapBuilder(box, sf, singleAtomReceptor(Vec3{0, 0, 0}), 0)
	if err := gm.Ensure([]AtomType{TypeCarbonH}, pool); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	return &dockScene{box: box, sf: sf, gm: gm, pool: pool}
}
