package docking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefine_SingleAtomFindsHarmonicWell(t *testing.T) {
	scene := newDockScene(t, 0.125)
	ref := NewRefiner(scene.box, scene.gm, scene.sf, 0, 0)

	// One atom in a harmonic well centered 2 Å from the receptor atom at the
	// origin: the minimum energy is -1 anywhere on that sphere. The descent
	// stalls within roughly one grid cell of the well floor.
	lig := rigidLigand("probe", Vec3{0, 0, 0})
	w := NewWorkspace(lig)

	start := &Conformation{Position: Vec3{3.1, 0.4, -0.2}, Orientation: IdentityQuaternion, Torsions: []float64{}}
	res, ok := ref.Refine(w, start)
	require.True(t, ok)

	assert.InDelta(t, -1.0, res.Energy, 0.05)
	assert.InDelta(t, 2.0, res.Conf.Position.Norm(), 0.2)
}

func TestRefine_NeverIncreasesEnergy(t *testing.T) {
	scene := newDockScene(t, 0.25)
	ref := NewRefiner(scene.box, scene.gm, scene.sf, 0, 0)

	lig := rigidLigand("probe", Vec3{0, 0, 0})
	w := NewWorkspace(lig)

	starts := []Vec3{{3.1, 0.4, -0.2}, {0.9, 0.9, 0.9}, {-4.2, 1.1, 0.3}, {5.0, -5.0, 2.0}}
	for _, p := range starts {
		start := &Conformation{Position: p, Orientation: IdentityQuaternion, Torsions: []float64{}}
		e0, _, okEval := w.Evaluate(start, scene.box, scene.gm, scene.sf, nil)
		require.True(t, okEval)

		res, ok := ref.Refine(w, start)
		require.True(t, ok)
		assert.LessOrEqual(t, res.Energy, e0, "start %v", p)
	}
}

func TestRefine_IsDeterministic(t *testing.T) {
	scene := newDockScene(t, 0.25)
	ref := NewRefiner(scene.box, scene.gm, scene.sf, 0, 0)

	lig := flexLigand("flex")
	start := &Conformation{
		Position:    Vec3{1.3, -0.8, 0.5},
		Orientation: QuaternionFromAxisAngle(Vec3{0, 1, 0}, 0.6),
		Torsions:    []float64{0.2},
	}

	w1 := NewWorkspace(lig)
	r1, ok1 := ref.Refine(w1, start)
	require.True(t, ok1)

	w2 := NewWorkspace(lig)
	r2, ok2 := ref.Refine(w2, start)
	require.True(t, ok2)

	assert.Equal(t, r1.Energy, r2.Energy)
	assert.Equal(t, r1.InterEnergy, r2.InterEnergy)
	assert.Equal(t, r1.Iterations, r2.Iterations)
	assert.Equal(t, r1.Conf.Position, r2.Conf.Position)
	assert.Equal(t, r1.Conf.Torsions, r2.Conf.Torsions)
}

func TestRefine_DoesNotMutateStart(t *testing.T) {
	scene := newDockScene(t, 0.25)
	ref := NewRefiner(scene.box, scene.gm, scene.sf, 0, 0)

	lig := rigidLigand("probe", Vec3{0, 0, 0})
	w := NewWorkspace(lig)

	start := &Conformation{Position: Vec3{3.1, 0.4, -0.2}, Orientation: IdentityQuaternion, Torsions: []float64{}}
	snapshot := start.Clone()

	_, ok := ref.Refine(w, start)
	require.True(t, ok)
	assert.Equal(t, snapshot.Position, start.Position)
	assert.Equal(t, snapshot.Orientation, start.Orientation)
}

func TestRefine_RejectsNonFiniteStart(t *testing.T) {
	scene := newDockScene(t, 0.25)
	ref := NewRefiner(scene.box, scene.gm, scene.sf, 0, 0)

	lig := rigidLigand("broken", Vec3{0, 0, 0})
	w := NewWorkspace(lig)

	start := &Conformation{
		Position:    Vec3{math.NaN(), 0, 0},
		Orientation: IdentityQuaternion,
		Torsions:    []float64{},
	}
	_, ok := ref.Refine(w, start)
	assert.False(t, ok)
}
