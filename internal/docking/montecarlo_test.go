package docking

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomConformation_StaysInBox(t *testing.T) {
	scene := newDockScene(t, 0.5)
	lig := flexLigand("flex")
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		c := randomConformation(rng, scene.box, lig)
		assert.True(t, scene.box.Contains(c.Position))
		require.Len(t, c.Torsions, 1)
		assert.LessOrEqual(t, math.Abs(c.Torsions[0]), math.Pi)
		assert.InDelta(t, 1, quatNorm(c.Orientation), 1e-9)
	}
}

func TestPerturb_BoundedStep(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := &Conformation{
		Position:    Vec3{1, 2, 3},
		Orientation: IdentityQuaternion,
		Torsions:    []float64{0.5},
	}

	const mag = 2.0
	for i := 0; i < 100; i++ {
		out := perturb(rng, base, mag)
		for k := 0; k < 3; k++ {
			assert.LessOrEqual(t, math.Abs(out.Position[k]-base.Position[k]), mag)
		}
		assert.LessOrEqual(t, math.Abs(out.Torsions[0]-base.Torsions[0]), mag*0.5)
		assert.InDelta(t, 1, quatNorm(out.Orientation), 1e-9)
		// The input must never be mutated.
		assert.Equal(t, Vec3{1, 2, 3}, base.Position)
		assert.Equal(t, 0.5, base.Torsions[0])
	}
}

func TestRunMonteCarloTask_DeterministicPerSeed(t *testing.T) {
	scene := newDockScene(t, 0.25)
	ref := NewRefiner(scene.box, scene.gm, scene.sf, 50, 0)
	lig := flexLigand("flex")
	params := MonteCarloParams{Iterations: 10, MaxResultsPerTask: 5}.withDefaults()

	r1 := runMonteCarloTask(42, lig, ref, scene.box, params)
	r2 := runMonteCarloTask(42, lig, ref, scene.box, params)

	require.Equal(t, r1.Len(), r2.Len())
	for i := range r1.Results() {
		assert.Equal(t, r1.Results()[i].Energy, r2.Results()[i].Energy)
		assert.Equal(t, r1.Results()[i].Coords, r2.Results()[i].Coords)
	}
}

func TestRunMonteCarloTask_DifferentSeedsDiverge(t *testing.T) {
	scene := newDockScene(t, 0.25)
	ref := NewRefiner(scene.box, scene.gm, scene.sf, 50, 0)
	lig := flexLigand("flex")
	params := MonteCarloParams{Iterations: 10, MaxResultsPerTask: 5}.withDefaults()

	r1 := runMonteCarloTask(1, lig, ref, scene.box, params)
	r2 := runMonteCarloTask(2, lig, ref, scene.box, params)

	require.Greater(t, r1.Len(), 0)
	require.Greater(t, r2.Len(), 0)
	assert.NotEqual(t, r1.Best().Energy, r2.Best().Energy)
}

func TestRunMonteCarloTask_RespectsResultCap(t *testing.T) {
	scene := newDockScene(t, 0.25)
	ref := NewRefiner(scene.box, scene.gm, scene.sf, 30, 0)
	lig := flexLigand("flex")
	params := MonteCarloParams{Iterations: 60, MaxResultsPerTask: 3}.withDefaults()

	rc := runMonteCarloTask(5, lig, ref, scene.box, params)
	assert.LessOrEqual(t, rc.Len(), 3)
}

func TestMonteCarloParams_Defaults(t *testing.T) {
	p := MonteCarloParams{}.withDefaults()
	assert.Equal(t, 32, p.NumTasks)
	assert.Equal(t, 1.2, p.Temperature)
	assert.Equal(t, 2.0, p.Perturbation)
	assert.Equal(t, 20, p.MaxResultsPerTask)
}
