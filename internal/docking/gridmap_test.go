package docking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

func TestGridMapBuilder_LazyPopulation(t *testing.T) {
	scene := newDockScene(t, 0.5)

	assert.Nil(t, scene.gm.Map(TypeOxygenA), "unrequested type must stay unallocated")
	assert.Equal(t, 0, scene.gm.PopulateCount(TypeOxygenA))
	require.NotNil(t, scene.gm.Map(TypeCarbonH))
	assert.Equal(t, 1, scene.gm.PopulateCount(TypeCarbonH))
}

func TestGridMapBuilder_EnsureIsMemoized(t *testing.T) {
	scene := newDockScene(t, 0.5)

	before := scene.gm.Map(TypeCarbonH)
	snapshot := append([]float64(nil), before.values...)

	// Re-requesting an existing map must neither recompute nor reallocate.
	require.NoError(t, scene.gm.Ensure([]AtomType{TypeCarbonH}, scene.pool))
	require.NoError(t, scene.gm.Ensure([]AtomType{TypeCarbonH, TypeCarbonH}, scene.pool))

	after := scene.gm.Map(TypeCarbonH)
	assert.Same(t, before, after)
	assert.Equal(t, 1, scene.gm.PopulateCount(TypeCarbonH))
	assert.Equal(t, snapshot, after.values, "map values must be bit-identical across Ensure calls")
}

func TestGridMapBuilder_EnsureAddsMissingTypesOnly(t *testing.T) {
	scene := newDockScene(t, 0.5)

	require.NoError(t, scene.gm.Ensure([]AtomType{TypeCarbonH, TypeOxygenA}, scene.pool))
	assert.Equal(t, 1, scene.gm.PopulateCount(TypeCarbonH))
	assert.Equal(t, 1, scene.gm.PopulateCount(TypeOxygenA))
	assert.NotNil(t, scene.gm.Map(TypeOxygenA))
}

func TestGridMapBuilder_NodeValueMatchesDirectSum(t *testing.T) {
	scene := newDockScene(t, 0.5)

	rec := singleAtomReceptor(Vec3{0, 0, 0})
	m := scene.gm.Map(TypeCarbonH)

	// Every probe's stored energy equals the scoring function evaluated
	// directly against the receptor atoms within cutoff.
	for _, idx := range []Index3{{0, 0, 0}, {12, 12, 12}, {5, 0, 19}, {24, 24, 24}} {
		probe := scene.box.GridNodeCoordinate(idx)
		var want float64
		for _, a := range rec.Atoms {
			r2 := a.Coord.DistanceSquared(probe)
			if r2 >= CutoffSquared {
				continue
			}
			e, _ := scene.sf.Evaluate(a.Type, TypeCarbonH, r2)
			want += e
		}
		assert.InDelta(t, want, m.At(scene.box, idx), 1e-12, "node %v", idx)
	}
}

func TestGridMap_InterpolateAtNodesAndBetween(t *testing.T) {
	scene := newDockScene(t, 0.5)
	m := scene.gm.Map(TypeCarbonH)

	// Exactly on a node, interpolation reproduces the stored value.
	idx := Index3{10, 11, 12}
	e, _ := m.Interpolate(scene.box, scene.box.GridNodeCoordinate(idx))
	assert.InDelta(t, m.At(scene.box, idx), e, 1e-12)

	// Between nodes, the value is bounded by the cell's corner extremes.
	p := scene.box.GridNodeCoordinate(idx).Add(Vec3{0.2, 0.3, 0.4}.Scale(scene.box.Granularity))
	e, _ = m.Interpolate(scene.box, p)
	lo, hi := m.At(scene.box, idx), m.At(scene.box, idx)
	for dx := 0; dx < 2; dx++ {
		for dy := 0; dy < 2; dy++ {
			for dz := 0; dz < 2; dz++ {
				v := m.At(scene.box, Index3{idx[0] + dx, idx[1] + dy, idx[2] + dz})
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
		}
	}
	assert.GreaterOrEqual(t, e, lo)
	assert.LessOrEqual(t, e, hi)
}

func TestGridMap_InterpolateGradientMatchesFiniteDifference(t *testing.T) {
	scene := newDockScene(t, 0.5)
	m := scene.gm.Map(TypeCarbonH)

	// The analytic gradient is exact for the trilinear polynomial, so a
	// central difference well inside one cell must agree tightly.
	p := Vec3{1.13, -0.87, 2.21}
	_, grad := m.Interpolate(scene.box, p)

	const eps = 1e-6
	for k := 0; k < 3; k++ {
		hi, lo := p, p
		hi[k] += eps
		lo[k] -= eps
		eHi, _ := m.Interpolate(scene.box, hi)
		eLo, _ := m.Interpolate(scene.box, lo)
		assert.InDelta(t, (eHi-eLo)/(2*eps), grad[k], 1e-5, "axis %d", k)
	}
}

func TestGridMapBuilder_AllocationGuard(t *testing.T) {
	pool := newTestPool(t)
	box, err := NewBox(Vec3{0, 0, 0}, Vec3{12, 12, 12}, 0.5)
	require.NoError(t, err)
	sf := newHarmonicScoring(t, pool, 2.0)

	// Budget admits exactly one map.
	gm := NewGridMapBuilder(box, sf, singleAtomReceptor(Vec3{0, 0, 0}), box.NumProbesTotal())
	require.NoError(t, gm.Ensure([]AtomType{TypeCarbonH}, pool))

	err = gm.Ensure([]AtomType{TypeOxygenA}, pool)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeGridAlloc))
	assert.Nil(t, gm.Map(TypeOxygenA), "a rejected request must not allocate")

	// The already-populated map keeps working.
	require.NoError(t, gm.Ensure([]AtomType{TypeCarbonH}, pool))
}
