package docking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

func TestNewBox_RejectsBadArguments(t *testing.T) {
	_, err := NewBox(Vec3{}, Vec3{10, 10, 10}, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBoxInvalid))

	_, err = NewBox(Vec3{}, Vec3{10, -1, 10}, 0.5)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBoxInvalid))
}

func TestNewBox_ProbeCountsAtProductionSpacing(t *testing.T) {
	b, err := NewBox(Vec3{0, 0, 0}, Vec3{20, 20, 20}, 0.08)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 250, b.NumGrids[i])
		assert.Equal(t, 251, b.NumProbes[i])
	}
	assert.Equal(t, 251*251*251, b.NumProbesTotal())
}

func TestNewBox_SpanIsExpandedToGridMultiple(t *testing.T) {
	b, err := NewBox(Vec3{1, 2, 3}, Vec3{10.1, 10.1, 10.1}, 0.5)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		// 10.1 / 0.5 = 20.2 → 21 cells of 0.5 Å.
		assert.Equal(t, 21, b.NumGrids[i])
		assert.InDelta(t, 10.5, b.Span[i], 1e-12)
		assert.InDelta(t, b.Corner1[i]+b.Span[i], b.Corner2[i], 1e-12)
		assert.InDelta(t, b.Center[i], 0.5*(b.Corner1[i]+b.Corner2[i]), 1e-12)
	}
}

func TestBox_ContainsIsHalfOpen(t *testing.T) {
	b, err := NewBox(Vec3{0, 0, 0}, Vec3{10, 10, 10}, 0.5)
	require.NoError(t, err)

	assert.True(t, b.Contains(b.Corner1))
	assert.True(t, b.Contains(Vec3{0, 0, 0}))
	assert.False(t, b.Contains(b.Corner2))
	assert.False(t, b.Contains(Vec3{b.Corner2[0], 0, 0}))
	assert.False(t, b.Contains(Vec3{-5.001, 0, 0}))
}

func TestBox_GridIndexRoundTrip(t *testing.T) {
	b, err := NewBox(Vec3{1, -2, 3}, Vec3{10, 8, 6}, 0.5)
	require.NoError(t, err)

	cases := []Index3{{0, 0, 0}, {3, 7, 2}, {b.NumGrids[0] - 1, b.NumGrids[1] - 1, b.NumGrids[2] - 1}}
	for _, idx := range cases {
		// A point strictly inside cell idx must map back to idx.
		p := b.GridNodeCoordinate(idx).Add(Vec3{0.2, 0.2, 0.2}.Scale(b.Granularity))
		assert.Equal(t, idx, b.GridIndex(p))
	}
}

func TestSurfaceDistanceSquared(t *testing.T) {
	c1 := Vec3{0, 0, 0}
	c2 := Vec3{10, 10, 10}

	assert.Zero(t, SurfaceDistanceSquared(c1, c2, Vec3{5, 5, 5}))
	assert.Zero(t, SurfaceDistanceSquared(c1, c2, Vec3{0, 0, 0}))
	assert.InDelta(t, 4.0, SurfaceDistanceSquared(c1, c2, Vec3{-2, 5, 5}), 1e-12)
	assert.InDelta(t, 9.0, SurfaceDistanceSquared(c1, c2, Vec3{5, 5, 13}), 1e-12)
	// Corner: 3-axis overshoot adds in quadrature.
	assert.InDelta(t, 3.0, SurfaceDistanceSquared(c1, c2, Vec3{11, 11, 11}), 1e-12)
}

func TestBox_WithinCutoff(t *testing.T) {
	b, err := NewBox(Vec3{0, 0, 0}, Vec3{10, 10, 10}, 0.5)
	require.NoError(t, err)

	assert.True(t, b.WithinCutoff(Vec3{0, 0, 0}))
	assert.True(t, b.WithinCutoff(Vec3{5 + Cutoff - 0.01, 0, 0}))
	assert.False(t, b.WithinCutoff(Vec3{5 + Cutoff, 0, 0}))
}

func TestBox_PartitionIndexClampedAtCorner2(t *testing.T) {
	b, err := NewBox(Vec3{0, 0, 0}, Vec3{9, 9, 9}, 0.5)
	require.NoError(t, err)

	// The probe on the Corner2 boundary has no half-open cell of its own but
	// must still resolve to an in-range partition.
	idx := b.partitionIndexClamped(b.Corner2)
	for i := 0; i < 3; i++ {
		assert.Equal(t, b.NumPartitions[i]-1, idx[i])
	}
}

func TestBox_PartitionGeometryCoversSpan(t *testing.T) {
	b, err := NewBox(Vec3{0, 0, 0}, Vec3{10, 10, 10}, 0.5)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, b.Span[i], float64(b.NumPartitions[i])*b.PartitionSize[i], 1e-12)
		assert.LessOrEqual(t, b.PartitionSize[i], DefaultPartitionGranularity)
	}
}
