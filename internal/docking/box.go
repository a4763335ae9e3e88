package docking

import (
	"math"

	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

// DefaultPartitionGranularity is the edge length of the coarse partition
// cells used to bound receptor-atom lookups during grid-map population.
const DefaultPartitionGranularity = 3.0

// Box is the cubic search space for ligand poses. The requested span is
// expanded to the nearest multiple of the grid granularity so an integer
// number of grid cells covers it exactly; Corner2 = Corner1 + Span always
// holds. Membership is half-open: a point exactly at Corner2 is outside.
type Box struct {
	Center  Vec3
	Span    Vec3
	Corner1 Vec3
	Corner2 Vec3

	Granularity    float64 // edge length of one grid cell
	GranularityInv float64

	NumGrids  Index3 // grid cells per axis
	NumProbes Index3 // grid nodes per axis, NumGrids + 1

	NumPartitions    Index3 // coarse cells per axis
	PartitionSize    Vec3
	PartitionSizeInv Vec3
}

// NewBox builds a search box centered at center with the requested size and
// grid granularity. Granularity and all size components must be positive.
func NewBox(center, size Vec3, granularity float64) (*Box, error) {
	if granularity <= 0 {
		return nil, errors.New(errors.ErrCodeBoxInvalid, "grid granularity must be positive")
	}
	b := &Box{
		Center:         center,
		Granularity:    granularity,
		GranularityInv: 1 / granularity,
	}
	for i := 0; i < 3; i++ {
		if size[i] <= 0 {
			return nil, errors.New(errors.ErrCodeBoxInvalid, "box size must be positive on every axis")
		}
		b.NumGrids[i] = int(math.Ceil(size[i] * b.GranularityInv))
		b.NumProbes[i] = b.NumGrids[i] + 1
		b.Span[i] = float64(b.NumGrids[i]) * granularity
		b.Corner1[i] = center[i] - 0.5*b.Span[i]
		b.Corner2[i] = b.Corner1[i] + b.Span[i]

		b.NumPartitions[i] = int(math.Ceil(b.Span[i] / DefaultPartitionGranularity))
		b.PartitionSize[i] = b.Span[i] / float64(b.NumPartitions[i])
		b.PartitionSizeInv[i] = 1 / b.PartitionSize[i]
	}
	return b, nil
}

// Contains reports whether p lies inside the half-open box [Corner1, Corner2).
func (b *Box) Contains(p Vec3) bool {
	return b.Corner1[0] <= p[0] && p[0] < b.Corner2[0] &&
		b.Corner1[1] <= p[1] && p[1] < b.Corner2[1] &&
		b.Corner1[2] <= p[2] && p[2] < b.Corner2[2]
}

// SurfaceDistanceSquared returns the squared distance from p to the surface
// of the axis-aligned box bounded by corner1 and corner2. Points inside the
// box are at distance zero.
func SurfaceDistanceSquared(corner1, corner2, p Vec3) float64 {
	var d2 float64
	for i := 0; i < 3; i++ {
		if p[i] < corner1[i] {
			d := corner1[i] - p[i]
			d2 += d * d
		} else if p[i] > corner2[i] {
			d := p[i] - corner2[i]
			d2 += d * d
		}
	}
	return d2
}

// SurfaceDistanceSquared is the convenience overload for the box's own corners.
func (b *Box) SurfaceDistanceSquared(p Vec3) float64 {
	return SurfaceDistanceSquared(b.Corner1, b.Corner2, p)
}

// WithinCutoff reports whether p could interact with any point of the box,
// i.e. its distance to the box surface is below the scoring cutoff.
func (b *Box) WithinCutoff(p Vec3) bool {
	return b.SurfaceDistanceSquared(p) < CutoffSquared
}

// GridIndex returns the 3D index of the half-open grid cell containing p.
// The conversion truncates; callers must ensure Contains(p) first.
func (b *Box) GridIndex(p Vec3) Index3 {
	return Index3{
		int((p[0] - b.Corner1[0]) * b.GranularityInv),
		int((p[1] - b.Corner1[1]) * b.GranularityInv),
		int((p[2] - b.Corner1[2]) * b.GranularityInv),
	}
}

// PartitionIndex returns the 3D index of the half-open partition cell
// containing p. The conversion truncates; callers must ensure Contains(p).
func (b *Box) PartitionIndex(p Vec3) Index3 {
	return Index3{
		int((p[0] - b.Corner1[0]) * b.PartitionSizeInv[0]),
		int((p[1] - b.Corner1[1]) * b.PartitionSizeInv[1]),
		int((p[2] - b.Corner1[2]) * b.PartitionSizeInv[2]),
	}
}

// partitionIndexClamped maps p to a partition index with each component
// clamped into range. Grid nodes on the Corner2 boundary are probes too, and
// they have no half-open cell of their own.
func (b *Box) partitionIndexClamped(p Vec3) Index3 {
	idx := b.PartitionIndex(p)
	for i := 0; i < 3; i++ {
		if idx[i] < 0 {
			idx[i] = 0
		} else if idx[i] >= b.NumPartitions[i] {
			idx[i] = b.NumPartitions[i] - 1
		}
	}
	return idx
}

// GridNodeCoordinate returns the lower corner of the grid cell at idx, which
// is also the coordinate of grid node idx.
func (b *Box) GridNodeCoordinate(idx Index3) Vec3 {
	return Vec3{
		b.Corner1[0] + float64(idx[0])*b.Granularity,
		b.Corner1[1] + float64(idx[1])*b.Granularity,
		b.Corner1[2] + float64(idx[2])*b.Granularity,
	}
}

// PartitionCellCoordinate returns the lower corner of the partition cell at idx.
func (b *Box) PartitionCellCoordinate(idx Index3) Vec3 {
	return Vec3{
		b.Corner1[0] + float64(idx[0])*b.PartitionSize[0],
		b.Corner1[1] + float64(idx[1])*b.PartitionSize[1],
		b.Corner1[2] + float64(idx[2])*b.PartitionSize[2],
	}
}

// NumProbesTotal returns the number of grid nodes in the box.
func (b *Box) NumProbesTotal() int {
	return b.NumProbes[0] * b.NumProbes[1] * b.NumProbes[2]
}

// probeOffset flattens a 3D probe index into the grid-map slice offset.
// x varies slowest so one grid-map slab (fixed x) is contiguous.
func (b *Box) probeOffset(idx Index3) int {
	return (idx[0]*b.NumProbes[1]+idx[1])*b.NumProbes[2] + idx[2]
}
