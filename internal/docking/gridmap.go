package docking

import (
	"fmt"

	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

// GridMap is the receptor-induced interaction energy of one probe atom type,
// sampled at every grid node of the box. Populated once under a Group
// barrier, then immutable and shared by all Monte Carlo tasks.
type GridMap struct {
	Type   AtomType
	values []float64 // flattened by Box.probeOffset
}

// At returns the energy at grid node idx.
func (m *GridMap) At(b *Box, idx Index3) float64 {
	return m.values[b.probeOffset(idx)]
}

// Interpolate returns the trilinearly interpolated energy at p and its
// gradient. p must satisfy b.Contains(p); the surrounding logic penalizes
// out-of-box atoms before ever consulting the maps.
func (m *GridMap) Interpolate(b *Box, p Vec3) (float64, Vec3) {
	idx := b.GridIndex(p)
	lo := b.GridNodeCoordinate(idx)
	f := p.Sub(lo).Scale(b.GranularityInv) // fractional cell coordinates in [0,1)

	o000 := b.probeOffset(idx)
	oz := 1
	oy := b.NumProbes[2]
	ox := b.NumProbes[1] * b.NumProbes[2]
	v := m.values

	e000 := v[o000]
	e001 := v[o000+oz]
	e010 := v[o000+oy]
	e011 := v[o000+oy+oz]
	e100 := v[o000+ox]
	e101 := v[o000+ox+oz]
	e110 := v[o000+ox+oy]
	e111 := v[o000+ox+oy+oz]

	// Collapse the z axis, then y, then x.
	e00 := e000 + (e001-e000)*f[2]
	e01 := e010 + (e011-e010)*f[2]
	e10 := e100 + (e101-e100)*f[2]
	e11 := e110 + (e111-e110)*f[2]

	e0 := e00 + (e01-e00)*f[1]
	e1 := e10 + (e11-e10)*f[1]

	e := e0 + (e1-e0)*f[0]

	// Analytic partials of the trilinear polynomial, scaled back to Ångström.
	dx := (e1 - e0) * b.GranularityInv
	dy := ((e01-e00)*(1-f[0]) + (e11-e10)*f[0]) * b.GranularityInv

	de00 := e001 - e000
	de01 := e011 - e010
	de10 := e101 - e100
	de11 := e111 - e110
	dz := ((de00*(1-f[1])+de01*f[1])*(1-f[0]) + (de10*(1-f[1])+de11*f[1])*f[0]) * b.GranularityInv

	return e, Vec3{dx, dy, dz}
}

// GridMapBuilder owns the per-atom-type grid-map arena and the partitioned
// receptor-atom index it is computed from. Maps are allocated lazily and
// populated at most once per type; a populated slot is never written again.
type GridMapBuilder struct {
	box        *Box
	sf         *ScoringFunction
	rec        *Receptor
	partitions [][]int32 // receptor atom indices whose cutoff sphere meets the cell

	maps          [NumAtomTypes]*GridMap
	populateCount [NumAtomTypes]int

	maxProbeValues int // allocation guard across all maps
	allocated      int
}

// NewGridMapBuilder indexes the receptor atoms into the box partitions.
// maxProbeValues bounds the total number of grid-node energies the builder
// may allocate across all atom types; zero means no bound.
func NewGridMapBuilder(box *Box, sf *ScoringFunction, rec *Receptor, maxProbeValues int) *GridMapBuilder {
	b := &GridMapBuilder{
		box:            box,
		sf:             sf,
		rec:            rec,
		maxProbeValues: maxProbeValues,
	}

	// Receptor atoms whose cutoff sphere reaches the box at all.
	nearby := make([]int32, 0, len(rec.Atoms))
	for i, a := range rec.Atoms {
		if box.WithinCutoff(a.Coord) {
			nearby = append(nearby, int32(i))
		}
	}

	// Register each nearby atom in every partition cell its cutoff sphere
	// intersects, so a grid node only ever consults one cell.
	n := box.NumPartitions
	b.partitions = make([][]int32, n[0]*n[1]*n[2])
	cell := 0
	for x := 0; x < n[0]; x++ {
		for y := 0; y < n[1]; y++ {
			for z := 0; z < n[2]; z++ {
				c1 := box.PartitionCellCoordinate(Index3{x, y, z})
				c2 := box.PartitionCellCoordinate(Index3{x + 1, y + 1, z + 1})
				var ids []int32
				for _, i := range nearby {
					if SurfaceDistanceSquared(c1, c2, rec.Atoms[i].Coord) < CutoffSquared {
						ids = append(ids, i)
					}
				}
				b.partitions[cell] = ids
				cell++
			}
		}
	}
	return b
}

func (b *GridMapBuilder) partitionCell(idx Index3) []int32 {
	n := b.box.NumPartitions
	return b.partitions[(idx[0]*n[1]+idx[1])*n[2]+idx[2]]
}

// Map returns the grid map of t, or nil if Ensure has not populated it yet.
func (b *GridMapBuilder) Map(t AtomType) *GridMap {
	return b.maps[t]
}

// PopulateCount returns how many times the map of t has been computed. It
// never exceeds one; the counter exists so memoization is observable.
func (b *GridMapBuilder) PopulateCount(t AtomType) int {
	return b.populateCount[t]
}

// Ensure populates grid maps for every type in types that has none yet, one
// pool task per grid slab (fixed first-axis probe index), and blocks on the
// phase barrier. Already-populated types cost nothing. An allocation-guard
// violation is returned before any task runs; it is fatal for the current
// box/spacing configuration.
func (b *GridMapBuilder) Ensure(types []AtomType, pool *Pool) error {
	var missing []AtomType
	for _, t := range types {
		if b.maps[t] == nil {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	total := b.box.NumProbesTotal()
	if b.maxProbeValues > 0 && b.allocated+len(missing)*total > b.maxProbeValues {
		return errors.New(errors.ErrCodeGridAlloc,
			fmt.Sprintf("grid maps for %d atom types at %d probes each exceed the %d probe budget",
				len(missing), total, b.maxProbeValues))
	}

	for _, t := range missing {
		b.maps[t] = &GridMap{Type: t, values: make([]float64, total)}
		b.allocated += total
		b.populateCount[t]++
	}

	g := pool.NewGroup()
	for x := 0; x < b.box.NumProbes[0]; x++ {
		x := x
		g.Go(func() error {
			b.populateSlab(x, missing)
			return nil
		})
	}
	return g.Wait()
}

// populateSlab fills probe plane x of every map in types. Each grid node
// sums the scoring-function contribution of the receptor atoms registered in
// its partition; the partition build guarantees no in-range atom is missed.
func (b *GridMapBuilder) populateSlab(x int, types []AtomType) {
	box := b.box
	for y := 0; y < box.NumProbes[1]; y++ {
		for z := 0; z < box.NumProbes[2]; z++ {
			idx := Index3{x, y, z}
			probe := box.GridNodeCoordinate(idx)
			off := box.probeOffset(idx)

			cell := b.partitionCell(box.partitionIndexClamped(probe))
			for _, ai := range cell {
				a := b.rec.Atoms[ai]
				r2 := a.Coord.DistanceSquared(probe)
				if r2 >= CutoffSquared {
					continue
				}
				for _, t := range types {
					e, _ := b.sf.Evaluate(a.Type, t, r2)
					b.maps[t].values[off] += e
				}
			}
		}
	}
}
