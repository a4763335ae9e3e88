package docking

// rmsdSquareErrorPerAtom scales the clustering threshold: poses whose summed
// square coordinate error is below 4·heavyAtoms — an RMSD of 2.0 Å — fall
// into the same cluster.
const rmsdSquareErrorPerAtom = 4.0

// Result is one accepted, locally-minimal pose: its energy, the parameter
// vector that produced it, and the heavy-atom coordinate snapshot used as the
// structural fingerprint for clustering.
type Result struct {
	Conf        *Conformation
	Energy      float64 // total energy the optimizer minimized
	InterEnergy float64 // receptor-interaction part, basis of the report
	Coords      []Vec3  // posed heavy-atom coordinates
}

// fingerprintDistance returns the summed square coordinate error between two
// poses of the same ligand. No superposition is applied: the poses live in
// the fixed receptor frame, so raw deviation is the meaningful distance.
func fingerprintDistance(a, b []Vec3) float64 {
	var d2 float64
	for i := range a {
		d2 += a[i].DistanceSquared(b[i])
	}
	return d2
}

// ResultContainer is a bounded, energy-ascending pose collection with
// cluster deduplication on insert. Each Monte Carlo task owns a private one;
// the merge step folds them into a single container. The container owns every
// kept Result; rejected candidates are simply dropped.
type ResultContainer struct {
	capacity      int
	requiredError float64 // square-error threshold scaled by heavy atoms
	results       []*Result
}

// NewResultContainer sizes a container for a ligand with heavyAtoms atoms.
func NewResultContainer(capacity, heavyAtoms int) *ResultContainer {
	return &ResultContainer{
		capacity:      capacity,
		requiredError: rmsdSquareErrorPerAtom * float64(heavyAtoms),
		results:       make([]*Result, 0, capacity),
	}
}

// Add inserts r unless an already-kept pose of lower or equal energy lies
// within the cluster threshold. Kept poses of higher energy inside r's
// cluster are evicted, so the pairwise-distance invariant holds for every
// container state. Returns whether r was kept.
func (rc *ResultContainer) Add(r *Result) bool {
	// Kept results are ascending by energy, so any similar result seen
	// before r's insertion point dominates it.
	pos := len(rc.results)
	for i, kept := range rc.results {
		if kept.Energy <= r.Energy {
			if fingerprintDistance(kept.Coords, r.Coords) < rc.requiredError {
				return false
			}
			continue
		}
		pos = i
		break
	}

	// Evict higher-energy members of r's cluster. The output gets its own
	// backing array so the eviction scan still sees the original tail.
	out := make([]*Result, pos, len(rc.results)+1)
	copy(out, rc.results[:pos])
	out = append(out, r)
	for _, kept := range rc.results[pos:] {
		if fingerprintDistance(kept.Coords, r.Coords) >= rc.requiredError {
			out = append(out, kept)
		}
	}
	if len(out) > rc.capacity {
		out = out[:rc.capacity]
	}
	rc.results = out
	return pos < rc.capacity
}

// Merge folds every pose of other into rc.
func (rc *ResultContainer) Merge(other *ResultContainer) {
	for _, r := range other.results {
		rc.Add(r)
	}
}

// Len returns the number of kept poses.
func (rc *ResultContainer) Len() int { return len(rc.results) }

// Best returns the lowest-energy pose, or nil when the container is empty.
func (rc *ResultContainer) Best() *Result {
	if len(rc.results) == 0 {
		return nil
	}
	return rc.results[0]
}

// Results returns the kept poses in ascending energy order. The slice is
// owned by the container.
func (rc *ResultContainer) Results() []*Result { return rc.results }
