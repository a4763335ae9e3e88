package docking

import (
	"math"
)

const (
	// Cutoff is the interaction cutoff distance in Ångström. Pairs farther
	// apart contribute exactly zero energy and zero gradient.
	Cutoff = 8.0

	// CutoffSquared is Cutoff².
	CutoffSquared = Cutoff * Cutoff

	// samplesPerSquareAngstrom is the sampling density of the scoring tables
	// over squared distance. Indexing by r² avoids a square root in the hot
	// path.
	samplesPerSquareAngstrom = 256

	// numSamples is the table length per atom-type pair, covering
	// [0, CutoffSquared] inclusive.
	numSamples = int(CutoffSquared*samplesPerSquareAngstrom) + 1

	// numTypePairs is the number of unordered atom-type pairs.
	numTypePairs = NumAtomTypes * (NumAtomTypes + 1) / 2
)

// Model is the analytic pairwise interaction between two typed atoms at
// surface distance r. The empirical chemistry lives behind this seam so
// tests can inject synthetic potentials; the engine only relies on the
// computational shape (pairwise, cutoff, tabulated).
type Model interface {
	// Score returns the interaction energy of an atom pair of types t1, t2
	// at center distance r (Ångström).
	Score(t1, t2 AtomType, r float64) float64
}

// Empirical weights of the idock/Vina scoring terms.
const (
	weightGauss1      = -0.035579
	weightGauss2      = -0.005156
	weightRepulsion   = 0.840245
	weightHydrophobic = -0.035069
	weightHBond       = -0.587439
)

// VinaModel is the default empirical potential: two attractive gaussians, a
// quadratic steric repulsion, and linearly ramped hydrophobic and
// hydrogen-bond terms, all functions of the surface distance
// d = r - (vdw1 + vdw2).
type VinaModel struct{}

// Score implements Model.
func (VinaModel) Score(t1, t2 AtomType, r float64) float64 {
	d := r - (t1.VdwRadius() + t2.VdwRadius())

	g1 := d * 2 // d / 0.5
	e := weightGauss1 * math.Exp(-g1*g1)

	g2 := (d - 3) * 0.5 // (d - 3) / 2
	e += weightGauss2 * math.Exp(-g2*g2)

	if d < 0 {
		e += weightRepulsion * d * d
	}

	if t1.Hydrophobic() && t2.Hydrophobic() {
		switch {
		case d <= 0.5:
			e += weightHydrophobic
		case d < 1.5:
			e += weightHydrophobic * (1.5 - d)
		}
	}

	if hbonding(t1, t2) {
		switch {
		case d <= -0.7:
			e += weightHBond
		case d < 0:
			e += weightHBond * (d / -0.7)
		}
	}
	return e
}

// ScoringFunction holds, for every unordered atom-type pair, the interaction
// energy sampled over uniformly spaced squared distances in [0, Cutoff²],
// together with the slope samples needed for gradient evaluation. Built once
// under a Group barrier, read-only forever after.
type ScoringFunction struct {
	model Model
	e     [numTypePairs][]float64 // energy per r² sample
	dor   [numTypePairs][]float64 // dE/dr ÷ r per r² interval
}

// NewScoringFunction allocates an empty table set over model. Precompute
// must complete before any Evaluate call.
func NewScoringFunction(model Model) *ScoringFunction {
	return &ScoringFunction{model: model}
}

// pairIndex maps an unordered type pair to its triangular table index.
func pairIndex(t1, t2 AtomType) int {
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	return int(t1) + int(t2)*(int(t2)+1)/2
}

// Precompute fills every pair table, one pool task per unordered atom-type
// pair, and blocks on the phase barrier. It must be called exactly once.
func (sf *ScoringFunction) Precompute(pool *Pool) error {
	// Distances corresponding to each r² sample, shared by all tasks.
	rs := make([]float64, numSamples)
	for i := range rs {
		rs[i] = math.Sqrt(float64(i) / samplesPerSquareAngstrom)
	}

	g := pool.NewGroup()
	for t1 := AtomType(0); int(t1) < NumAtomTypes; t1++ {
		for t2 := t1; int(t2) < NumAtomTypes; t2++ {
			t1, t2 := t1, t2
			g.Go(func() error {
				sf.precalculate(t1, t2, rs)
				return nil
			})
		}
	}
	return g.Wait()
}

// precalculate fills the table of one type pair. The stored dor value for
// interval i is the exact derivative of the piecewise-linear-in-r²
// interpolant divided by r: with e linear in r² over one interval,
// dE/dx = 2·(Δe/Δr²)·(x_i - x_j), so dor = 2·Δe·samples.
func (sf *ScoringFunction) precalculate(t1, t2 AtomType, rs []float64) {
	e := make([]float64, numSamples)
	dor := make([]float64, numSamples)
	for i := range e {
		e[i] = sf.model.Score(t1, t2, rs[i])
	}
	// The last sample sits on the cutoff where everything is zero. Zero it
	// before taking slopes so the stored dor of the final interval matches
	// the energy interpolant.
	e[numSamples-1] = 0
	for i := 0; i < numSamples-1; i++ {
		dor[i] = 2 * (e[i+1] - e[i]) * samplesPerSquareAngstrom
	}
	dor[numSamples-1] = 0

	idx := pairIndex(t1, t2)
	sf.e[idx] = e
	sf.dor[idx] = dor
}

// Evaluate returns the interpolated interaction energy of a t1/t2 pair at
// squared distance r2, and the matching dor factor such that the gradient on
// atom i is dor·(xᵢ - xⱼ). Beyond the cutoff both are exactly zero.
func (sf *ScoringFunction) Evaluate(t1, t2 AtomType, r2 float64) (energy, dor float64) {
	if r2 >= CutoffSquared {
		return 0, 0
	}
	idx := pairIndex(t1, t2)
	pos := r2 * samplesPerSquareAngstrom
	i := int(pos)
	frac := pos - float64(i)
	e := sf.e[idx]
	return e[i] + (e[i+1]-e[i])*frac, sf.dor[idx][i]
}

// Populated reports whether the table of the given pair has been built.
func (sf *ScoringFunction) Populated(t1, t2 AtomType) bool {
	return sf.e[pairIndex(t1, t2)] != nil
}
