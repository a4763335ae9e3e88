package docking

import (
	"math"
	"math/rand"
)

// MonteCarloParams are the tunables of the global search. The Metropolis
// temperature and the basin-hopping perturbation magnitude are configuration
// inputs with documented defaults, not hard-coded chemistry.
type MonteCarloParams struct {
	// NumTasks is the number of independent restart tasks per ligand.
	NumTasks int
	// Iterations is the basin-hopping budget of one task.
	Iterations int
	// Temperature is the Metropolis pseudo-temperature in energy units.
	Temperature float64
	// Perturbation is the basin-hopping displacement scale: translation in
	// Ångström; rotation and torsion jitter derive from it in radians.
	Perturbation float64
	// MaxResultsPerTask caps each task's private result list.
	MaxResultsPerTask int
}

// withDefaults fills unset parameters with the idock-derived defaults.
func (p MonteCarloParams) withDefaults() MonteCarloParams {
	if p.NumTasks <= 0 {
		p.NumTasks = 32
	}
	if p.Iterations <= 0 {
		p.Iterations = 200
	}
	if p.Temperature <= 0 {
		p.Temperature = 1.2
	}
	if p.Perturbation <= 0 {
		p.Perturbation = 2.0
	}
	if p.MaxResultsPerTask <= 0 {
		p.MaxResultsPerTask = 20
	}
	return p
}

// randomConformation draws an unbiased starting pose: position uniform in
// the box, orientation uniform over rotations, torsions uniform over the
// circle.
func randomConformation(rng *rand.Rand, box *Box, lig *Ligand) *Conformation {
	c := &Conformation{
		Orientation: RandomQuaternion(rng),
		Torsions:    make([]float64, lig.NumTorsions()),
	}
	for i := 0; i < 3; i++ {
		c.Position[i] = box.Corner1[i] + rng.Float64()*box.Span[i]
	}
	for i := range c.Torsions {
		c.Torsions[i] = (2*rng.Float64() - 1) * math.Pi
	}
	return c
}

// perturb returns a basin-hopping step away from c: translation jitter in a
// ball of the configured radius, a small random rotation, and torsion jitter.
func perturb(rng *rand.Rand, c *Conformation, magnitude float64) *Conformation {
	out := c.Clone()
	for i := 0; i < 3; i++ {
		out.Position[i] += (2*rng.Float64() - 1) * magnitude
	}
	angle := rng.Float64() * magnitude * 0.5
	axis := Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Normalized()
	out.Orientation = QuaternionFromAxisAngle(axis, angle).Mul(c.Orientation).Normalized()
	for i := range out.Torsions {
		out.Torsions[i] += (2*rng.Float64() - 1) * magnitude * 0.5
	}
	return out
}

// runMonteCarloTask is one independent restart task: Init → Perturb → Refine
// → Accept/Reject until the iteration budget is spent. All mutable state is
// private to the task; accepted local minima land in the returned container.
func runMonteCarloTask(seed int64, lig *Ligand, refiner *Refiner, box *Box, p MonteCarloParams) *ResultContainer {
	rng := rand.New(rand.NewSource(seed))
	w := NewWorkspace(lig)
	rc := NewResultContainer(p.MaxResultsPerTask, lig.NumHeavyAtoms())

	var current *RefineResult
	for iter := 0; iter < p.Iterations; iter++ {
		var start *Conformation
		if current == nil {
			start = randomConformation(rng, box, lig)
		} else {
			start = perturb(rng, current.Conf, p.Perturbation)
		}

		res, ok := refiner.Refine(w, start)
		if !ok {
			// Corrupt pose; discard this candidate, not the task.
			continue
		}

		accept := current == nil || res.Energy < current.Energy
		if !accept && rng.Float64() < math.Exp(-(res.Energy-current.Energy)/p.Temperature) {
			accept = true
		}
		if !accept {
			continue
		}

		current = &res
		coords := append([]Vec3(nil), w.AtomPositions(res.Conf)...)
		rc.Add(&Result{
			Conf:        res.Conf.Clone(),
			Energy:      res.Energy,
			InterEnergy: res.InterEnergy,
			Coords:      coords,
		})
	}
	return rc
}
