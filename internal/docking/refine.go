package docking

import (
	"gonum.org/v1/gonum/mat"
)

const (
	// defaultMaxRefineIters bounds one quasi-Newton descent.
	defaultMaxRefineIters = 300

	// defaultGradientTolerance is the gradient-norm convergence threshold.
	defaultGradientTolerance = 1e-4

	// armijoC1 is the sufficient-decrease constant of the backtracking line
	// search.
	armijoC1 = 1e-4

	// numAlphas and alphaFactor define the precomputed geometric sequence of
	// line-search step multipliers; no division happens per trial step.
	numAlphas   = 5
	alphaFactor = 0.1
)

// Refiner performs gradient-based local minimization of a pose against the
// populated grid maps. It is stateless across calls and safe to share; all
// per-pose scratch lives in the Workspace.
type Refiner struct {
	box *Box
	gm  *GridMapBuilder
	sf  *ScoringFunction

	alphas   []float64
	maxIters int
	gradTol  float64
}

// NewRefiner builds a refiner over the shared read-only docking state.
// maxIters and gradTol fall back to defaults when non-positive.
func NewRefiner(box *Box, gm *GridMapBuilder, sf *ScoringFunction, maxIters int, gradTol float64) *Refiner {
	if maxIters <= 0 {
		maxIters = defaultMaxRefineIters
	}
	if gradTol <= 0 {
		gradTol = defaultGradientTolerance
	}
	alphas := make([]float64, numAlphas)
	alphas[0] = 1
	for i := 1; i < numAlphas; i++ {
		alphas[i] = alphas[i-1] * alphaFactor
	}
	return &Refiner{box: box, gm: gm, sf: sf, alphas: alphas, maxIters: maxIters, gradTol: gradTol}
}

// RefineResult is the outcome of one local minimization.
type RefineResult struct {
	Conf        *Conformation
	Energy      float64 // total: receptor + intra-ligand
	InterEnergy float64 // receptor part only, the reported quantity
	Iterations  int
	Converged   bool
}

// Refine minimizes from start and returns the best point found. Line-search
// failure and hitting the iteration cap are not errors; they return the best
// point so far with Converged=false. ok is false only when the starting
// conformation itself evaluates to a non-finite energy.
func (r *Refiner) Refine(w *Workspace, start *Conformation) (RefineResult, bool) {
	n := w.lig.DegreesOfFreedom()

	conf := start.Clone()
	x := make([]float64, n)
	conf.Vector(x)

	g := make([]float64, n)
	e, inter, ok := w.Evaluate(conf, r.box, r.gm, r.sf, g)
	if !ok {
		return RefineResult{}, false
	}

	// Inverse-Hessian estimate, identity to start.
	h := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		h.Set(i, i, 1)
	}

	gVec := mat.NewVecDense(n, g)
	p := mat.NewVecDense(n, nil)
	hy := mat.NewVecDense(n, nil)
	s := mat.NewVecDense(n, nil)
	y := mat.NewVecDense(n, nil)

	xTrial := make([]float64, n)
	gTrial := make([]float64, n)
	trial := conf.Clone()

	res := RefineResult{Conf: conf, Energy: e, InterEnergy: inter}
	for iter := 0; iter < r.maxIters; iter++ {
		res.Iterations = iter
		if mat.Norm(gVec, 2) < r.gradTol {
			res.Converged = true
			break
		}

		// Descent direction p = -H·g.
		p.MulVec(h, gVec)
		p.ScaleVec(-1, p)
		slope := mat.Dot(gVec, p)
		if slope >= 0 {
			// H lost positive definiteness; restart from steepest descent.
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					if i == j {
						h.Set(i, j, 1)
					} else {
						h.Set(i, j, 0)
					}
				}
			}
			p.ScaleVec(-1, gVec)
			slope = -mat.Dot(gVec, gVec)
		}

		// Backtracking line search over the fixed alpha ladder.
		accepted := false
		var eNew, interNew float64
		for _, alpha := range r.alphas {
			for i := 0; i < n; i++ {
				xTrial[i] = x[i] + alpha*p.AtVec(i)
			}
			trial.SetFromVector(xTrial)
			var okTrial bool
			eNew, interNew, okTrial = w.Evaluate(trial, r.box, r.gm, r.sf, gTrial)
			if okTrial && eNew < e+armijoC1*alpha*slope {
				accepted = true
				break
			}
		}
		if !accepted {
			// No improving step along p; stop with the best point found.
			break
		}

		// SetFromVector renormalized the quaternion, so derive the secant
		// step from the conformation actually adopted.
		trial.Vector(xTrial)
		for i := 0; i < n; i++ {
			s.SetVec(i, xTrial[i]-x[i])
			y.SetVec(i, gTrial[i]-g[i])
		}
		copy(x, xTrial)
		copy(g, gTrial)
		conf.SetFromVector(x)
		e, inter = eNew, interNew

		// BFGS secant update of the inverse Hessian, skipped when curvature
		// information is unusable.
		sy := mat.Dot(s, y)
		if sy > 1e-10 {
			hy.MulVec(h, y)
			yhy := mat.Dot(y, hy)
			h.RankOne(h, (sy+yhy)/(sy*sy), s, s)
			h.RankOne(h, -1/sy, hy, s)
			h.RankOne(h, -1/sy, s, hy)
		}
	}

	res.Conf = conf
	res.Energy = e
	res.InterEnergy = inter
	return res, true
}
