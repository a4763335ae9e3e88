package docking

import (
	"math/rand"

	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
)

// Config bundles the engine tunables. Zero values mean "use default".
type Config struct {
	// Granularity is the grid map node spacing in Ångström.
	Granularity float64
	// NumMCTasks is the number of Monte Carlo restart tasks per ligand.
	NumMCTasks int
	// MCIterations is the basin-hopping budget of one Monte Carlo task.
	MCIterations int
	// Temperature is the Metropolis pseudo-temperature.
	Temperature float64
	// Perturbation is the basin-hopping displacement scale in Ångström.
	Perturbation float64
	// MaxResultsPerTask caps each task's private result list.
	MaxResultsPerTask int
	// MaxConformations caps the merged per-ligand result list.
	MaxConformations int
	// MaxRefineIters bounds one BFGS refinement.
	MaxRefineIters int
	// GradientTolerance is the BFGS convergence threshold.
	GradientTolerance float64
	// MaxGridProbeValues bounds total grid map memory, in stored values.
	// Zero disables the bound.
	MaxGridProbeValues int
}

// ApplyDefaults fills unset fields in place and returns the receiver for
// chaining.
func (c *Config) ApplyDefaults() *Config {
	if c.Granularity <= 0 {
		c.Granularity = 0.08
	}
	if c.NumMCTasks <= 0 {
		c.NumMCTasks = 32
	}
	if c.MCIterations <= 0 {
		c.MCIterations = 200
	}
	if c.Temperature <= 0 {
		c.Temperature = 1.2
	}
	if c.Perturbation <= 0 {
		c.Perturbation = 2.0
	}
	if c.MaxResultsPerTask <= 0 {
		c.MaxResultsPerTask = 20
	}
	if c.MaxConformations <= 0 {
		c.MaxConformations = 100
	}
	return c
}

func (c Config) mcParams() MonteCarloParams {
	return MonteCarloParams{
		NumTasks:          c.NumMCTasks,
		Iterations:        c.MCIterations,
		Temperature:       c.Temperature,
		Perturbation:      c.Perturbation,
		MaxResultsPerTask: c.MaxResultsPerTask,
	}.withDefaults()
}

// DockOutcome is the per-ligand verdict of a docking run.
type DockOutcome struct {
	// Skipped reports that no task produced any conformation; the ligand
	// carries no results and no error.
	Skipped bool
	// Results holds the clustered conformations, best first.
	Results []*Result
	// ReportedEnergy is the torsion-normalized inter-molecular energy of the
	// best conformation, the value used to rank ligands against each other.
	ReportedEnergy float64
}

// Engine owns the shared per-receptor state of a screening run: the search
// box, the precomputed scoring tables, the lazily populated grid maps, the
// refiner, and the worker pool. One Engine serves many ligands; Dock is safe
// to call sequentially, and all per-ligand mutable state lives in the tasks.
type Engine struct {
	box  *Box
	sf   *ScoringFunction
	gm   *GridMapBuilder
	ref  *Refiner
	pool *Pool
	cfg  Config
	log  logging.Logger
}

// NewEngine precomputes the scoring tables and builds the receptor partition
// index. The pool is borrowed, not owned; Close it at the call site.
func NewEngine(center, size Vec3, rec *Receptor, pool *Pool, cfg Config, log logging.Logger) (*Engine, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logging.NewNopLogger()
	}
	box, err := NewBox(center, size, cfg.Granularity)
	if err != nil {
		return nil, err
	}
	sf := NewScoringFunction(VinaModel{})
	if err := sf.Precompute(pool); err != nil {
		return nil, err
	}

	gm := NewGridMapBuilder(box, sf, rec, cfg.MaxGridProbeValues)
	e := &Engine{
		box:  box,
		sf:   sf,
		gm:   gm,
		ref:  NewRefiner(box, gm, sf, cfg.MaxRefineIters, cfg.GradientTolerance),
		pool: pool,
		cfg:  cfg,
		log:  log,
	}
	e.log.Info("docking engine ready",
		logging.Float64("granularity", box.Granularity),
		logging.Int("probes_x", box.NumProbes[0]),
		logging.Int("probes_y", box.NumProbes[1]),
		logging.Int("probes_z", box.NumProbes[2]),
		logging.Int("receptor_atoms", len(rec.Atoms)),
	)
	return e, nil
}

// Box exposes the search box for callers that clip or filter ligands.
func (e *Engine) Box() *Box { return e.box }

// EnsureGridMaps populates the grid maps for the given atom types if any are
// missing. It is a phase barrier: it returns only when every requested map is
// complete, so Dock never races map population.
func (e *Engine) EnsureGridMaps(types []AtomType) error {
	return e.gm.Ensure(types, e.pool)
}

// Dock runs the full global search for one ligand: grid map population for
// its atom types, NumMCTasks independent Monte Carlo tasks, then clustering.
// Task seeds are drawn from masterRNG before dispatch, so a fixed master seed
// yields an identical result set regardless of worker count.
func (e *Engine) Dock(lig *Ligand, masterRNG *rand.Rand) (*DockOutcome, error) {
	if err := e.EnsureGridMaps(lig.AtomTypes()); err != nil {
		return nil, err
	}

	params := e.cfg.mcParams()
	seeds := make([]int64, params.NumTasks)
	for i := range seeds {
		seeds[i] = masterRNG.Int63()
	}

	containers := make([]*ResultContainer, params.NumTasks)
	g := e.pool.NewGroup()
	for i := range seeds {
		i := i
		g.Go(func() error {
			containers[i] = runMonteCarloTask(seeds[i], lig, e.ref, e.box, params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := NewResultContainer(e.cfg.MaxConformations, lig.NumHeavyAtoms())
	for _, rc := range containers {
		merged.Merge(rc)
	}
	if merged.Len() == 0 {
		e.log.Warn("ligand produced no conformations", logging.String("ligand", lig.Name))
		return &DockOutcome{Skipped: true}, nil
	}

	best := merged.Best()
	out := &DockOutcome{
		Results:        merged.Results(),
		ReportedEnergy: best.InterEnergy * lig.FlexibilityPenalty(),
	}
	e.log.Debug("ligand docked",
		logging.String("ligand", lig.Name),
		logging.Int("conformations", merged.Len()),
		logging.Float64("energy", out.ReportedEnergy),
	)
	return out, nil
}
