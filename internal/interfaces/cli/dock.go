package cli

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolDock-Screen/internal/config"
	"github.com/turtacn/MolDock-Screen/internal/docking"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolDock-Screen/internal/molecule"
	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

// DockOptions holds flags for the dock command.
type DockOptions struct {
	ReceptorPath string
	LibraryPath  string
	Center       []float64
	Size         []float64
	Seed         int64
	Concurrency  int
	Top          int
	OutPath      string
	NoFilter     bool
}

// DockReport is the ranked outcome of a local docking run.
type DockReport struct {
	Receptor string    `json:"receptor"`
	Library  string    `json:"library"`
	Scanned  int       `json:"scanned"`
	Docked   int       `json:"docked"`
	Filtered int       `json:"filtered"`
	Skipped  int       `json:"skipped"`
	Elapsed  string    `json:"elapsed"`
	Hits     []DockHit `json:"hits"`
}

// DockHit is one ranked ligand.
type DockHit struct {
	Rank   int     `json:"rank"`
	Ligand string  `json:"ligand"`
	Energy float64 `json:"energy"`
}

// TableHeaders implements the table output contract.
func (r *DockReport) TableHeaders() []string {
	return []string{"RANK", "LIGAND", "ENERGY (kcal/mol)"}
}

// TableRows implements the table output contract.
func (r *DockReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		rows = append(rows, []string{
			strconv.Itoa(h.Rank),
			h.Ligand,
			strconv.FormatFloat(h.Energy, 'f', 3, 64),
		})
	}
	return rows
}

func (r *DockReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Docked %d of %d ligands (%d filtered, %d skipped) in %s\n\n",
		r.Docked, r.Scanned, r.Filtered, r.Skipped, r.Elapsed)
	sb.WriteString(FormatTable(r.TableHeaders(), r.TableRows()))
	return sb.String()
}

// NewDockCommand creates the dock command for one-shot local screening.
func NewDockCommand() *cobra.Command {
	opts := &DockOptions{}

	cmd := &cobra.Command{
		Use:   "dock",
		Short: "Dock a ligand library against a receptor locally",
		Long: "Dock runs the full screening pipeline on the local machine without any\nserver: parse the receptor, scan the multi-molecule PDBQT library, filter\nligands by the configured property windows, dock the survivors, and rank\nthem by predicted binding free energy.",
		Example: `  # Dock a library into a 20 Å box around the binding site
  moldock dock --receptor kinase.pdbqt --library zinc-subset.pdbqt \
    --center 12.5,8.0,-3.25 --size 20,20,20

  # Reproducible run, top 25 hits written to CSV
  moldock dock -r kinase.pdbqt -l leads.pdbqt --center 0,0,0 --size 22,22,22 \
    --seed 42 --top 25 --out hits.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDock(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ReceptorPath, "receptor", "r", "", "receptor PDBQT file (required)")
	f.StringVarP(&opts.LibraryPath, "library", "l", "", "ligand library PDBQT file (required)")
	f.Float64SliceVar(&opts.Center, "center", nil, "search box center x,y,z in Å (required)")
	f.Float64SliceVar(&opts.Size, "size", nil, "search box size x,y,z in Å (required)")
	f.Int64Var(&opts.Seed, "seed", 0, "master RNG seed (0 = time-based)")
	f.IntVar(&opts.Concurrency, "concurrency", 0, "worker goroutines (0 = all CPUs)")
	f.IntVar(&opts.Top, "top", 10, "number of top hits to report")
	f.StringVar(&opts.OutPath, "out", "", "write the full ranking as CSV to this file")
	f.BoolVar(&opts.NoFilter, "no-filter", false, "disable the ligand property filter")

	cmd.MarkFlagRequired("receptor")
	cmd.MarkFlagRequired("library")
	cmd.MarkFlagRequired("center")
	cmd.MarkFlagRequired("size")

	return cmd
}

func runDock(cmd *cobra.Command, opts *DockOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	if len(opts.Center) != 3 || len(opts.Size) != 3 {
		return errors.New(errors.ErrCodeValidation, "center and size each require exactly three comma-separated values")
	}
	if opts.Top < 1 {
		return errors.New(errors.ErrCodeValidation, "top must be at least 1")
	}

	recFile, err := os.Open(opts.ReceptorPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "cannot open receptor file")
	}
	defer recFile.Close()

	rec, err := molecule.ParseReceptor(recFile)
	if err != nil {
		return err
	}

	libFile, err := os.Open(opts.LibraryPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "cannot open library file")
	}
	defer libFile.Close()

	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := docking.NewPool(workers)
	defer pool.Close()

	engine, err := docking.NewEngine(
		docking.Vec3{opts.Center[0], opts.Center[1], opts.Center[2]},
		docking.Vec3{opts.Size[0], opts.Size[1], opts.Size[2]},
		rec,
		pool,
		dockingConfig(cliCtx.Config),
		cliCtx.Logger.Named("docking"),
	)
	if err != nil {
		return err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var filter *molecule.Filter
	if !opts.NoFilter {
		filter = molecule.NewFilter(cliCtx.Config.Filter)
	}

	report, err := dockLibrary(cmd, cliCtx.Logger, engine, filter, libFile, rng)
	if err != nil {
		return err
	}
	report.Receptor = opts.ReceptorPath
	report.Library = opts.LibraryPath

	if opts.OutPath != "" {
		if err := writeHitsCSV(opts.OutPath, report.Hits); err != nil {
			return err
		}
		cliCtx.Logger.Info("wrote ranking CSV",
			logging.String("path", opts.OutPath),
			logging.Int("hits", len(report.Hits)))
	}

	if len(report.Hits) > opts.Top {
		report.Hits = report.Hits[:opts.Top]
	}

	return PrintResult(cmd, report)
}

// dockLibrary scans, filters, and docks every ligand in the library,
// returning the ranked report. Ligands that fail to parse or dock are logged
// and skipped rather than aborting the run.
func dockLibrary(cmd *cobra.Command, logger logging.Logger, engine *docking.Engine, filter *molecule.Filter, library io.Reader, rng *rand.Rand) (*DockReport, error) {
	start := time.Now()
	report := &DockReport{}

	scanner := molecule.NewLibraryScanner(library)
	for {
		lig, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping unparseable ligand",
				logging.Int("index", scanner.Index()),
				logging.Err(err))
			report.Scanned++
			report.Skipped++
			continue
		}
		report.Scanned++

		if filter != nil {
			if ok, reason := filter.Check(lig.Props); !ok {
				logger.Debug("ligand filtered",
					logging.String("ligand", lig.Model.Name),
					logging.String("reason", reason))
				report.Filtered++
				continue
			}
		}

		outcome, err := engine.Dock(lig.Model, rng)
		if err != nil {
			return nil, err
		}
		if outcome.Skipped {
			report.Skipped++
			continue
		}

		report.Docked++
		report.Hits = append(report.Hits, DockHit{
			Ligand: lig.Model.Name,
			Energy: outcome.ReportedEnergy,
		})
	}

	sort.Slice(report.Hits, func(i, j int) bool {
		return report.Hits[i].Energy < report.Hits[j].Energy
	})
	for i := range report.Hits {
		report.Hits[i].Rank = i + 1
	}

	report.Elapsed = time.Since(start).Round(time.Millisecond).String()
	return report, nil
}

func writeHitsCSV(path string, hits []DockHit) error {
	var sb strings.Builder
	sb.WriteString("rank,ligand,energy\n")
	for _, h := range hits {
		sb.WriteString(strconv.Itoa(h.Rank))
		sb.WriteByte(',')
		sb.WriteString(h.Ligand)
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(h.Energy, 'f', 3, 64))
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "cannot write CSV file")
	}
	return nil
}

// dockingConfig maps the configuration file section onto the engine tunables.
func dockingConfig(cfg *config.Config) docking.Config {
	c := cfg.Docking
	return docking.Config{
		Granularity:        c.Granularity,
		NumMCTasks:         c.NumMCTasks,
		MCIterations:       c.MCIterations,
		Temperature:        c.Temperature,
		Perturbation:       c.Perturbation,
		MaxResultsPerTask:  c.MaxResultsPerTask,
		MaxConformations:   c.MaxConformations,
		MaxRefineIters:     c.MaxRefineIters,
		GradientTolerance:  c.GradientTolerance,
		MaxGridProbeValues: c.MaxGridProbeValues,
	}
}
