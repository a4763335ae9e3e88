package screening

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/MolDock-Screen/internal/config"
	"github.com/turtacn/MolDock-Screen/internal/docking"
	"github.com/turtacn/MolDock-Screen/internal/domain/job"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/redis"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MolDock-Screen/internal/molecule"
	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

const (
	eventSourceWorker = "moldock-worker"
	finalizeLockTTL   = 2 * time.Minute
	resultCSVHeader   = "ligand,energy"
)

// Worker drains the slice queue: it claims one slice at a time, docks every
// ligand in the slice's library range, uploads a per-slice CSV, and folds
// progress back into the job. The worker that completes a job's last slice
// merges the per-slice CSVs into the ranked summary.
type Worker struct {
	id        string
	repo      job.Repository
	cache     StatusCache
	store     ObjectStore
	publisher EventPublisher
	locks     redis.LockFactory
	metrics   *prometheus.AppMetrics
	cfg       config.WorkerConfig
	dockCfg   config.DockingConfig
	filter    *molecule.Filter
	logger    logging.Logger

	pool *docking.Pool

	// One prepared engine is kept: slices of the same job arrive
	// back-to-back, and each engine caches the grid maps for its receptor.
	engineJobID uuid.UUID
	engine      *docking.Engine

	// engineFn builds or reuses the docking engine for a job, replaceable
	// in tests.
	engineFn func(ctx context.Context, j *job.Job) (docker, error)
}

// docker is the slice of the engine the worker drives per ligand.
type docker interface {
	Dock(lig *docking.Ligand, rng *rand.Rand) (*docking.DockOutcome, error)
}

// WorkerDeps bundles the worker's collaborators.
type WorkerDeps struct {
	Repo      job.Repository
	Cache     StatusCache
	Store     ObjectStore
	Publisher EventPublisher
	Locks     redis.LockFactory
	Metrics   *prometheus.AppMetrics
	Logger    logging.Logger
}

// NewWorker creates a screening worker. An empty id gets a generated one.
func NewWorker(id string, deps WorkerDeps, workerCfg config.WorkerConfig, dockCfg config.DockingConfig, filterCfg config.FilterConfig) *Worker {
	if id == "" {
		id = "worker-" + uuid.New().String()[:8]
	}
	log := deps.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	if workerCfg.PollInterval <= 0 {
		workerCfg.PollInterval = 2 * time.Second
	}
	if workerCfg.RetryBackoff <= 0 {
		workerCfg.RetryBackoff = 5 * time.Second
	}
	if workerCfg.MaxRetries <= 0 {
		workerCfg.MaxRetries = 3
	}
	w := &Worker{
		id:        id,
		repo:      deps.Repo,
		cache:     deps.Cache,
		store:     deps.Store,
		publisher: deps.Publisher,
		locks:     deps.Locks,
		metrics:   deps.Metrics,
		cfg:       workerCfg,
		dockCfg:   dockCfg,
		filter:    molecule.NewFilter(filterCfg),
		logger:    log.With(logging.String("worker_id", id)),
		pool:      docking.NewPool(workerCfg.Concurrency),
	}
	w.engineFn = func(ctx context.Context, j *job.Job) (docker, error) {
		return w.engineFor(ctx, j)
	}
	return w
}

// ID returns the worker identity used for slice claims.
func (w *Worker) ID() string { return w.id }

// Run polls the queue until ctx is cancelled. A claimed slice is always
// resolved before returning: completed, released for retry, or failed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("screening worker started",
		logging.Int("concurrency", w.cfg.Concurrency),
		logging.Duration("poll_interval", w.cfg.PollInterval))
	defer w.pool.Close()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("screening worker stopping")
			return ctx.Err()
		default:
		}

		j, s, err := w.repo.ClaimSlice(ctx, w.id)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeJobSliceUnavailable) {
				if !sleepCtx(ctx, w.cfg.PollInterval) {
					return ctx.Err()
				}
				continue
			}
			w.logger.Error("slice claim failed", logging.Err(err))
			if !sleepCtx(ctx, w.cfg.RetryBackoff) {
				return ctx.Err()
			}
			continue
		}

		w.processClaim(ctx, j, s)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (w *Worker) processClaim(ctx context.Context, j *job.Job, s *job.Slice) {
	log := w.logger.With(
		logging.String("job_id", j.ID.String()),
		logging.Int("slice", s.Index))
	log.Info("slice claimed", logging.Int64("begin", s.Begin), logging.Int64("end", s.End))

	if w.metrics != nil {
		w.metrics.JobsActive.WithLabelValues(w.id).Inc()
		defer w.metrics.JobsActive.WithLabelValues(w.id).Dec()
	}
	w.publishBestEffort(ctx, kafka.TopicSliceClaimed, "job.slice.claimed", j.ID.String(), kafka.SliceClaimedPayload{
		JobID:      j.ID.String(),
		SliceIndex: s.Index,
		WorkerID:   w.id,
		Begin:      s.Begin,
		End:        s.End,
		ClaimedAt:  time.Now().UTC(),
	}, log)

	started := time.Now()
	prog, rows, err := w.processSlice(ctx, j, s)
	if err != nil {
		w.handleSliceFailure(ctx, j, s, err, log)
		return
	}

	if _, uerr := w.store.UploadSliceResult(ctx, j.ID.String(), s.Index, buildResultCSV(rows)); uerr != nil {
		w.handleSliceFailure(ctx, j, s, uerr, log)
		return
	}

	updated, cerr := w.repo.CompleteSlice(ctx, s, prog)
	if cerr != nil {
		w.handleSliceFailure(ctx, j, s, cerr, log)
		return
	}

	// Redis bookkeeping is best-effort; the job row already carries the
	// authoritative counters.
	jobID := j.ID.String()
	if err := w.cache.IncrProgress(ctx, jobID, prog); err != nil {
		log.Warn("failed to increment cached progress", logging.Err(err))
	}
	if len(rows) > 0 {
		hits := make([]redis.Hit, len(rows))
		for i, r := range rows {
			hits[i] = redis.Hit{Ligand: r.Ligand, Energy: r.Energy}
		}
		if err := w.cache.RecordHits(ctx, jobID, hits); err != nil {
			log.Warn("failed to record hits", logging.Err(err))
		}
	}
	if err := w.cache.SetStatus(ctx, updated); err != nil {
		log.Warn("failed to refresh cached status", logging.Err(err))
	}

	w.publishBestEffort(ctx, kafka.TopicSliceCompleted, "job.slice.completed", jobID, kafka.SliceCompletedPayload{
		JobID:           jobID,
		SliceIndex:      s.Index,
		WorkerID:        w.id,
		DockedLigands:   prog.Docked,
		FilteredLigands: prog.Filtered,
		SkippedLigands:  prog.Skipped,
		BestEnergy:      bestEnergy(rows),
		ElapsedSeconds:  time.Since(started).Seconds(),
		CompletedAt:     time.Now().UTC(),
	}, log)

	log.Info("slice completed",
		logging.Int64("docked", prog.Docked),
		logging.Int64("filtered", prog.Filtered),
		logging.Int64("skipped", prog.Skipped),
		logging.Duration("elapsed", time.Since(started)))

	if updated.Status == job.StatusCompleted {
		if err := w.finalizeJob(ctx, updated, log); err != nil {
			log.Error("job finalization failed", logging.Err(err))
		}
	}
}

func (w *Worker) handleSliceFailure(ctx context.Context, j *job.Job, s *job.Slice, cause error, log logging.Logger) {
	log.Error("slice processing failed",
		logging.Int("attempts", s.Attempts),
		logging.Err(cause))
	if w.metrics != nil {
		prometheus.RecordError(w.metrics, "worker", "slice_failure", "error")
		w.metrics.JobSliceRetries.WithLabelValues("processing_error").Inc()
	}

	maxRetries := w.cfg.MaxRetries
	if errors.IsCode(cause, errors.ErrCodeGridAlloc) {
		// The grid budget is a property of the job's box and spacing;
		// retrying on another worker yields the same failure.
		maxRetries = 0
	}

	if err := w.repo.ReleaseSlice(ctx, s, maxRetries); err != nil {
		log.Error("slice release failed", logging.Err(err))
	}
	if s.Attempts >= maxRetries {
		w.publishBestEffort(ctx, kafka.TopicJobFailed, "job.failed", j.ID.String(), kafka.JobFailedPayload{
			JobID:      j.ID.String(),
			SliceIndex: s.Index,
			Reason:     cause.Error(),
			FailedAt:   time.Now().UTC(),
		}, log)
		if err := w.cache.InvalidateJob(ctx, j.ID.String()); err != nil {
			log.Warn("failed to invalidate job cache", logging.Err(err))
		}
	}
}

// resultRow is one line of a slice CSV: a docked ligand and its reported
// energy in kcal/mol.
type resultRow struct {
	Ligand string
	Energy float64
}

func (w *Worker) processSlice(ctx context.Context, j *job.Job, s *job.Slice) (job.Progress, []resultRow, error) {
	var prog job.Progress

	engine, err := w.engineFn(ctx, j)
	if err != nil {
		return prog, nil, err
	}

	rc, _, err := w.store.OpenLibrary(ctx, j.LibraryKey)
	if err != nil {
		return prog, nil, err
	}
	defer rc.Close()

	scanner := molecule.NewLibraryScanner(rc)

	// The library is a sequential stream; reaching the slice means parsing
	// and discarding every block before Begin.
	for skip := int64(0); skip < s.Begin; skip++ {
		if _, err := scanner.Next(); err == io.EOF {
			break
		}
	}

	rng := rand.New(rand.NewSource(sliceSeed(j.ID, s.Index)))
	rows := make([]resultRow, 0, s.End-s.Begin)

	var lastErr error
	for ord := s.Begin; ord < s.End; ord++ {
		if ctx.Err() != nil {
			return prog, nil, ctx.Err()
		}

		lig, err := scanner.Next()
		if err == io.EOF {
			// Library shorter than declared at submission; account for the
			// missing tail so slice counters still sum to the slice width.
			prog.Skipped += s.End - ord
			break
		}
		if err != nil {
			// A malformed block is skipped; the same error twice in a row
			// means the scanner itself is stuck on a read failure.
			if lastErr != nil && err == lastErr {
				return prog, nil, err
			}
			lastErr = err
			prog.Skipped++
			continue
		}
		lastErr = nil

		if ok, reason := w.filter.Check(lig.Props); !ok {
			prog.Filtered++
			if w.metrics != nil {
				prometheus.RecordLigandFiltered(w.metrics, reason)
			}
			continue
		}

		dockStart := time.Now()
		outcome, err := engine.Dock(lig.Model, rng)
		if err != nil {
			// A grid allocation failure is a property of the job's box and
			// spacing, not of one ligand: it would recur for every ligand
			// that follows, so the slice fails instead of draining as skips.
			if errors.IsCode(err, errors.ErrCodeGridAlloc) {
				return prog, nil, errors.Wrap(err, errors.ErrCodeGridAlloc,
					fmt.Sprintf("grid maps cannot be allocated for ligand %s", lig.Model.Name))
			}
			prog.Skipped++
			w.logger.Debug("docking failed",
				logging.String("ligand", lig.Model.Name),
				logging.Err(err))
			continue
		}
		if outcome.Skipped {
			prog.Skipped++
			if w.metrics != nil {
				prometheus.RecordLigandDocked(w.metrics, j.LibraryKey, true, 0, time.Since(dockStart))
			}
			continue
		}

		prog.Docked++
		if w.metrics != nil {
			prometheus.RecordLigandDocked(w.metrics, j.LibraryKey, false, outcome.ReportedEnergy, time.Since(dockStart))
		}
		rows = append(rows, resultRow{Ligand: lig.Model.Name, Energy: outcome.ReportedEnergy})
	}

	return prog, rows, nil
}

// engineFor returns a docking engine prepared for j's receptor, reusing the
// previous one when the job has not changed.
func (w *Worker) engineFor(ctx context.Context, j *job.Job) (*docking.Engine, error) {
	if w.engine != nil && w.engineJobID == j.ID {
		return w.engine, nil
	}

	data, err := w.store.DownloadReceptor(ctx, j.ReceptorKey)
	if err != nil {
		return nil, err
	}
	rec, err := molecule.ParseReceptor(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	engine, err := docking.NewEngine(
		docking.Vec3(j.Center),
		docking.Vec3(j.Size),
		rec,
		w.pool,
		engineConfig(w.dockCfg),
		w.logger.Named("docking"),
	)
	if err != nil {
		return nil, err
	}

	w.engineJobID = j.ID
	w.engine = engine
	return engine, nil
}

// engineConfig maps the configuration file section onto the engine tunables.
func engineConfig(c config.DockingConfig) docking.Config {
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

// sliceSeed derives a deterministic master seed from the job identity and
// slice index, so a retried slice reproduces the identical result set.
func sliceSeed(jobID uuid.UUID, sliceIndex int) int64 {
	h := fnv.New64a()
	h.Write(jobID[:])
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(sliceIndex))
	h.Write(idx[:])
	return int64(h.Sum64() & (1<<63 - 1))
}

func buildResultCSV(rows []resultRow) []byte {
	var b strings.Builder
	b.WriteString(resultCSVHeader)
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(r.Ligand)
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(r.Energy, 'f', 3, 64))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func parseResultCSV(data []byte) []resultRow {
	lines := strings.Split(string(data), "\n")
	rows := make([]resultRow, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line == resultCSVHeader {
			continue
		}
		i := strings.LastIndexByte(line, ',')
		if i < 0 {
			continue
		}
		energy, err := strconv.ParseFloat(line[i+1:], 64)
		if err != nil {
			continue
		}
		rows = append(rows, resultRow{Ligand: line[:i], Energy: energy})
	}
	return rows
}

func bestEnergy(rows []resultRow) float64 {
	best := 0.0
	for i, r := range rows {
		if i == 0 || r.Energy < best {
			best = r.Energy
		}
	}
	return best
}

// finalizeJob merges the per-slice CSVs into one energy-ranked summary and
// records its key on the job. Several workers can race here when they finish
// the last slices near-simultaneously; a distributed lock elects one and the
// losers walk away.
func (w *Worker) finalizeJob(ctx context.Context, j *job.Job, log logging.Logger) error {
	jobID := j.ID.String()
	mu := w.locks.NewMutex("finalize:"+jobID, redis.WithLockTTL(finalizeLockTTL))
	got, err := mu.TryLock(ctx)
	if err != nil {
		return err
	}
	if !got {
		log.Debug("another worker is finalizing the job")
		return nil
	}
	defer func() {
		if err := mu.Unlock(ctx); err != nil {
			log.Warn("failed to release finalize lock", logging.Err(err))
		}
	}()

	keys, err := w.store.ListSliceResults(ctx, jobID)
	if err != nil {
		return err
	}

	var rows []resultRow
	for _, key := range keys {
		data, err := w.store.DownloadSliceResult(ctx, key)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeJobResultWrite, fmt.Sprintf("reading slice result %s", key))
		}
		rows = append(rows, parseResultCSV(data)...)
	}
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Energy < rows[b].Energy })

	resultKey, err := w.store.UploadResult(ctx, jobID, buildResultCSV(rows))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeJobResultWrite, "uploading merged result")
	}
	if err := w.repo.SetResultKey(ctx, j.ID, resultKey); err != nil {
		return err
	}
	j.ResultKey = resultKey
	if err := w.cache.SetStatus(ctx, j); err != nil {
		log.Warn("failed to refresh cached status", logging.Err(err))
	}

	now := time.Now().UTC()
	completedAt := now
	if j.CompletedAt != nil {
		completedAt = *j.CompletedAt
	}
	w.publishBestEffort(ctx, kafka.TopicJobCompleted, "job.completed", jobID, kafka.JobCompletedPayload{
		JobID:           jobID,
		Name:            j.Name,
		ResultKey:       resultKey,
		DockedLigands:   j.DockedLigands,
		FilteredLigands: j.FilteredLigands,
		SkippedLigands:  j.SkippedLigands,
		CompletedAt:     completedAt,
	}, log)
	if j.Email != "" {
		w.publishBestEffort(ctx, kafka.TopicNotification, "notification.send", jobID, kafka.NotificationPayload{
			Recipient: j.Email,
			Channel:   "email",
			Subject:   fmt.Sprintf("Screening job %q completed", j.Name),
			Body:      fmt.Sprintf("Docked %d of %d ligands. Results: %s", j.DockedLigands, j.TotalLigands, resultKey),
			Priority:  "normal",
		}, log)
	}
	if w.metrics != nil {
		prometheus.RecordJobCompleted(w.metrics, j.LibraryKey, string(job.StatusCompleted), completedAt.Sub(j.CreatedAt))
	}

	log.Info("job finalized",
		logging.String("result_key", resultKey),
		logging.Int64("docked", j.DockedLigands),
		logging.Int64("ranked_rows", int64(len(rows))))
	return nil
}

func (w *Worker) publishBestEffort(ctx context.Context, topic, eventType, jobID string, payload interface{}, log logging.Logger) {
	if err := publishEvent(ctx, w.publisher, topic, eventType, eventSourceWorker, jobID, payload); err != nil {
		log.Warn("failed to publish event",
			logging.String("topic", topic),
			logging.Err(err))
	}
}
