package screening

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/MolDock-Screen/internal/domain/job"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

// ObjectStore is the slice of the MinIO layer the screening pipeline uses:
// input objects in the ligand bucket, per-slice and merged CSVs in the
// result bucket. minio.ScreeningStore satisfies it.
type ObjectStore interface {
	DownloadReceptor(ctx context.Context, key string) ([]byte, error)
	OpenLibrary(ctx context.Context, key string) (io.ReadCloser, int64, error)
	InputExists(ctx context.Context, key string) (bool, error)
	UploadSliceResult(ctx context.Context, jobID string, sliceIndex int, data []byte) (string, error)
	ListSliceResults(ctx context.Context, jobID string) ([]string, error)
	DownloadSliceResult(ctx context.Context, key string) ([]byte, error)
	UploadResult(ctx context.Context, jobID string, data []byte) (string, error)
	ResultDownloadURL(ctx context.Context, resultKey string, expiry time.Duration) (string, error)
	LibraryUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Service defines the interface for screening job operations.
type Service interface {
	Submit(ctx context.Context, input *SubmitInput) (*JobView, error)
	Get(ctx context.Context, id string) (*JobView, error)
	List(ctx context.Context, input *ListInput) (*ListResult, error)
	Cancel(ctx context.Context, id string) error
	TopHits(ctx context.Context, id string, k int64) ([]Hit, error)
	ResultURL(ctx context.Context, id string) (string, error)
	LibraryUploadURL(ctx context.Context, key string) (string, error)
}

// SubmitInput contains input for submitting a screening job.
type SubmitInput struct {
	Name         string
	ReceptorKey  string
	LibraryKey   string
	Center       [3]float64
	Size         [3]float64
	TotalLigands int64
	Email        string
}

// ListInput contains input for listing jobs.
type ListInput struct {
	Status   string
	Page     int
	PageSize int
}

// JobView is the application-level job DTO.
type JobView struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	ReceptorKey     string     `json:"receptor_key"`
	LibraryKey      string     `json:"library_key"`
	ResultKey       string     `json:"result_key,omitempty"`
	Center          [3]float64 `json:"center"`
	Size            [3]float64 `json:"size"`
	Status          string     `json:"status"`
	TotalLigands    int64      `json:"total_ligands"`
	DockedLigands   int64      `json:"docked_ligands"`
	FilteredLigands int64      `json:"filtered_ligands"`
	SkippedLigands  int64      `json:"skipped_ligands"`
	NumSlices       int        `json:"num_slices"`
	CompletedSlices int        `json:"completed_slices"`
	PercentComplete float64    `json:"percent_complete"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ListResult is a paginated job listing.
type ListResult struct {
	Jobs     []*JobView `json:"jobs"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// Hit is one leaderboard entry: a ligand and its reported energy in
// kcal/mol, lower is better.
type Hit struct {
	Rank   int     `json:"rank"`
	Ligand string  `json:"ligand"`
	Energy float64 `json:"energy"`
}

const eventSourceAPI = "moldock-api"

// serviceImpl implements the Service interface.
type serviceImpl struct {
	repo      job.Repository
	cache     StatusCache
	store     ObjectStore
	publisher EventPublisher
	sliceSize int
	logger    logging.Logger
}

// NewService creates a new screening application service. sliceSize controls
// how many ligands each worker claims per unit of work.
func NewService(repo job.Repository, cache StatusCache, store ObjectStore, publisher EventPublisher, sliceSize int, logger logging.Logger) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		repo:      repo,
		cache:     cache,
		store:     store,
		publisher: publisher,
		sliceSize: sliceSize,
		logger:    logger,
	}
}

func (s *serviceImpl) Submit(ctx context.Context, input *SubmitInput) (*JobView, error) {
	if input.Name == "" {
		return nil, errors.New(errors.ErrCodeValidation, "name is required")
	}
	if input.ReceptorKey == "" {
		return nil, errors.New(errors.ErrCodeValidation, "receptor_key is required")
	}
	if input.LibraryKey == "" {
		return nil, errors.New(errors.ErrCodeValidation, "library_key is required")
	}
	if input.TotalLigands <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "total_ligands must be positive")
	}
	for i, d := range input.Size {
		if d <= 0 {
			return nil, errors.Newf(errors.ErrCodeBoxInvalid, "box size[%d] must be positive, got %g", i, d)
		}
	}

	if ok, err := s.store.InputExists(ctx, input.ReceptorKey); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "receptor object %q not found", input.ReceptorKey)
	}
	if ok, err := s.store.InputExists(ctx, input.LibraryKey); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Newf(errors.ErrCodeJobLibraryMissing, "library object %q not found", input.LibraryKey)
	}

	j := job.NewJob(input.Name, input.ReceptorKey, input.LibraryKey, input.Center, input.Size, input.TotalLigands, s.sliceSize)
	j.Email = input.Email

	if err := s.repo.Create(ctx, j); err != nil {
		s.logger.Error("failed to create job", logging.String("name", input.Name), logging.Err(err))
		return nil, err
	}

	// Cache and event emission are best-effort: the database row is the
	// source of truth and workers poll it directly.
	if err := s.cache.SetStatus(ctx, j); err != nil {
		s.logger.Warn("failed to cache job status", logging.String("job_id", j.ID.String()), logging.Err(err))
	}
	if err := publishEvent(ctx, s.publisher, kafka.TopicJobSubmitted, "job.submitted", eventSourceAPI, j.ID.String(), kafka.JobSubmittedPayload{
		JobID:        j.ID.String(),
		Name:         j.Name,
		ReceptorKey:  j.ReceptorKey,
		LibraryKey:   j.LibraryKey,
		TotalLigands: j.TotalLigands,
		NumSlices:    j.NumSlices,
		SubmittedAt:  j.CreatedAt,
	}); err != nil {
		s.logger.Warn("failed to publish job.submitted", logging.String("job_id", j.ID.String()), logging.Err(err))
	}

	s.logger.Info("screening job submitted",
		logging.String("job_id", j.ID.String()),
		logging.String("name", j.Name),
		logging.Int64("total_ligands", j.TotalLigands),
		logging.Int("num_slices", j.NumSlices))

	return toJobView(j), nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (*JobView, error) {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.New(errors.ErrCodeValidation, "id must be a UUID")
	}

	j, err := s.cache.GetOrLoadStatus(ctx, id, func(ctx context.Context) (*job.Job, error) {
		return s.repo.GetByID(ctx, jobID)
	})
	if err != nil {
		return nil, err
	}

	view := toJobView(j)
	if !j.Status.Terminal() {
		// The cached snapshot refreshes on a TTL; the progress hash is
		// incremented on every slice completion. Prefer whichever is newer.
		if p, perr := s.cache.Progress(ctx, id); perr == nil {
			if p.Docked > view.DockedLigands {
				view.DockedLigands = p.Docked
			}
			if p.Filtered > view.FilteredLigands {
				view.FilteredLigands = p.Filtered
			}
			if p.Skipped > view.SkippedLigands {
				view.SkippedLigands = p.Skipped
			}
		}
	}
	return view, nil
}

func (s *serviceImpl) List(ctx context.Context, input *ListInput) (*ListResult, error) {
	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize <= 0 {
		input.PageSize = 20
	}
	if input.PageSize > 100 {
		input.PageSize = 100
	}

	status := job.Status(input.Status)
	if input.Status != "" && !status.Valid() {
		return nil, errors.New(errors.ErrCodeValidation, "unknown status filter")
	}

	offset := (input.Page - 1) * input.PageSize
	jobs, err := s.repo.List(ctx, status, input.PageSize, offset)
	if err != nil {
		return nil, err
	}

	views := make([]*JobView, len(jobs))
	for i, j := range jobs {
		views[i] = toJobView(j)
	}
	return &ListResult{
		Jobs:     views,
		Page:     input.Page,
		PageSize: input.PageSize,
	}, nil
}

func (s *serviceImpl) Cancel(ctx context.Context, id string) error {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return errors.New(errors.ErrCodeValidation, "id must be a UUID")
	}

	if err := s.repo.Cancel(ctx, jobID); err != nil {
		return err
	}

	if err := s.cache.InvalidateJob(ctx, id); err != nil {
		s.logger.Warn("failed to invalidate job cache", logging.String("job_id", id), logging.Err(err))
	}
	if err := publishEvent(ctx, s.publisher, kafka.TopicJobCancelled, "job.cancelled", eventSourceAPI, id, kafka.JobCancelledPayload{
		JobID:       id,
		CancelledAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to publish job.cancelled", logging.String("job_id", id), logging.Err(err))
	}

	s.logger.Info("screening job cancelled", logging.String("job_id", id))
	return nil
}

func (s *serviceImpl) TopHits(ctx context.Context, id string, k int64) ([]Hit, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.New(errors.ErrCodeValidation, "id must be a UUID")
	}

	cached, err := s.cache.TopHits(ctx, id, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(cached))
	for i, h := range cached {
		hits[i] = Hit{Rank: i + 1, Ligand: h.Ligand, Energy: h.Energy}
	}
	return hits, nil
}

func (s *serviceImpl) ResultURL(ctx context.Context, id string) (string, error) {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return "", errors.New(errors.ErrCodeValidation, "id must be a UUID")
	}

	j, err := s.cache.GetOrLoadStatus(ctx, id, func(ctx context.Context) (*job.Job, error) {
		return s.repo.GetByID(ctx, jobID)
	})
	if err != nil {
		return "", err
	}
	if j.Status != job.StatusCompleted || j.ResultKey == "" {
		return "", errors.Newf(errors.ErrCodeJobStateInvalid, "job %s has no result yet (status %s)", id, j.Status)
	}
	return s.store.ResultDownloadURL(ctx, j.ResultKey, 0)
}

func (s *serviceImpl) LibraryUploadURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New(errors.ErrCodeValidation, "key is required")
	}
	return s.store.LibraryUploadURL(ctx, key, 0)
}

func toJobView(j *job.Job) *JobView {
	if j == nil {
		return nil
	}
	return &JobView{
		ID:              j.ID.String(),
		Name:            j.Name,
		ReceptorKey:     j.ReceptorKey,
		LibraryKey:      j.LibraryKey,
		ResultKey:       j.ResultKey,
		Center:          j.Center,
		Size:            j.Size,
		Status:          string(j.Status),
		TotalLigands:    j.TotalLigands,
		DockedLigands:   j.DockedLigands,
		FilteredLigands: j.FilteredLigands,
		SkippedLigands:  j.SkippedLigands,
		NumSlices:       j.NumSlices,
		CompletedSlices: j.CompletedSlices,
		PercentComplete: j.PercentComplete(),
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}
