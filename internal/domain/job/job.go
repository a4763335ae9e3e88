// Package job defines the screening job aggregate: a receptor, a search box,
// and a ligand library split into fixed-size slices that workers claim and
// dock independently.
package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a screening job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether a job in state s will never change state again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Job is the aggregate root for one virtual screening run.
type Job struct {
	ID   uuid.UUID
	Name string

	// ReceptorKey and LibraryKey locate the input objects in the ligand
	// bucket. ResultKey is filled on completion with the CSV archive key in
	// the result bucket.
	ReceptorKey string
	LibraryKey  string
	ResultKey   string

	// Center and Size define the search box in Å.
	Center [3]float64
	Size   [3]float64

	Status Status

	// TotalLigands is the library size declared at submission; progress
	// counters accumulate as slices complete.
	TotalLigands    int64
	DockedLigands   int64
	FilteredLigands int64
	SkippedLigands  int64

	NumSlices       int
	CompletedSlices int

	// Email, when set, receives a completion notification via the
	// notification topic.
	Email string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// SliceStatus is the lifecycle state of one library slice.
type SliceStatus string

const (
	SlicePending   SliceStatus = "pending"
	SliceClaimed   SliceStatus = "claimed"
	SliceCompleted SliceStatus = "completed"
	SliceFailed    SliceStatus = "failed"
)

// Slice is a contiguous range of library ligands processed as one unit of
// work. Begin is inclusive, End exclusive, both zero-based ligand ordinals
// within the library stream.
type Slice struct {
	JobID  uuid.UUID
	Index  int
	Begin  int64
	End    int64
	Status SliceStatus

	// Attempts counts claims, successful or not; the worker gives up on a
	// slice once the retry budget is spent and marks it failed.
	Attempts int
	WorkerID string

	ClaimedAt   *time.Time
	CompletedAt *time.Time
}

// Progress summarises per-slice counters merged into the job on completion.
type Progress struct {
	Docked   int64
	Filtered int64
	Skipped  int64
}

// Repository is the persistence contract for jobs and their slices.
type Repository interface {
	// Create persists a new job and its slice set atomically.
	Create(ctx context.Context, j *Job) error

	// GetByID fetches one job. Returns ErrCodeJobNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// List returns jobs ordered newest first, filtered by status when
	// status is non-empty.
	List(ctx context.Context, status Status, limit, offset int) ([]*Job, error)

	// ClaimSlice atomically claims the next pending slice of any runnable
	// job for workerID, transitioning the job to running on the first
	// claim. Returns ErrCodeJobSliceUnavailable when no work is pending.
	ClaimSlice(ctx context.Context, workerID string) (*Job, *Slice, error)

	// CompleteSlice marks a slice done, folds its progress into the job
	// counters, and transitions the job to completed when it was the last
	// slice. Returns the updated job.
	CompleteSlice(ctx context.Context, s *Slice, p Progress) (*Job, error)

	// ReleaseSlice returns a claimed slice to the pending state after a
	// worker failure, or marks it failed once attempts exceed maxAttempts.
	ReleaseSlice(ctx context.Context, s *Slice, maxAttempts int) error

	// SetResultKey records the result archive location on a job.
	SetResultKey(ctx context.Context, id uuid.UUID, key string) error

	// Cancel transitions a non-terminal job to canceled.
	Cancel(ctx context.Context, id uuid.UUID) error
}

// NewJob builds a pending job with its slice ranges precomputed.
func NewJob(name, receptorKey, libraryKey string, center, size [3]float64, totalLigands int64, sliceSize int) *Job {
	if sliceSize < 1 {
		sliceSize = 1
	}
	n := int((totalLigands + int64(sliceSize) - 1) / int64(sliceSize))
	if n < 1 {
		n = 1
	}
	return &Job{
		ID:           uuid.New(),
		Name:         name,
		ReceptorKey:  receptorKey,
		LibraryKey:   libraryKey,
		Center:       center,
		Size:         size,
		Status:       StatusPending,
		TotalLigands: totalLigands,
		NumSlices:    n,
		CreatedAt:    time.Now().UTC(),
	}
}

// Slices materialises the slice ranges for j given the configured slice size.
func (j *Job) Slices(sliceSize int) []Slice {
	if sliceSize < 1 {
		sliceSize = 1
	}
	out := make([]Slice, 0, j.NumSlices)
	for i := 0; i < j.NumSlices; i++ {
		begin := int64(i) * int64(sliceSize)
		end := begin + int64(sliceSize)
		if end > j.TotalLigands {
			end = j.TotalLigands
		}
		out = append(out, Slice{
			JobID:  j.ID,
			Index:  i,
			Begin:  begin,
			End:    end,
			Status: SlicePending,
		})
	}
	return out
}

// PercentComplete returns job completion in [0,100] based on slices.
func (j *Job) PercentComplete() float64 {
	if j.NumSlices == 0 {
		return 0
	}
	return 100 * float64(j.CompletedSlices) / float64(j.NumSlices)
}
