// Jobs sub-client: submit screening jobs, poll progress, fetch ranked hits.

package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

// JobsClient accesses the /api/v1/jobs resource.
type JobsClient struct {
	client *Client
}

// SubmitJobRequest describes a new virtual screening job.
type SubmitJobRequest struct {
	Name         string     `json:"name"`
	ReceptorKey  string     `json:"receptor_key"`
	LibraryKey   string     `json:"library_key"`
	Center       [3]float64 `json:"center"`
	Size         [3]float64 `json:"size"`
	TotalLigands int64      `json:"total_ligands"`
	Email        string     `json:"email,omitempty"`
}

// Job is a screening job as returned by the API.
type Job struct {
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

// ListJobsOptions filters and paginates List.
type ListJobsOptions struct {
	Status   string
	Page     int
	PageSize int
}

// JobList is a paginated job listing.
type JobList struct {
	Jobs     []*Job `json:"jobs"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Hit is one leaderboard entry: a ligand and its predicted free energy in
// kcal/mol, lower is better.
type Hit struct {
	Rank   int     `json:"rank"`
	Ligand string  `json:"ligand"`
	Energy float64 `json:"energy"`
}

// topHitsResponse mirrors the API envelope for TopHits.
type topHitsResponse struct {
	JobID string `json:"job_id"`
	Hits  []Hit  `json:"hits"`
}

// resultURLResponse mirrors the API envelope for ResultURL.
type resultURLResponse struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

// libraryUploadResponse mirrors the API envelope for LibraryUploadURL.
type libraryUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Submit creates a new screening job.
func (jc *JobsClient) Submit(ctx context.Context, req *SubmitJobRequest) (*Job, error) {
	if req == nil {
		return nil, errors.New(errors.ErrCodeValidation, "request is required")
	}

	var job Job
	if err := jc.client.post(ctx, "/api/v1/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Get fetches a job by ID, including live progress counters.
func (jc *JobsClient) Get(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "jobID is required")
	}

	var job Job
	if err := jc.client.get(ctx, "/api/v1/jobs/"+url.PathEscape(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns a page of jobs, optionally filtered by status.
func (jc *JobsClient) List(ctx context.Context, opts *ListJobsOptions) (*JobList, error) {
	q := url.Values{}
	if opts != nil {
		if opts.Status != "" {
			q.Set("status", opts.Status)
		}
		if opts.Page > 0 {
			q.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			q.Set("page_size", strconv.Itoa(opts.PageSize))
		}
	}

	path := "/api/v1/jobs"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var list JobList
	if err := jc.client.get(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Cancel cancels a pending or running job.
func (jc *JobsClient) Cancel(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New(errors.ErrCodeValidation, "jobID is required")
	}
	return jc.client.delete(ctx, "/api/v1/jobs/"+url.PathEscape(jobID))
}

// TopHits returns the limit best-scoring ligands of a job, ranked by energy
// ascending. limit <= 0 uses the server default.
func (jc *JobsClient) TopHits(ctx context.Context, jobID string, limit int) ([]Hit, error) {
	if jobID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "jobID is required")
	}

	path := fmt.Sprintf("/api/v1/jobs/%s/hits", url.PathEscape(jobID))
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp topHitsResponse
	if err := jc.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// ResultURL returns a presigned download URL for a completed job's merged
// result CSV.
func (jc *JobsClient) ResultURL(ctx context.Context, jobID string) (string, error) {
	if jobID == "" {
		return "", errors.New(errors.ErrCodeValidation, "jobID is required")
	}

	var resp resultURLResponse
	if err := jc.client.get(ctx, fmt.Sprintf("/api/v1/jobs/%s/result", url.PathEscape(jobID)), &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// LibraryUploadURL returns a presigned PUT URL for uploading a ligand library
// under the given object key.
func (jc *JobsClient) LibraryUploadURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New(errors.ErrCodeValidation, "key is required")
	}

	var resp libraryUploadResponse
	body := map[string]string{"key": key}
	if err := jc.client.post(ctx, "/api/v1/libraries/upload-url", body, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
