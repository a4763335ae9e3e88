package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/MolDock-Screen/internal/application/screening"
	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

// maxRequestBody bounds the size of JSON request bodies.
const maxRequestBody = 1 << 20 // 1 MiB

// JobHandler serves the screening job REST resource.
type JobHandler struct {
	service screening.Service
}

// NewJobHandler creates a new job handler.
func NewJobHandler(service screening.Service) *JobHandler {
	return &JobHandler{service: service}
}

// RegisterRoutes mounts the job resource under the given router.
func (h *JobHandler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/", h.List)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Cancel)
			r.Get("/hits", h.TopHits)
			r.Get("/result", h.ResultURL)
		})
	})
	r.Post("/libraries/upload-url", h.LibraryUploadURL)
}

// SubmitJobRequest is the request body for POST /jobs.
type SubmitJobRequest struct {
	Name         string     `json:"name"`
	ReceptorKey  string     `json:"receptor_key"`
	LibraryKey   string     `json:"library_key"`
	Center       [3]float64 `json:"center"`
	Size         [3]float64 `json:"size"`
	TotalLigands int64      `json:"total_ligands"`
	Email        string     `json:"email,omitempty"`
}

// Submit handles POST /api/v1/jobs.
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	view, err := h.service.Submit(r.Context(), &screening.SubmitInput{
		Name:         req.Name,
		ReceptorKey:  req.ReceptorKey,
		LibraryKey:   req.LibraryKey,
		Center:       req.Center,
		Size:         req.Size,
		TotalLigands: req.TotalLigands,
		Email:        req.Email,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Get handles GET /api/v1/jobs/{jobID}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// List handles GET /api/v1/jobs?status=&page=&page_size=.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	result, err := h.service.List(r.Context(), &screening.ListInput{
		Status:   r.URL.Query().Get("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Cancel handles DELETE /api/v1/jobs/{jobID}.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(r.Context(), chi.URLParam(r, "jobID")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TopHitsResponse is the response body for GET /jobs/{jobID}/hits.
type TopHitsResponse struct {
	JobID string          `json:"job_id"`
	Hits  []screening.Hit `json:"hits"`
}

// TopHits handles GET /api/v1/jobs/{jobID}/hits?limit=.
func (h *JobHandler) TopHits(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	limit := int64(10)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 || n > 1000 {
			writeAppError(w, errors.New(errors.ErrCodeValidation, "limit must be an integer between 1 and 1000"))
			return
		}
		limit = n
	}

	hits, err := h.service.TopHits(r.Context(), jobID, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TopHitsResponse{JobID: jobID, Hits: hits})
}

// ResultURLResponse carries a presigned download URL for job results.
type ResultURLResponse struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

// ResultURL handles GET /api/v1/jobs/{jobID}/result.
func (h *JobHandler) ResultURL(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	url, err := h.service.ResultURL(r.Context(), jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultURLResponse{JobID: jobID, URL: url})
}

// LibraryUploadRequest is the request body for POST /libraries/upload-url.
type LibraryUploadRequest struct {
	Key string `json:"key"`
}

// LibraryUploadResponse carries a presigned upload URL for a ligand library.
type LibraryUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// LibraryUploadURL handles POST /api/v1/libraries/upload-url.
func (h *JobHandler) LibraryUploadURL(w http.ResponseWriter, r *http.Request) {
	var req LibraryUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	url, err := h.service.LibraryUploadURL(r.Context(), req.Key)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LibraryUploadResponse{Key: req.Key, URL: url})
}

// decodeJSON decodes a bounded JSON request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "malformed request body")
	}
	return nil
}
