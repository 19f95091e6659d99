package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dandantas/tasyrunner/internal/export"
	"github.com/dandantas/tasyrunner/internal/model"
)

// JobReader answers read queries about jobs
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, jobType model.JobType, limit int) ([]model.JobSummary, error)
	Export(ctx context.Context, jobID string, format export.Format) ([]byte, string, error)
	Dashboard(ctx context.Context) (*model.DashboardStats, error)
}

// JobHandler serves job status, history and downloads
type JobHandler struct {
	jobs JobReader
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobReader) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// List handles GET /api/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	jobType := model.JobType(r.URL.Query().Get("type"))
	if jobType != "" && !jobType.Valid() {
		writeServiceError(w, model.ErrUnknownJobType)
		return
	}

	summaries, err := h.jobs.ListJobs(r.Context(), jobType, parseQueryInt(r, "limit", 100))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// Get handles GET /api/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// Download handles GET /api/jobs/{id}/download?format=csv|xlsx
func (h *JobHandler) Download(w http.ResponseWriter, r *http.Request) {
	format, ok := export.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	data, filename, err := h.jobs.Export(r.Context(), r.PathValue("id"), format)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Dashboard handles GET /api/dashboard
func (h *JobHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
