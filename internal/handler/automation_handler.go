package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dandantas/tasyrunner/internal/items"
	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/dandantas/tasyrunner/pkg/middleware"
)

// JobSubmitter starts jobs
type JobSubmitter interface {
	Submit(ctx context.Context, jobType model.JobType, items []model.WorkItem) (string, error)
	SubmitRetry(ctx context.Context, jobID string) (string, error)
}

// ItemDecoder turns request rows into work items
type ItemDecoder interface {
	Decode(rows []json.RawMessage) ([]model.WorkItem, error)
}

// AutomationHandler accepts new batches
type AutomationHandler struct {
	jobs     JobSubmitter
	decoders map[model.JobType]ItemDecoder
	validate *requestValidator
}

// NewAutomationHandler creates a new automation handler
func NewAutomationHandler(jobs JobSubmitter, decoders map[model.JobType]ItemDecoder) *AutomationHandler {
	return &AutomationHandler{
		jobs:     jobs,
		decoders: decoders,
		validate: newRequestValidator(),
	}
}

// SubmitRequest carries the rows of a new batch. Boletos clients send
// "titulos", own-resource clients send "itens"; "items" is accepted for both.
type SubmitRequest struct {
	Items   []json.RawMessage `json:"items"`
	Titulos []json.RawMessage `json:"titulos"`
	Itens   []json.RawMessage `json:"itens"`
}

func (r SubmitRequest) rows() []json.RawMessage {
	switch {
	case len(r.Items) > 0:
		return r.Items
	case len(r.Titulos) > 0:
		return r.Titulos
	default:
		return r.Itens
	}
}

type batch struct {
	Rows []json.RawMessage `validate:"max=20000"`
}

// SubmitResponse is returned when a batch is accepted
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message"`
}

// Boletos handles POST /api/automations/boletos
func (h *AutomationHandler) Boletos(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, model.JobTypeBoletos)
}

// RecursoProprio handles POST /api/automations/recurso-proprio
func (h *AutomationHandler) RecursoProprio(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, model.JobTypeRecursoProprio)
}

func (h *AutomationHandler) submit(w http.ResponseWriter, r *http.Request, jobType model.JobType) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows := req.rows()
	if err := h.validate.Struct(batch{Rows: rows}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decoder, ok := h.decoders[jobType]
	if !ok {
		writeServiceError(w, model.ErrUnknownJobType)
		return
	}
	workItems, err := decoder.Decode(rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := h.jobs.Submit(r.Context(), jobType, workItems)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("Batch submitted",
		"job_id", jobID,
		"automation_type", jobType,
		"items", len(workItems),
		"subject", middleware.GetSubject(r.Context()),
		"correlation_id", middleware.GetCorrelationID(r.Context()),
	)

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:   jobID,
		Total:   len(workItems),
		Message: "Iniciado",
	})
}

// Retry handles POST /api/jobs/{id}/retry
func (h *AutomationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	newJobID, err := h.jobs.SubmitRetry(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("Retry submitted",
		"job_id", newJobID,
		"retry_of", jobID,
		"correlation_id", middleware.GetCorrelationID(r.Context()),
	)

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:   newJobID,
		Message: "Reprocessamento iniciado",
	})
}

var _ ItemDecoder = (*items.Decoder)(nil)
