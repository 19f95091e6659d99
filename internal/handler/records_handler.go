package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dandantas/tasyrunner/internal/records"
)

// RecordLookup reads candidate items from the ERP database
type RecordLookup interface {
	Titles(ctx context.Context, f records.TitleFilter) ([]records.Row, error)
	Authorizations(ctx context.Context, f records.AuthorizationFilter) ([]records.Row, error)
}

// RecordsHandler serves the read-only ERP lookups. A nil lookup answers 503.
type RecordsHandler struct {
	lookup   RecordLookup
	validate *requestValidator
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(lookup RecordLookup) *RecordsHandler {
	return &RecordsHandler{lookup: lookup, validate: newRequestValidator()}
}

// Titles handles GET /api/titulos
func (h *RecordsHandler) Titles(w http.ResponseWriter, r *http.Request) {
	if h.lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "ERP database is not configured")
		return
	}

	q := r.URL.Query()
	filter := records.TitleFilter{
		Number:       q.Get("nr_titulo"),
		Person:       q.Get("pessoa"),
		Status:       q.Get("status"),
		Origin:       q.Get("origem"),
		PersonType:   q.Get("tipo_pessoa"),
		ContractType: q.Get("tipo_contratacao"),
		DueFrom:      q.Get("dt_inicio"),
		DueTo:        q.Get("dt_fim"),
	}
	if err := h.validate.Struct(filter); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.lookup.Titles(r.Context(), filter)
	if err != nil {
		slog.Error("Title lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// Authorizations handles GET /api/recurso-proprio/autorizacoes
func (h *RecordsHandler) Authorizations(w http.ResponseWriter, r *http.Request) {
	if h.lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "ERP database is not configured")
		return
	}

	q := r.URL.Query()
	filter := records.AuthorizationFilter{
		From:     q.Get("dt_inicio"),
		To:       q.Get("dt_fim"),
		Sequence: q.Get("nr_sequencia"),
	}
	if err := h.validate.Struct(filter); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.lookup.Authorizations(r.Context(), filter)
	if err != nil {
		slog.Error("Authorization lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rows)
}
