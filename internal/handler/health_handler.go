package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats exposes worker pool occupancy
type PoolStats interface {
	Busy() int
	Size() int
	GetJobQueueLength() int
}

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	ledger    Pinger
	pool      PoolStats
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(ledger Pinger, pool PoolStats, version string) *HealthHandler {
	return &HealthHandler{
		ledger:    ledger,
		pool:      pool,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	Ledger        string `json:"ledger"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	BusyRunners   int    `json:"busy_runners"`
	RunnerSlots   int    `json:"runner_slots"`
	QueuedChunks  int    `json:"queued_chunks"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready  bool   `json:"ready"`
	Ledger string `json:"ledger"`
}

func (h *HealthHandler) ledgerStatus(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.ledger.Ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Ledger:        h.ledgerStatus(r.Context()),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if h.pool != nil {
		response.BusyRunners = h.pool.Busy()
		response.RunnerSlots = h.pool.Size()
		response.QueuedChunks = h.pool.GetJobQueueLength()
	}

	writeJSON(w, http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.ledgerStatus(r.Context())
	ready := status == "connected"

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Ready:  ready,
		Ledger: status,
	})
}
