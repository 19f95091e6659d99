package handler

import (
	"net/http"
	"time"

	"github.com/dandantas/tasyrunner/pkg/middleware"
	"golang.org/x/time/rate"
)

// Router handles HTTP routing
type Router struct {
	authHandler       *AuthHandler
	automationHandler *AutomationHandler
	jobHandler        *JobHandler
	recordsHandler    *RecordsHandler
	healthHandler     *HealthHandler
	tokens            middleware.TokenValidator // nil disables auth
	corsConfig        middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	authHandler *AuthHandler,
	automationHandler *AutomationHandler,
	jobHandler *JobHandler,
	recordsHandler *RecordsHandler,
	healthHandler *HealthHandler,
	tokens middleware.TokenValidator,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		authHandler:       authHandler,
		automationHandler: automationHandler,
		jobHandler:        jobHandler,
		recordsHandler:    recordsHandler,
		healthHandler:     healthHandler,
		tokens:            tokens,
		corsConfig:        corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", rt.healthHandler.Health)
	mux.HandleFunc("GET /ready", rt.healthHandler.Ready)

	// API endpoints
	mux.HandleFunc("POST /api/login", rt.authHandler.Login)
	mux.HandleFunc("POST /api/automations/boletos", rt.automationHandler.Boletos)
	mux.HandleFunc("POST /api/automations/recurso-proprio", rt.automationHandler.RecursoProprio)
	mux.HandleFunc("GET /api/jobs", rt.jobHandler.List)
	mux.HandleFunc("GET /api/jobs/{id}", rt.jobHandler.Get)
	mux.HandleFunc("GET /api/jobs/{id}/download", rt.jobHandler.Download)
	mux.HandleFunc("POST /api/jobs/{id}/retry", rt.automationHandler.Retry)
	mux.HandleFunc("GET /api/dashboard", rt.jobHandler.Dashboard)
	mux.HandleFunc("GET /api/titulos", rt.recordsHandler.Titles)
	mux.HandleFunc("GET /api/recurso-proprio/autorizacoes", rt.recordsHandler.Authorizations)

	var handler http.Handler = mux
	if rt.tokens != nil {
		handler = middleware.Auth(rt.tokens, "/api/", "/api/login")(handler)
	}

	handler = middleware.RateLimit(rate.NewLimiter(rate.Every(time.Second), 5), "/api/login")(handler)

	// CORS wraps auth so preflight requests never need a token
	handler = middleware.CORS(rt.corsConfig)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging("/health", "/ready")(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}
