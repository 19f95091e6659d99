package handler

import (
	"log/slog"
	"net/http"

	"github.com/dandantas/tasyrunner/internal/service"
	"github.com/dandantas/tasyrunner/pkg/middleware"
)

// Authenticator issues API tokens
type Authenticator interface {
	Login(username, password string) (*service.Token, error)
}

// AuthHandler handles operator login
type AuthHandler struct {
	auth     Authenticator
	validate *requestValidator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth, validate: newRequestValidator()}
}

// LoginRequest is the login body
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		slog.Warn("Login refused",
			"username", req.Username,
			"correlation_id", middleware.GetCorrelationID(r.Context()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}
