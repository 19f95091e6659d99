package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

const SubjectKey contextKey = "subject"

// TokenValidator checks a bearer token and returns its subject
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Auth requires a valid bearer token on every path under prefix except the
// public ones. Preflight requests pass through.
func Auth(validator TokenValidator, prefix string, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || !strings.HasPrefix(r.URL.Path, prefix) || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			subject, err := validator.ValidateToken(token)
			if err != nil {
				slog.Warn("Rejected API token",
					"path", r.URL.Path,
					"correlation_id", GetCorrelationID(r.Context()),
					"error", err,
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject returns the authenticated subject, if any
func GetSubject(ctx context.Context) string {
	if s, ok := ctx.Value(SubjectKey).(string); ok {
		return s
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"Unauthorized","message":"` + message + `"}`))
}
