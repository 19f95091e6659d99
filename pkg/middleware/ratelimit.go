package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit throttles the listed paths with a shared token bucket. Other
// paths pass through.
func RateLimit(limiter *rate.Limiter, paths ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(paths))
	for _, p := range paths {
		limited[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limited[r.URL.Path] && !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Too Many Requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
