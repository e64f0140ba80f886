package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// local frontends, used when no origins are configured
var devOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// CORS applies the configured origin allow-list. Replay and rate-limit headers
// are exposed so browser clients can read them.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = devOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Idempotent-Replayed", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
