package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/campusaid-backend/pkg/types"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS returns middleware that applies the configured origin policy, falling back
// to local development origins when none are configured.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := origins
	if len(allowed) == 0 {
		allowed = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, "X-Refresh-Token", "X-Requested-With"},
		ExposedHeaders:   []string{types.RequestIDHeader, idempotentReplayedHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
