package httpmw

import (
	"log/slog"
	"net/http"
)

// CORSValidation logs a warning once at construction time when the
// configured allowed origins include a wildcard — this middleware only
// observes the configuration, it does not itself enforce CORS (that's
// github.com/rs/cors, wired in cmd/demo).
func CORSValidation(allowedOrigins []string, logger *slog.Logger) func(http.Handler) http.Handler {
	for _, origin := range allowedOrigins {
		if origin == "*" {
			logger.Warn("CORS wildcard origin configured",
				"origin", origin,
				"risk", "any origin may call the optimizer's demo API",
				"recommendation", "restrict allowed_origins in production")
		}
	}
	return func(next http.Handler) http.Handler {
		return next
	}
}
