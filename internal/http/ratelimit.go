package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// rateLimiter limits each client IP to perMinute requests.
func rateLimiter(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", r.RemoteAddr, "path", r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
				Header("Retry-After", "60").
				Write(w)
		}),
	)
}
