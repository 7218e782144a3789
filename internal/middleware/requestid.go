package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// RequestID assigns a request id to every inbound request (reusing the
// caller's X-Request-ID when present), echoes it on the response, and
// writes one access log line per request.
func RequestID(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)

		logger.Info("request received",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r)
	})
}
