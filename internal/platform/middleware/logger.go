package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"leitstand/pkg/requestcontext"
)

// Logger emits one structured "access" line per request. Duration is
// measured from the request-scoped time when one is set.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := requestcontext.Now(r.Context())
			rec := newStatusRecorder(w)
			defer func() {
				logger.InfoContext(r.Context(), "access",
					"request_id", GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"bytes", rec.bytes,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
