package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "leitstand/pkg/domain-errors"
	"leitstand/pkg/platform/httputil"
)

// AuthHeader carries the shared ingest token.
const AuthHeader = "X-Auth"

// RequireToken rejects requests whose X-Auth header does not match token.
// An empty configured token rejects everything.
func RequireToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AuthHeader)
			if got == "" || len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				ctx := r.Context()
				reason := "invalid token"
				if got == "" {
					reason = "missing token"
				}
				logger.WarnContext(ctx, "unauthorized access - "+reason,
					"request_id", GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid X-Auth header"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
