// Package requesttime captures one "now" per request so every layer that
// measures or stamps the request agrees on when it started.
package requesttime

import (
	"net/http"
	"time"

	"leitstand/pkg/requestcontext"
)

// Middleware stores the arrival time in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
