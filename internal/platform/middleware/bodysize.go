package middleware

import (
	"net/http"

	dErrors "leitstand/pkg/domain-errors"
	"leitstand/pkg/platform/httputil"
)

// LimitBody enforces a declared Content-Length no larger than maxBytes and
// caps the body reader for clients that lie about it. Must run after auth so
// unauthenticated callers learn nothing about the limit.
func LimitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// net/http reports -1 for unknown length (chunked) and 0 when the
			// header is absent on a body-less request.
			if r.Header.Get("Content-Length") == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeLengthRequired, "length required"))
				return
			}
			if r.ContentLength < 0 {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid content-length"))
				return
			}
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "payload too large"))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
