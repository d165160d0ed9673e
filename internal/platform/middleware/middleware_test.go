package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"leitstand/internal/platform/metrics"
)

type MiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
	logs   *bytes.Buffer
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logs = &bytes.Buffer{}
	s.logger = slog.New(slog.NewJSONHandler(s.logs, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *MiddlewareSuite) TestRequestID() {
	s.Run("generates id when absent", func() {
		var seen string
		h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		s.NotEmpty(seen)
		s.Equal(seen, w.Header().Get(RequestIDHeader))
	})

	s.Run("propagates caller id", func() {
		var seen string
		h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		s.Equal("abc-123", seen)
		s.Equal("abc-123", w.Header().Get(RequestIDHeader))
	})

	s.Run("replaces oversized id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
		w := httptest.NewRecorder()
		RequestID(okHandler()).ServeHTTP(w, req)
		s.Len(w.Header().Get(RequestIDHeader), 36)
	})
}

func (s *MiddlewareSuite) TestLogger() {
	h := RequestID(Logger(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodPost, "/ingest/example.com", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	s.Require().NoError(json.Unmarshal(s.logs.Bytes(), &entry))
	s.Equal("access", entry["msg"])
	s.Equal("rid-1", entry["request_id"])
	s.Equal("POST", entry["method"])
	s.Equal("/ingest/example.com", entry["path"])
	s.EqualValues(http.StatusTeapot, entry["status"])
	s.Contains(entry, "duration_ms")
}

func (s *MiddlewareSuite) TestRecovery() {
	h := Recovery(s.logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	s.NotPanics(func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	s.Equal(http.StatusInternalServerError, w.Code)
	body := decodeError(s.T(), w)
	s.Equal("internal_error", body["error"])
	s.NotContains(body, "error_description")
	s.Contains(s.logs.String(), "panic recovered")
}

func (s *MiddlewareSuite) TestRequireToken() {
	h := RequireToken("secret", s.logger)(okHandler())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong token", header: "nope", want: http.StatusUnauthorized},
		{name: "prefix of token", header: "secre", want: http.StatusUnauthorized},
		{name: "correct token", header: "secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeader, tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			s.Equal(tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				s.Equal("unauthorized", decodeError(s.T(), w)["error"])
			}
		})
	}

	s.Run("empty configured token rejects all", func() {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(AuthHeader, "")
		w := httptest.NewRecorder()
		RequireToken("", s.logger)(okHandler()).ServeHTTP(w, req)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *MiddlewareSuite) TestLimitBody() {
	h := LimitBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	s.Run("missing content-length", func() {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		s.Equal(http.StatusLengthRequired, w.Code)
		s.Equal("length_required", decodeError(s.T(), w)["error"])
	})

	s.Run("negative content-length", func() {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		req.Header.Set("Content-Length", "-1")
		req.ContentLength = -1
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("bad_request", decodeError(s.T(), w)["error"])
	})

	s.Run("declared too large", func() {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
		req.Header.Set("Content-Length", "10")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		s.Equal(http.StatusRequestEntityTooLarge, w.Code)
		s.Equal("payload_too_large", decodeError(s.T(), w)["error"])
	})

	s.Run("body longer than declared is capped", func() {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
		req.Header.Set("Content-Length", "4")
		req.ContentLength = 4
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		s.Equal(http.StatusRequestEntityTooLarge, w.Code)
	})

	s.Run("within limit", func() {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		req.Header.Set("Content-Length", "2")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		s.Equal(http.StatusOK, w.Code)
	})
}

func (s *MiddlewareSuite) TestLatencyMiddleware() {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(LatencyMiddleware(m))
	r.Post("/ingest/{domain}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, d := range []string{"a.example", "b.example"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/ingest/"+d, nil))
	}

	assert.Equal(s.T(), 1, testutil.CollectAndCount(m.RequestDuration))
	count, err := testutil.GatherAndCount(reg, "leitstand_http_request_duration_seconds")
	s.Require().NoError(err)
	s.Equal(1, count)
}
