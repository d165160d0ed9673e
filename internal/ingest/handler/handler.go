package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"leitstand/internal/ingest/service"
	"leitstand/internal/platform/middleware"
	"leitstand/pkg/domain"
	dErrors "leitstand/pkg/domain-errors"
	"leitstand/pkg/platform/httputil"
)

// Service defines the interface for ingest operations.
type Service interface {
	Ingest(ctx context.Context, rawDomain string, body []byte) (*service.Result, error)
}

// Handler serves the ingest, health and version endpoints.
type Handler struct {
	logger    *slog.Logger
	ingest    Service
	token     string
	maxBody   int64
	version   string
	rateLimit func(http.Handler) http.Handler
}

// Config carries the handler's request policy.
type Config struct {
	Token   string
	MaxBody int64
	Version string
	// RateLimit guards POST /ingest. Nil disables rate limiting.
	RateLimit func(http.Handler) http.Handler
}

// New creates a new ingest Handler.
func New(ingest Service, logger *slog.Logger, cfg Config) *Handler {
	rl := cfg.RateLimit
	if rl == nil {
		rl = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		logger:    logger,
		ingest:    ingest,
		token:     cfg.Token,
		maxBody:   cfg.MaxBody,
		version:   cfg.Version,
		rateLimit: rl,
	}
}

// Register registers the ingest routes with the chi router. Rate limiting
// runs before auth, and the body size check after it, so unauthenticated
// callers learn nothing about the size limit.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Use(middleware.RequireToken(h.token, h.logger))
		r.Use(middleware.LimitBody(h.maxBody))
		r.Post("/ingest/{domain}", h.handleIngest)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(h.token, h.logger))
		r.Get("/health", h.handleHealth)
		r.Get("/version", h.handleVersion)
	})
}

// handleIngest appends the body to the JSONL file of the path domain.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	rawDomain, err := url.PathUnescape(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, domain.NewDomainError(chi.URLParam(r, "domain"), "malformed escape"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "payload too large"))
			return
		}
		h.logger.WarnContext(ctx, "failed to read request body",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read body"))
		return
	}

	result, err := h.ingest.Ingest(ctx, rawDomain, body)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "ingest failed",
				"request_id", requestID,
				"error", err,
			)
		} else {
			h.logger.InfoContext(ctx, "ingest rejected",
				"request_id", requestID,
				"code", string(dErrors.CodeOf(err)),
				"reason", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.DebugContext(ctx, "ingested",
		"request_id", requestID,
		"domain", result.Domain.String(),
		"lines", result.Lines,
	)
	httputil.WriteText(w, http.StatusOK, "ok")
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"version": h.version})
}
