// Package service validates ingest requests and appends them as JSONL to
// the per-domain file under the data directory.
package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leitstand/internal/ingest/metrics"
	"leitstand/internal/storage"
	"leitstand/pkg/domain"
	dErrors "leitstand/pkg/domain-errors"
	"leitstand/pkg/platform/sentinel"
	"leitstand/pkg/requestcontext"
)

const tracerName = "leitstand/internal/ingest/service"

// Appender persists lines to a file inside the base directory.
type Appender interface {
	Append(ctx context.Context, filename string, lines [][]byte) error
}

// Result describes a successful ingest.
type Result struct {
	Domain domain.Name
	Path   string
	Lines  int
}

// Service implements the ingest pipeline.
type Service struct {
	base     storage.BaseDir
	appender Appender
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New builds a Service writing below base through appender.
func New(base storage.BaseDir, appender Appender, opts ...Option) (*Service, error) {
	if base.IsZero() {
		return nil, errors.New("ingest service requires an opened base directory")
	}
	if appender == nil {
		return nil, errors.New("ingest service requires an appender")
	}
	s := &Service{
		base:     base,
		appender: appender,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest validates rawDomain, resolves its file, converts body to JSONL
// lines and appends them. Every failure carries a dErrors code.
func (s *Service) Ingest(ctx context.Context, rawDomain string, body []byte) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.Ingest")
	defer span.End()

	result, err := s.ingest(ctx, rawDomain, body)
	if err != nil {
		code := dErrors.CodeOf(err)
		s.metrics.IncrementOutcome(string(code))
		span.SetAttributes(attribute.String("leitstand.error_code", string(code)))
		span.SetStatus(codes.Error, string(code))
		span.RecordError(err)
		return nil, err
	}

	s.metrics.IncrementOutcome(metrics.OutcomeOK)
	s.metrics.AddLines(result.Lines)
	span.SetAttributes(attribute.Int("leitstand.lines", result.Lines))
	return result, nil
}

func (s *Service) ingest(ctx context.Context, rawDomain string, body []byte) (*Result, error) {
	name, err := domain.ParseName(rawDomain)
	if err != nil {
		s.metrics.IncrementRejection(metrics.StageValidate)
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("leitstand.domain", name.String()))

	path, err := s.base.ResolveName(name)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDomain) {
			s.metrics.IncrementRejection(metrics.StageResolve)
		}
		return nil, err
	}

	filename := filepath.Base(path)
	if filename != storage.TargetFilename(name) || filepath.Dir(path) != s.base.Path() {
		s.metrics.IncrementRejection(metrics.StageTarget)
		s.logger.ErrorContext(ctx, "resolved path escaped the expected target",
			"request_id", requestcontext.RequestID(ctx),
			"domain", name.String(),
			"path", path,
		)
		return nil, domain.NewDomainError(rawDomain, "invalid target")
	}

	lines, err := encodeEntries(body, name)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidPayload) || dErrors.HasCode(err, dErrors.CodeDomainMismatch) {
			s.metrics.IncrementRejection(metrics.StageEntry)
		}
		return nil, err
	}

	if err := s.append(ctx, name, filename, lines); err != nil {
		return nil, err
	}
	return &Result{Domain: name, Path: path, Lines: len(lines)}, nil
}

func (s *Service) append(ctx context.Context, name domain.Name, filename string, lines [][]byte) error {
	ctx, span := s.tracer.Start(ctx, "ingest.append",
		trace.WithAttributes(attribute.String("leitstand.file", filename)))
	defer span.End()

	start := time.Now()
	err := s.appender.Append(ctx, filename, lines)
	s.metrics.ObserveAppend(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	span.RecordError(err)
	requestID := requestcontext.RequestID(ctx)
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		s.logger.WarnContext(ctx, "lock timeout", "request_id", requestID, "file", filename)
		return dErrors.Wrap(err, dErrors.CodeLockTimeout, "lock timeout")
	case errors.Is(err, sentinel.ErrInsufficientStorage):
		s.logger.ErrorContext(ctx, "disk full", "request_id", requestID, "file", filename)
		return dErrors.Wrap(err, dErrors.CodeInsufficientStorage, "insufficient storage")
	default:
		s.logger.ErrorContext(ctx, "append failed",
			"request_id", requestID,
			"domain", name.String(),
			"file", filename,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "append failed")
	}
}
