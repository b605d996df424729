package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"healthpass/internal/audit"
	"healthpass/internal/documents/models"
	"healthpass/internal/platform/kv"
	"healthpass/internal/platform/logger"
	"healthpass/internal/platform/metrics"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/requestcontext"
)

const (
	lastRunKey = "revalidation:last_run"
	dayLayout  = "2006-01-02"
)

// Revalidator removes stored documents that stopped validating, for example
// after they expired.
type Revalidator struct {
	repo      Repository
	validator Validator
	markers   kv.Store
	audit     *audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	// mu keeps two passes from interleaving.
	mu sync.Mutex
}

type RevalidatorOption func(*Revalidator)

func WithRevalidatorLogger(l *slog.Logger) RevalidatorOption {
	return func(r *Revalidator) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithRevalidatorMetrics(m *metrics.Metrics) RevalidatorOption {
	return func(r *Revalidator) {
		r.metrics = m
	}
}

func WithRevalidatorAudit(p *audit.Publisher) RevalidatorOption {
	return func(r *Revalidator) {
		r.audit = p
	}
}

func NewRevalidator(repo Repository, validator Validator, markers kv.Store, opts ...RevalidatorOption) (*Revalidator, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if validator == nil {
		return nil, errors.New("validator is required")
	}
	if markers == nil {
		return nil, errors.New("marker store is required")
	}
	r := &Revalidator{
		repo:      repo,
		validator: validator,
		markers:   markers,
		logger:    logger.Discard(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RevalidateIfNeeded runs a pass unless one already completed on the current
// UTC calendar day. It reports how many documents were removed.
func (r *Revalidator) RevalidateIfNeeded(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := requestcontext.Now(ctx).UTC().Format(dayLayout)
	last, err := r.markers.Load(ctx, lastRunKey)
	switch {
	case err == nil && string(last) == today:
		return 0, nil
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read revalidation marker")
	}
	return r.revalidate(ctx, today)
}

// Revalidate runs a pass regardless of when the last one happened.
func (r *Revalidator) Revalidate(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revalidate(ctx, requestcontext.Now(ctx).UTC().Format(dayLayout))
}

func (r *Revalidator) revalidate(ctx context.Context, today string) (int, error) {
	ctx, span := r.tracer.Start(ctx, "processing.Revalidate")
	defer span.End()

	docs, err := r.repo.Load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "load failed")
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}

	var invalid []models.Document
	for _, doc := range docs {
		err := r.validator.Validate(ctx, doc)
		if err == nil {
			continue
		}
		if !removable(err) {
			span.SetStatus(codes.Error, "validation aborted")
			return 0, fmt.Errorf("revalidate document %s: %w", doc.ID(), err)
		}
		r.logger.InfoContext(ctx, "document no longer valid",
			"document_id", doc.ID().String(),
			"code", string(dErrors.CodeOf(err)),
		)
		invalid = append(invalid, doc)
	}

	if len(invalid) > 0 {
		if err := r.repo.Remove(ctx, models.IDs(invalid)...); err != nil {
			span.SetStatus(codes.Error, "remove failed")
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove invalid documents")
		}
	}
	for _, doc := range invalid {
		r.audit.Emit(ctx, audit.Event{
			Action:     audit.ActionRevalidateRemoved,
			DocumentID: doc.ID().String(),
			Kind:       string(doc.Kind()),
		})
	}
	r.metrics.AddRevalidationRemovals(len(invalid))
	span.SetAttributes(
		attribute.Int("documents", len(docs)),
		attribute.Int("removed", len(invalid)),
	)

	if err := r.markers.Store(ctx, lastRunKey, []byte(today)); err != nil {
		r.logger.WarnContext(ctx, "failed to record revalidation run", "error", err)
	}
	r.logger.InfoContext(ctx, "revalidation finished", "documents", len(docs), "removed", len(invalid))
	return len(invalid), nil
}

// Run calls RevalidateIfNeeded now and on every tick until ctx is done.
func (r *Revalidator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RevalidateIfNeeded(ctx); err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "revalidation failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// removable reports whether err is a verdict about the document rather than
// a failure to reach a verdict.
func removable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable:
		return false
	}
	return true
}
