// Package processing drives documents through the pipeline: parse, validate,
// redeem and store on ingest; periodic revalidation; account release.
package processing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"healthpass/internal/audit"
	"healthpass/internal/documents/models"
	"healthpass/internal/platform/logger"
	"healthpass/internal/platform/metrics"
	dErrors "healthpass/pkg/domain-errors"
)

const tracerName = "healthpass/processing"

type DocumentFactory interface {
	Create(ctx context.Context, raw string) (models.Document, error)
}

type Validator interface {
	Validate(ctx context.Context, doc models.Document) error
}

type Repository interface {
	Store(ctx context.Context, doc models.Document) error
	Remove(ctx context.Context, ids ...models.Identifier) error
	Cached(id models.Identifier) (models.Document, bool)
	Load(ctx context.Context) ([]models.Document, error)
	CurrentAndNew(ctx context.Context) <-chan []models.Document
}

// Redeemer claims documents remotely so one document backs one account.
type Redeemer interface {
	Redeem(ctx context.Context, doc models.Document) error
	Release(ctx context.Context, docs []models.Document) error
}

// ChildProfiles is the part of the profile store an account deletion resets.
type ChildProfiles interface {
	ClearChildren(ctx context.Context) error
}

type Service struct {
	factory   DocumentFactory
	validator Validator
	repo      Repository
	redeemer  Redeemer
	profiles  ChildProfiles
	audit     *audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRedemption enables uniqueness redemption. Without it documents are
// stored as soon as they validate.
func WithRedemption(r Redeemer) Option {
	return func(s *Service) {
		s.redeemer = r
	}
}

// WithChildProfiles lets DeleteAccount clear registered children.
func WithChildProfiles(p ChildProfiles) Option {
	return func(s *Service) {
		s.profiles = p
	}
}

func New(factory DocumentFactory, validator Validator, repo Repository, opts ...Option) (*Service, error) {
	if factory == nil {
		return nil, errors.New("document factory is required")
	}
	if validator == nil {
		return nil, errors.New("validator is required")
	}
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	s := &Service{
		factory:   factory,
		validator: validator,
		repo:      repo,
		logger:    logger.Discard(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RedemptionEnabled reports whether ingest claims documents remotely.
func (s *Service) RedemptionEnabled() bool {
	return s.redeemer != nil
}

// Ingest turns a scanned string into a stored document. A document is only
// stored after it validated and, when enabled, was redeemed.
func (s *Service) Ingest(ctx context.Context, raw string) (doc models.Document, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "processing.Ingest")
	defer func() {
		s.metrics.ObserveIngestLatency(time.Since(start))
		s.metrics.IncrementIngestOutcome(outcome(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome(err))
			s.audit.Emit(ctx, audit.Event{
				Action:     audit.ActionIngestRejected,
				DocumentID: models.NewIdentifier(raw).String(),
				Code:       outcome(err),
			})
		}
		span.End()
	}()

	doc, err = s.parse(ctx, raw)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("document.id", doc.ID().String()),
		attribute.String("document.kind", string(doc.Kind())),
	)

	if err := s.validator.Validate(ctx, doc); err != nil {
		s.logger.InfoContext(ctx, "document failed validation",
			"document_id", doc.ID().String(),
			"code", outcome(err),
		)
		return nil, err
	}

	if s.redeemer != nil {
		if err := s.redeemer.Redeem(ctx, doc); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Store(ctx, doc); err != nil {
		s.releaseAfterFailedStore(ctx, doc)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	s.audit.Emit(ctx, audit.Event{
		Action:     audit.ActionIngested,
		DocumentID: doc.ID().String(),
		Kind:       string(doc.Kind()),
	})
	s.logger.InfoContext(ctx, "document ingested",
		"document_id", doc.ID().String(),
		"kind", string(doc.Kind()),
	)
	return doc, nil
}

// parse reuses the cached document for raw when there is one.
func (s *Service) parse(ctx context.Context, raw string) (models.Document, error) {
	if doc, ok := s.repo.Cached(models.NewIdentifier(raw)); ok && doc.OriginalCode() == raw {
		s.metrics.IncrementCacheLookup(true)
		return doc, nil
	}
	s.metrics.IncrementCacheLookup(false)
	return s.factory.Create(ctx, raw)
}

func (s *Service) releaseAfterFailedStore(ctx context.Context, doc models.Document) {
	if s.redeemer == nil {
		return
	}
	if err := s.redeemer.Release(ctx, []models.Document{doc}); err != nil {
		s.logger.WarnContext(ctx, "document redeemed but neither stored nor released",
			"document_id", doc.ID().String(),
			"error", err,
		)
	}
}

// List returns the current documents.
func (s *Service) List(ctx context.Context) ([]models.Document, error) {
	docs, err := s.repo.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	return docs, nil
}

// Feed streams the current documents after every change.
func (s *Service) Feed(ctx context.Context) <-chan []models.Document {
	return s.repo.CurrentAndNew(ctx)
}

// Remove deletes one document on the user's request.
func (s *Service) Remove(ctx context.Context, id models.Identifier) error {
	if err := s.repo.Remove(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove document")
	}
	s.audit.Emit(ctx, audit.Event{Action: audit.ActionRemoved, DocumentID: id.String()})
	return nil
}

// DeleteAccount releases every claim, removes every document and forgets the
// registered children. A failed release aborts before anything is removed.
func (s *Service) DeleteAccount(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "processing.DeleteAccount")
	defer span.End()

	docs, err := s.repo.Load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "load failed")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	if s.redeemer != nil && len(docs) > 0 {
		if err := s.redeemer.Release(ctx, docs); err != nil {
			span.SetStatus(codes.Error, "release failed")
			return err
		}
	}
	if err := s.repo.Remove(ctx, models.IDs(docs)...); err != nil {
		span.SetStatus(codes.Error, "remove failed")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove documents")
	}
	if s.profiles != nil {
		if err := s.profiles.ClearChildren(ctx); err != nil {
			return err
		}
	}
	s.audit.Emit(ctx, audit.Event{Action: audit.ActionAccountDeleted})
	s.logger.InfoContext(ctx, "account deleted", "documents", len(docs))
	return nil
}

// outcome is the metric and audit label of an ingest result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return string(dErrors.CodeOf(err))
	}
}
