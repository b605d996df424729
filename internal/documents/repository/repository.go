// Package repository owns stored document payloads and the cache of parsed
// documents derived from them.
//
// Lock discipline: lane serializes every mutation of the payload store and
// the cache (Store, Remove, and the commit phase of Load). mu guards the
// cache map itself; readers take it shared and never hold lane. Load parses
// cache misses outside lane and commits under it, so a cancelled Load leaves
// no trace.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"healthpass/internal/documents/models"
	"healthpass/internal/documents/store"
	"healthpass/internal/platform/logger"
	"healthpass/internal/platform/metrics"
)

// DocumentFactory parses raw payloads.
type DocumentFactory interface {
	Create(ctx context.Context, raw string) (models.Document, error)
}

type Repository struct {
	payloads    store.Store
	factory     DocumentFactory
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	parallelism int

	lane    sync.Mutex
	version uint64 // bumped on every payload mutation, guarded by lane

	mu    sync.RWMutex
	cache map[models.Identifier]models.Document

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

type Option func(*Repository)

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Repository) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithParallelism bounds concurrent re-parses during Load.
func WithParallelism(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

func New(payloads store.Store, factory DocumentFactory, opts ...Option) (*Repository, error) {
	if payloads == nil {
		return nil, errors.New("payload store is required")
	}
	if factory == nil {
		return nil, errors.New("document factory is required")
	}
	r := &Repository{
		payloads:    payloads,
		factory:     factory,
		logger:      logger.Discard(),
		tracer:      otel.Tracer("healthpass/documents/repository"),
		parallelism: runtime.GOMAXPROCS(0),
		cache:       make(map[models.Identifier]models.Document),
		subs:        make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Store persists doc's payload, caches doc and signals feeds.
func (r *Repository) Store(ctx context.Context, doc models.Document) error {
	r.lane.Lock()
	defer r.lane.Unlock()

	if err := r.payloads.Store(ctx, models.PayloadOf(doc)); err != nil {
		return fmt.Errorf("store document %s: %w", doc.ID(), err)
	}
	r.version++

	r.mu.Lock()
	r.cache[doc.ID()] = doc
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "document stored", "document_id", doc.ID().String(), "kind", string(doc.Kind()))
	r.notify()
	return nil
}

// Remove deletes payloads and cache entries for ids and signals feeds.
func (r *Repository) Remove(ctx context.Context, ids ...models.Identifier) error {
	if len(ids) == 0 {
		return nil
	}
	r.lane.Lock()
	defer r.lane.Unlock()

	if err := r.payloads.Remove(ctx, ids); err != nil {
		return fmt.Errorf("remove documents: %w", err)
	}
	r.version++

	r.mu.Lock()
	for _, id := range ids {
		delete(r.cache, id)
	}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "documents removed", "count", len(ids))
	r.notify()
	return nil
}

// Cached returns the parsed document for id if one is cached.
func (r *Repository) Cached(id models.Identifier) (models.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.cache[id]
	return doc, ok
}

// Load returns every stored document that still parses, in storage order.
// Payloads whose identifier no longer matches their re-parsed document are
// re-keyed. Unparseable payloads are logged and skipped. On cancellation
// nothing is committed.
func (r *Repository) Load(ctx context.Context) ([]models.Document, error) {
	ctx, span := r.tracer.Start(ctx, "repository.Load")
	defer span.End()

	r.lane.Lock()
	payloads, err := r.payloads.Restore(ctx)
	version := r.version
	r.lane.Unlock()
	if err != nil {
		span.SetStatus(codes.Error, "restore failed")
		return nil, fmt.Errorf("restore payloads: %w", err)
	}

	docs := make([]models.Document, len(payloads))
	var misses []int
	r.mu.RLock()
	for i, p := range payloads {
		if doc, ok := r.cache[p.Identifier]; ok && doc.OriginalCode() == p.OriginalCode {
			docs[i] = doc
			continue
		}
		misses = append(misses, i)
	}
	r.mu.RUnlock()
	r.metrics.IncrementCacheLookupN(len(payloads)-len(misses), len(misses))
	span.SetAttributes(
		attribute.Int("payloads", len(payloads)),
		attribute.Int("cache_misses", len(misses)),
	)

	if err := r.parseMisses(ctx, payloads, misses, docs); err != nil {
		span.SetStatus(codes.Error, "load cancelled")
		return nil, err
	}
	return r.commit(ctx, payloads, docs, version)
}

func (r *Repository) parseMisses(ctx context.Context, payloads []models.Payload, misses []int, docs []models.Document) error {
	if len(misses) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, i := range misses {
		g.Go(func() error {
			doc, err := r.factory.Create(gctx, payloads[i].OriginalCode)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				r.logger.WarnContext(ctx, "dropping unparseable payload",
					"document_id", payloads[i].Identifier.String(),
					"error", err,
				)
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// commit re-keys drifted payloads and caches parsed documents under lane.
// Payloads removed while parsing are not resurrected.
func (r *Repository) commit(ctx context.Context, payloads []models.Payload, docs []models.Document, version uint64) ([]models.Document, error) {
	r.lane.Lock()
	defer r.lane.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.version != version {
		current, err := r.payloads.Restore(ctx)
		if err != nil {
			return nil, fmt.Errorf("restore payloads: %w", err)
		}
		present := make(map[models.Payload]struct{}, len(current))
		for _, p := range current {
			present[p] = struct{}{}
		}
		for i, p := range payloads {
			if _, ok := present[p]; !ok {
				docs[i] = nil
			}
		}
	}

	var rekeyed []models.Identifier
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		if old := payloads[i].Identifier; doc.ID() != old && r.reconcile(ctx, old, doc) {
			rekeyed = append(rekeyed, old)
		}
	}

	out := make([]models.Document, 0, len(docs))
	seen := make(map[models.Identifier]struct{}, len(docs))
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, old := range rekeyed {
		delete(r.cache, old)
	}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		r.cache[doc.ID()] = doc
		if _, dup := seen[doc.ID()]; dup {
			continue
		}
		seen[doc.ID()] = struct{}{}
		out = append(out, doc)
	}
	return out, nil
}

// reconcile moves a payload from old to doc's identifier. The new row is
// written before the old one is deleted so a failure never loses the payload.
func (r *Repository) reconcile(ctx context.Context, old models.Identifier, doc models.Document) bool {
	if err := r.payloads.Store(ctx, models.PayloadOf(doc)); err != nil {
		r.logger.WarnContext(ctx, "failed to re-key payload", "old_id", old.String(), "new_id", doc.ID().String(), "error", err)
		return false
	}
	r.version++
	if err := r.payloads.Remove(ctx, []models.Identifier{old}); err != nil {
		r.logger.WarnContext(ctx, "failed to delete drifted payload", "old_id", old.String(), "error", err)
		return false
	}
	r.metrics.IncrementReconciliations()
	r.logger.InfoContext(ctx, "payload re-keyed", "old_id", old.String(), "new_id", doc.ID().String())
	return true
}
