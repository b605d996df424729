// Package factory turns raw scans into documents by trying every registered
// parser in registration order.
package factory

import (
	"context"
	"fmt"
	"log/slog"

	"healthpass/internal/documents/models"
	"healthpass/internal/documents/parsers"
	"healthpass/internal/platform/logger"
	"healthpass/internal/platform/metrics"
	dErrors "healthpass/pkg/domain-errors"
)

// Factory holds an ordered parser list. Registration happens at wiring time;
// Create is safe for concurrent use afterwards.
type Factory struct {
	parsers []parsers.Parser
	ids     map[string]struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Factory)

func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Factory) {
		f.metrics = m
	}
}

func New(opts ...Option) *Factory {
	f := &Factory{
		ids:    make(map[string]struct{}),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register appends p; parsers registered earlier take precedence.
func (f *Factory) Register(p parsers.Parser) error {
	id := p.ID()
	if _, exists := f.ids[id]; exists {
		return fmt.Errorf("parser %s already registered", id)
	}
	f.ids[id] = struct{}{}
	f.parsers = append(f.parsers, p)
	return nil
}

// IDs lists parser IDs in precedence order.
func (f *Factory) IDs() []string {
	out := make([]string, len(f.parsers))
	for i, p := range f.parsers {
		out[i] = p.ID()
	}
	return out
}

// Create returns the first parser's success. Individual failures are noise:
// only the case where no parser matched is reported, as parsing_failed.
func (f *Factory) Create(ctx context.Context, raw string) (models.Document, error) {
	for _, p := range f.parsers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := f.try(ctx, p, raw)
		if err == nil {
			f.metrics.IncrementParserMatch(p.ID())
			return doc, nil
		}
		f.logger.DebugContext(ctx, "parser did not match",
			"parser", p.ID(),
			"verification", parsers.IsVerificationFailure(err),
			"error", err,
		)
	}
	return nil, dErrors.New(dErrors.CodeParsingFailed, "the scanned code is not a recognized document")
}

func (f *Factory) try(ctx context.Context, p parsers.Parser, raw string) (doc models.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.ErrorContext(ctx, "parser panicked", "parser", p.ID(), "panic", r)
			doc, err = nil, fmt.Errorf("parser %s panicked: %v", p.ID(), r)
		}
	}()
	doc, err = p.Parse(ctx, raw)
	if err == nil && doc == nil {
		err = fmt.Errorf("parser %s returned no document", p.ID())
	}
	return doc, err
}
