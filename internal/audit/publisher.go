// Package audit records document lifecycle events and forwards them to a
// sink: memory for tests and single-node runs, Kafka otherwise.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"healthpass/internal/platform/logger"
	"healthpass/pkg/requestcontext"
)

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps events and hands them to the sink. Sink failures are
// logged and never surface to the caller.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	inbox  chan Event
	worker *Worker
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAsyncBuffer makes Emit enqueue into a buffer of size n drained by a
// background worker. Close drains the buffer.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan Event, n)
		}
	}
}

func NewPublisher(sink Sink, opts ...Option) (*Publisher, error) {
	if sink == nil {
		return nil, errors.New("audit sink is required")
	}
	p := &Publisher{sink: sink, logger: logger.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.worker = NewWorker(sink, p.inbox, p.logger)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker.Run()
		}()
	}
	return p, nil
}

// Emit fills in the ID, timestamp, request ID and device when unset and
// forwards the event.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}

	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
			p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", string(event.Action))
		}
		return
	}
	if err := p.sink.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to record audit event",
			"action", string(event.Action),
			"document_id", event.DocumentID,
			"error", err,
		)
	}
}

// Close stops accepting async events and waits for the buffer to drain.
func (p *Publisher) Close() {
	if p == nil || p.inbox == nil {
		return
	}
	p.once.Do(func() {
		close(p.inbox)
		p.wg.Wait()
	})
}
