package audit

import (
	"context"
	"log/slog"
)

// Worker drains an event channel into a sink until the channel is closed.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run() {
	// Events outlive the request that produced them.
	ctx := context.Background()
	for event := range w.inbox {
		if err := w.sink.Append(ctx, event); err != nil {
			w.logger.Error("failed to record audit event",
				"action", string(event.Action),
				"document_id", event.DocumentID,
				"error", err,
			)
		}
	}
}
