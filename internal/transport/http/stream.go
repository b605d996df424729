package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dErrors "healthpass/pkg/domain-errors"
)

// keepAlive keeps idle proxies from closing the stream.
const keepAlive = 30 * time.Second

// handleStream sends the full document set as a server-sent event on connect
// and after every change.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, r, "streaming unsupported", dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}
	ctx := r.Context()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	feed := h.documents.Feed(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case docs, open := <-feed:
			if !open {
				return
			}
			data, err := json.Marshal(toDocumentsResponse(docs))
			if err != nil {
				h.logger.ErrorContext(ctx, "failed to encode document event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: documents\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
