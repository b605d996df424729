package repository

import (
	"context"

	"healthpass/internal/documents/models"
)

// CurrentAndNew streams the full current document set: once on
// subscription and again after every change. Changes arriving while a set is
// being produced coalesce into one reload. The channel closes when ctx is
// done.
func (r *Repository) CurrentAndNew(ctx context.Context) <-chan []models.Document {
	signal := make(chan struct{}, 1)
	signal <- struct{}{}
	r.subscribe(signal)

	out := make(chan []models.Document)
	go func() {
		defer close(out)
		defer r.unsubscribe(signal)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
			docs, err := r.Load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.WarnContext(ctx, "feed reload failed", "error", err)
				continue
			}
			select {
			case out <- docs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (r *Repository) subscribe(ch chan struct{}) {
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()
	r.metrics.FeedOpened()
}

func (r *Repository) unsubscribe(ch chan struct{}) {
	r.subMu.Lock()
	delete(r.subs, ch)
	r.subMu.Unlock()
	r.metrics.FeedClosed()
}

func (r *Repository) notify() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
