// Package keys keeps a local copy of the test-provider key directory.
package keys

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"healthpass/internal/platform/logger"
	"healthpass/pkg/platform/sentinel"
)

// ProviderKey is one directory entry: a fingerprint and a base64 DER
// SubjectPublicKeyInfo.
type ProviderKey struct {
	Fingerprint string `json:"fingerprint"`
	PublicKey   string `json:"public_key"`
}

// Fetcher downloads the complete directory.
type Fetcher interface {
	FetchProviderKeys(ctx context.Context) ([]ProviderKey, error)
}

// Directory resolves fingerprints to public keys. It refreshes when its copy
// is older than the refresh interval. Lookups trigger at most one fetch per
// minRefresh, whether or not the previous fetch succeeded. Concurrent
// refreshes collapse into one fetch that outlives any single caller.
type Directory struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	refreshInterval time.Duration
	minRefresh      time.Duration
	fetchTimeout    time.Duration

	group singleflight.Group

	mu          sync.RWMutex
	keys        map[string]crypto.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time
	lastErr     error
}

type Option func(*Directory)

func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(d *Directory) {
		if interval > 0 {
			d.refreshInterval = interval
		}
	}
}

func WithMinRefresh(interval time.Duration) Option {
	return func(d *Directory) {
		if interval > 0 {
			d.minRefresh = interval
		}
	}
}

// WithFetchTimeout bounds a single directory download.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(d *Directory) {
		if timeout > 0 {
			d.fetchTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

func New(fetcher Fetcher, opts ...Option) (*Directory, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	d := &Directory{
		fetcher:         fetcher,
		logger:          logger.Discard(),
		now:             time.Now,
		refreshInterval: time.Hour,
		minRefresh:      time.Minute,
		fetchTimeout:    30 * time.Second,
		keys:            make(map[string]crypto.PublicKey),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Lookup implements parsers.KeyLookup. While a refresh is throttled a stale
// key is still served, and a miss reports the last fetch error if there was
// one.
func (d *Directory) Lookup(ctx context.Context, fingerprint string) (crypto.PublicKey, error) {
	st := d.get(fingerprint)
	if st.found && st.age < d.refreshInterval {
		return st.key, nil
	}
	if st.sinceAttempt < d.minRefresh {
		if st.found {
			return st.key, nil
		}
		if st.lastErr != nil {
			return nil, st.lastErr
		}
		return nil, fmt.Errorf("provider key %s: %w", fingerprint, sentinel.ErrNotFound)
	}

	if err := d.Refresh(ctx); err != nil {
		if st.found {
			d.logger.WarnContext(ctx, "serving stale provider key", "fingerprint", fingerprint, "error", err)
			return st.key, nil
		}
		return nil, err
	}
	if st = d.get(fingerprint); st.found {
		return st.key, nil
	}
	return nil, fmt.Errorf("provider key %s: %w", fingerprint, sentinel.ErrNotFound)
}

// Refresh replaces the local copy with the remote directory. Callers sharing
// a fetch each stop waiting when their own ctx is done; the fetch itself is
// bounded by the fetch timeout only.
func (d *Directory) Refresh(ctx context.Context) error {
	ch := d.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.fetchTimeout)
		defer cancel()
		return nil, d.fetch(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Directory) fetch(ctx context.Context) error {
	entries, err := d.fetcher.FetchProviderKeys(ctx)
	if err != nil {
		err = fmt.Errorf("fetch provider keys: %w", err)
		d.mu.Lock()
		d.lastAttempt, d.lastErr = d.now(), err
		d.mu.Unlock()
		return err
	}
	keys := make(map[string]crypto.PublicKey, len(entries))
	for _, entry := range entries {
		key, err := ParsePublicKey(entry.PublicKey)
		if err != nil {
			d.logger.WarnContext(ctx, "skipping provider key", "fingerprint", entry.Fingerprint, "error", err)
			continue
		}
		keys[entry.Fingerprint] = key
	}

	d.mu.Lock()
	d.keys = keys
	d.fetchedAt = d.now()
	d.lastAttempt, d.lastErr = d.fetchedAt, nil
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "provider keys refreshed", "count", len(keys))
	return nil
}

// Run refreshes every refresh interval until ctx is done.
func (d *Directory) Run(ctx context.Context) {
	ticker := time.NewTicker(d.refreshInterval)
	defer ticker.Stop()
	for {
		if err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
			d.logger.WarnContext(ctx, "provider key refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Len reports how many keys are known.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.keys)
}

type lookupState struct {
	key   crypto.PublicKey
	found bool
	// age is measured from the last successful fetch, sinceAttempt from the
	// last fetch of any outcome. Both are infinite before the first fetch.
	age          time.Duration
	sinceAttempt time.Duration
	lastErr      error
}

func (d *Directory) get(fingerprint string) lookupState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key, ok := d.keys[fingerprint]
	return lookupState{
		key:          key,
		found:        ok,
		age:          d.since(d.fetchedAt),
		sinceAttempt: d.since(d.lastAttempt),
		lastErr:      d.lastErr,
	}
}

func (d *Directory) since(t time.Time) time.Duration {
	if t.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return d.now().Sub(t)
}

// ParsePublicKey decodes a base64 DER SubjectPublicKeyInfo.
func ParsePublicKey(encoded string) (crypto.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}
