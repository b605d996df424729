// Package uniqueness claims documents against the remote redemption service
// so one real-world document backs at most one account.
package uniqueness

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"healthpass/internal/documents/models"
	"healthpass/internal/platform/kv"
	"healthpass/internal/platform/logger"
	"healthpass/internal/platform/metrics"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/sentinel"
)

// DefaultFingerprintKey separates document fingerprints of this service from
// any other HMAC over the same payloads.
var DefaultFingerprintKey = []byte("healthpass.uniqueness.fingerprint.v1")

const (
	tagSize      = 16
	tagKeyPrefix = "uniqueness:tag:"
)

// Redeemer is the remote side. Bodies are the JSON documents built here.
type Redeemer interface {
	Redeem(ctx context.Context, body []byte) error
	Release(ctx context.Context, body []byte) error
}

type redeemRequest struct {
	Hash      []byte     `json:"hash"`
	Tag       []byte     `json:"tag"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type claim struct {
	Hash []byte `json:"hash"`
	Tag  []byte `json:"tag"`
}

type releaseRequest struct {
	Claims []claim `json:"claims"`
}

// Service computes fingerprints, keeps one claim tag per document and talks
// to the Redeemer.
type Service struct {
	key      []byte
	tags     kv.Store
	redeemer Redeemer
	random   io.Reader
	marshal  func(any) ([]byte, error)
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// tagMu serializes get-or-create so concurrent claims share one tag.
	tagMu sync.Mutex
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

// WithFingerprintKey replaces DefaultFingerprintKey.
func WithFingerprintKey(key []byte) Option {
	return func(s *Service) {
		if len(key) > 0 {
			s.key = key
		}
	}
}

// WithRandom sets the source of claim tags.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.random = r
		}
	}
}

func New(tags kv.Store, redeemer Redeemer, opts ...Option) (*Service, error) {
	if tags == nil {
		return nil, errors.New("tag store is required")
	}
	if redeemer == nil {
		return nil, errors.New("redeemer is required")
	}
	s := &Service{
		key:      DefaultFingerprintKey,
		tags:     tags,
		redeemer: redeemer,
		random:   rand.Reader,
		marshal:  json.Marshal,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fingerprint is an HMAC-SHA256 over the document's original code.
func (s *Service) Fingerprint(doc models.Document) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(doc.OriginalCode()))
	return mac.Sum(nil)
}

// TagKey is the store key holding the claim tag for id.
func TagKey(id models.Identifier) string {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(id))
	sum := blake2b.Sum256(buf[:])
	return tagKeyPrefix + hex.EncodeToString(sum[:])
}

// ClaimTag returns the document's claim tag, creating and persisting a
// random one on first use.
func (s *Service) ClaimTag(ctx context.Context, doc models.Document) ([]byte, error) {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()

	key := TagKey(doc.ID())
	tag, err := s.tags.Load(ctx, key)
	switch {
	case err == nil && len(tag) == tagSize:
		return tag, nil
	case err == nil:
		s.logger.WarnContext(ctx, "replacing malformed claim tag", "document_id", doc.ID().String())
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read claim tag")
	}

	tag = make([]byte, tagSize)
	if _, err := io.ReadFull(s.random, tag); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeFailedToCreateRandomTag, "failed to create a claim tag")
	}
	if err := s.tags.Store(ctx, key, tag); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist claim tag")
	}
	return tag, nil
}

// Redeem claims doc remotely. Local failures happen before any network call;
// remote rejections are terminal and never retried here.
func (s *Service) Redeem(ctx context.Context, doc models.Document) error {
	tag, err := s.ClaimTag(ctx, doc)
	if err != nil {
		return err
	}
	req := redeemRequest{Hash: s.Fingerprint(doc), Tag: tag}
	if exp := doc.ExpiresAt(); !exp.IsZero() {
		exp = exp.UTC()
		req.ExpiresAt = &exp
	}
	body, err := s.marshal(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeEncodingFailed, "failed to encode redemption")
	}

	err = s.redeemer.Redeem(ctx, body)
	outcome, mapped := classifyRemote(err)
	s.metrics.IncrementRedemption(outcome)
	if mapped != nil {
		s.logger.InfoContext(ctx, "redemption rejected",
			"document_id", doc.ID().String(),
			"outcome", outcome,
			"error", err,
		)
	}
	return mapped
}

// Release drops the remote claims of docs that hold a local tag and then
// forgets those tags.
func (s *Service) Release(ctx context.Context, docs []models.Document) error {
	var (
		req  releaseRequest
		keys []string
	)
	for _, doc := range docs {
		key := TagKey(doc.ID())
		tag, err := s.tags.Load(ctx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read claim tag")
		}
		req.Claims = append(req.Claims, claim{Hash: s.Fingerprint(doc), Tag: tag})
		keys = append(keys, key)
	}
	if len(req.Claims) == 0 {
		return nil
	}

	body, err := s.marshal(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeEncodingFailed, "failed to encode release")
	}
	if err := s.redeemer.Release(ctx, body); err != nil {
		_, mapped := classifyRemote(err)
		return mapped
	}
	for _, key := range keys {
		if err := s.tags.Remove(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to forget claim tag", "key", key, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "claims released", "count", len(keys))
	return nil
}

func classifyRemote(err error) (string, error) {
	switch {
	case err == nil:
		return "redeemed", nil
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed", dErrors.Wrap(err, dErrors.CodeAlreadyRedeemed, "this document is already in use by another account")
	case errors.Is(err, ErrRateLimitReached):
		return "rate_limited", dErrors.Wrap(err, dErrors.CodeRateLimitReached, "too many redemption attempts, try again later")
	case errors.Is(err, sentinel.ErrUnavailable):
		return "unavailable", dErrors.Wrap(err, dErrors.CodeUnavailable, "the redemption service is unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled", err
	default:
		return "failed", dErrors.Wrap(err, dErrors.CodeInternal, "redemption failed")
	}
}
