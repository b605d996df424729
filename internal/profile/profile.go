// Package profile stores the account owner and the children registered on
// the device. Documents must belong to one of them.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"healthpass/internal/documents/validation"
	"healthpass/internal/platform/kv"
	"healthpass/internal/platform/logger"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/sentinel"
)

const (
	ownerKey    = "profile:owner"
	childrenKey = "profile:children"
)

// Person is a profile a document can be attributed to.
type Person struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth,omitzero"`
}

func (p Person) identity() validation.Identity {
	return validation.Identity{FirstName: p.FirstName, LastName: p.LastName}
}

func (p Person) validate() error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "first and last name are required")
	}
	return nil
}

type Service struct {
	store  kv.Store
	logger *slog.Logger

	// mu serializes read-modify-write of the children list.
	mu sync.Mutex
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(store kv.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("profile store is required")
	}
	s := &Service{store: store, logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ validation.ProfileSource = (*Service)(nil)

// Owner returns the account owner; ok is false until one is set.
func (s *Service) Owner(ctx context.Context) (Person, bool, error) {
	var owner Person
	found, err := s.load(ctx, ownerKey, &owner)
	if err != nil || !found {
		return Person{}, false, err
	}
	return owner, true, nil
}

// SetOwner creates or replaces the account owner.
func (s *Service) SetOwner(ctx context.Context, p Person) (Person, error) {
	if err := p.validate(); err != nil {
		return Person{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.Owner(ctx)
	if err != nil {
		return Person{}, err
	}
	switch {
	case ok:
		p.ID = current.ID
	case p.ID == uuid.Nil:
		p.ID = uuid.New()
	}
	if err := s.save(ctx, ownerKey, p); err != nil {
		return Person{}, err
	}
	s.logger.InfoContext(ctx, "owner profile updated", "profile_id", p.ID.String())
	return p, nil
}

func (s *Service) Children(ctx context.Context) ([]Person, error) {
	var children []Person
	if _, err := s.load(ctx, childrenKey, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// AddChild registers a child and assigns it an ID.
func (s *Service) AddChild(ctx context.Context, p Person) (Person, error) {
	if err := p.validate(); err != nil {
		return Person{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	children, err := s.Children(ctx)
	if err != nil {
		return Person{}, err
	}
	p.ID = uuid.New()
	if err := s.save(ctx, childrenKey, append(children, p)); err != nil {
		return Person{}, err
	}
	s.logger.InfoContext(ctx, "child profile added", "profile_id", p.ID.String())
	return p, nil
}

func (s *Service) RemoveChild(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	children, err := s.Children(ctx)
	if err != nil {
		return err
	}
	kept := children[:0]
	for _, c := range children {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(children) {
		return dErrors.New(dErrors.CodeNotFound, "child profile not found")
	}
	if err := s.save(ctx, childrenKey, kept); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "child profile removed", "profile_id", id.String())
	return nil
}

func (s *Service) ClearChildren(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Remove(ctx, childrenKey); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear child profiles")
	}
	return nil
}

// Identities reports the names validators match documents against.
func (s *Service) Identities(ctx context.Context) (validation.Identity, bool, []validation.Identity, error) {
	owner, hasOwner, err := s.Owner(ctx)
	if err != nil {
		return validation.Identity{}, false, nil, err
	}
	children, err := s.Children(ctx)
	if err != nil {
		return validation.Identity{}, false, nil, err
	}
	ids := make([]validation.Identity, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.identity())
	}
	return owner.identity(), hasOwner, ids, nil
}

func (s *Service) load(ctx context.Context, key string, into any) (bool, error) {
	raw, err := s.store.Load(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profiles")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "stored profile is corrupt")
	}
	return true, nil
}

func (s *Service) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeEncodingFailed, "failed to encode profile")
	}
	if err := s.store.Store(ctx, key, raw); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile")
	}
	return nil
}
