package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthpass/internal/documents/models"
	"healthpass/internal/documents/store"
)

// appointmentFactory parses any code starting with "appt:" into an
// Appointment and rejects everything else.
type appointmentFactory struct {
	calls atomic.Int32
	block chan struct{}
}

func (f *appointmentFactory) Create(ctx context.Context, raw string) (models.Document, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if len(raw) < 5 || raw[:5] != "appt:" {
		return nil, errors.New("not an appointment")
	}
	return &models.Appointment{Envelope: models.NewEnvelope(raw), Lab: raw[5:]}, nil
}

func doc(code string) models.Document {
	return &models.Appointment{Envelope: models.NewEnvelope(code), Lab: code}
}

type RepositorySuite struct {
	suite.Suite
	ctx      context.Context
	payloads *store.MemoryStore
	factory  *appointmentFactory
	repo     *Repository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.payloads = store.NewMemoryStore()
	s.factory = &appointmentFactory{}
	var err error
	s.repo, err = New(s.payloads, s.factory, WithParallelism(2))
	s.Require().NoError(err)
}

func (s *RepositorySuite) restore() []models.Payload {
	got, err := s.payloads.Restore(s.ctx)
	s.Require().NoError(err)
	return got
}

func (s *RepositorySuite) TestNewRequiresCollaborators() {
	_, err := New(nil, s.factory)
	s.Error(err)
	_, err = New(s.payloads, nil)
	s.Error(err)
}

func (s *RepositorySuite) TestStoreCachesAndPersists() {
	d := doc("appt:one")
	s.Require().NoError(s.repo.Store(s.ctx, d))

	cached, ok := s.repo.Cached(d.ID())
	s.True(ok)
	s.Same(d, cached)
	s.Equal([]models.Payload{models.PayloadOf(d)}, s.restore())

	docs, err := s.repo.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.Document{d}, docs)
	s.Zero(s.factory.calls.Load(), "cached documents are not re-parsed")
}

func (s *RepositorySuite) TestLoadParsesMissesAndDropsFailures() {
	good := models.Payload{OriginalCode: "appt:good", Identifier: models.NewIdentifier("appt:good")}
	bad := models.Payload{OriginalCode: "garbage", Identifier: models.NewIdentifier("garbage")}
	s.Require().NoError(s.payloads.Store(s.ctx, good))
	s.Require().NoError(s.payloads.Store(s.ctx, bad))

	docs, err := s.repo.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal(good.Identifier, docs[0].ID())

	_, ok := s.repo.Cached(good.Identifier)
	s.True(ok)
	s.Len(s.restore(), 2, "unparseable payloads stay stored")

	_, err = s.repo.Load(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, s.factory.calls.Load(), "only the failing payload is parsed again")
}

func (s *RepositorySuite) TestLoadReconcilesDriftedIdentifier() {
	code := "appt:drifted"
	stale := models.Identifier(42)
	s.Require().NoError(s.payloads.Store(s.ctx, models.Payload{OriginalCode: code, Identifier: stale}))

	docs, err := s.repo.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal(models.NewIdentifier(code), docs[0].ID())

	s.Equal([]models.Payload{{OriginalCode: code, Identifier: models.NewIdentifier(code)}}, s.restore())
	_, ok := s.repo.Cached(stale)
	s.False(ok)

	again, err := s.repo.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(docs, again)
	s.Len(s.restore(), 1)
}

func (s *RepositorySuite) TestCancelledLoadCommitsNothing() {
	code := "appt:drifted"
	s.Require().NoError(s.payloads.Store(s.ctx, models.Payload{OriginalCode: code, Identifier: 42}))
	s.factory.block = make(chan struct{})

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() {
		_, err := s.repo.Load(ctx)
		done <- err
	}()
	s.Eventually(func() bool { return s.factory.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	s.ErrorIs(<-done, context.Canceled)
	s.Equal([]models.Payload{{OriginalCode: code, Identifier: 42}}, s.restore())
	_, ok := s.repo.Cached(models.NewIdentifier(code))
	s.False(ok)
}

func (s *RepositorySuite) TestRemoveDuringLoadIsNotResurrected() {
	s.Require().NoError(s.payloads.Store(s.ctx, models.Payload{OriginalCode: "appt:gone", Identifier: 42}))
	s.factory.block = make(chan struct{})

	done := make(chan []models.Document, 1)
	go func() {
		docs, err := s.repo.Load(s.ctx)
		s.NoError(err)
		done <- docs
	}()
	s.Eventually(func() bool { return s.factory.calls.Load() == 1 }, time.Second, time.Millisecond)
	s.Require().NoError(s.repo.Remove(s.ctx, 42))
	close(s.factory.block)

	s.Empty(<-done)
	s.Empty(s.restore())
}

func (s *RepositorySuite) TestRemove() {
	a, b := doc("appt:a"), doc("appt:b")
	s.Require().NoError(s.repo.Store(s.ctx, a))
	s.Require().NoError(s.repo.Store(s.ctx, b))

	s.Require().NoError(s.repo.Remove(s.ctx, a.ID()))
	s.Require().NoError(s.repo.Remove(s.ctx))

	_, ok := s.repo.Cached(a.ID())
	s.False(ok)
	docs, err := s.repo.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.Document{b}, docs)
}

func (s *RepositorySuite) TestFeed() {
	ctx, cancel := context.WithCancel(s.ctx)
	feed := s.repo.CurrentAndNew(ctx)

	s.Empty(receive(s.T(), feed))

	d := doc("appt:feed")
	s.Require().NoError(s.repo.Store(s.ctx, d))
	s.Equal([]models.Document{d}, receive(s.T(), feed))

	s.Require().NoError(s.repo.Remove(s.ctx, d.ID()))
	s.Empty(receive(s.T(), feed))

	cancel()
	s.Eventually(func() bool {
		select {
		case _, open := <-feed:
			return !open
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func (s *RepositorySuite) TestConcurrentAccess() {
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.NoError(s.repo.Store(s.ctx, doc(fmt.Sprintf("appt:%d", i))))
		}()
		go func() {
			defer wg.Done()
			_, err := s.repo.Load(s.ctx)
			s.NoError(err)
		}()
	}
	wg.Wait()

	docs, err := s.repo.Load(s.ctx)
	s.Require().NoError(err)
	s.Len(docs, 20)
}

func receive(t *testing.T, feed <-chan []models.Document) []models.Document {
	t.Helper()
	select {
	case docs := <-feed:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not publish")
		return nil
	}
}
