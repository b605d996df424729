package uniqueness

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Redeemer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"healthpass/internal/documents/models"
	"healthpass/internal/platform/kv"
	"healthpass/internal/uniqueness/mocks"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/sentinel"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

// kvStore names the embedded field so it does not shadow the Store method.
type kvStore = kv.Store

type failingStore struct{ kvStore }

func (failingStore) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	redeemer *mocks.MockRedeemer
	tags     *kv.MemoryStore
	service  *Service
	doc      models.Document
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.redeemer = mocks.NewMockRedeemer(s.ctrl)
	s.tags = kv.NewMemoryStore()
	var err error
	s.service, err = New(s.tags, s.redeemer)
	s.Require().NoError(err)
	s.doc = &models.Appointment{
		Envelope:  models.NewEnvelope("appointment-code"),
		Timestamp: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Lab:       "Lab",
	}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, s.redeemer)
	s.Error(err)
	_, err = New(s.tags, nil)
	s.Error(err)
}

func (s *ServiceSuite) TestFingerprint() {
	s.Equal(s.service.Fingerprint(s.doc), s.service.Fingerprint(s.doc))
	s.Len(s.service.Fingerprint(s.doc), 32)

	other, err := New(s.tags, s.redeemer, WithFingerprintKey([]byte("other")))
	s.Require().NoError(err)
	s.NotEqual(s.service.Fingerprint(s.doc), other.Fingerprint(s.doc))
}

func (s *ServiceSuite) TestClaimTagIsStable() {
	first, err := s.service.ClaimTag(s.ctx, s.doc)
	s.Require().NoError(err)
	s.Len(first, tagSize)

	second, err := s.service.ClaimTag(s.ctx, s.doc)
	s.Require().NoError(err)
	s.Equal(first, second)

	stored, err := s.tags.Load(s.ctx, TagKey(s.doc.ID()))
	s.Require().NoError(err)
	s.Equal(first, stored)
}

func (s *ServiceSuite) TestClaimTagFailures() {
	s.Run("random source failure", func() {
		svc, err := New(kv.NewMemoryStore(), s.redeemer, WithRandom(failingReader{}))
		s.Require().NoError(err)
		_, err = svc.ClaimTag(s.ctx, s.doc)
		s.True(dErrors.HasCode(err, dErrors.CodeFailedToCreateRandomTag))
	})

	s.Run("store failure", func() {
		svc, err := New(failingStore{}, s.redeemer)
		s.Require().NoError(err)
		_, err = svc.ClaimTag(s.ctx, s.doc)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestRedeem() {
	s.Run("sends hash, tag and expiry", func() {
		var body []byte
		s.redeemer.EXPECT().Redeem(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, b []byte) error {
			body = b
			return nil
		})
		s.Require().NoError(s.service.Redeem(s.ctx, s.doc))

		var req redeemRequest
		s.Require().NoError(json.Unmarshal(body, &req))
		tag, _ := s.service.ClaimTag(s.ctx, s.doc)
		s.Equal(s.service.Fingerprint(s.doc), req.Hash)
		s.Equal(tag, req.Tag)
		s.Require().NotNil(req.ExpiresAt)
		s.True(req.ExpiresAt.Equal(s.doc.ExpiresAt()))
	})

	s.Run("remote rejections are terminal", func() {
		cases := []struct {
			remote error
			code   dErrors.Code
		}{
			{ErrAlreadyRedeemed, dErrors.CodeAlreadyRedeemed},
			{ErrRateLimitReached, dErrors.CodeRateLimitReached},
			{sentinel.ErrUnavailable, dErrors.CodeUnavailable},
			{errors.New("teapot"), dErrors.CodeInternal},
		}
		for _, tc := range cases {
			s.redeemer.EXPECT().Redeem(gomock.Any(), gomock.Any()).Return(tc.remote).Times(1)
			err := s.service.Redeem(s.ctx, s.doc)
			s.True(dErrors.HasCode(err, tc.code), "remote %v gave %v", tc.remote, err)
		}
	})

	s.Run("local failures never reach the network", func() {
		svc, err := New(kv.NewMemoryStore(), s.redeemer, WithRandom(failingReader{}))
		s.Require().NoError(err)
		s.True(dErrors.HasCode(svc.Redeem(s.ctx, s.doc), dErrors.CodeFailedToCreateRandomTag))

		s.service.marshal = func(any) ([]byte, error) { return nil, errors.New("bad encoder") }
		s.True(dErrors.HasCode(s.service.Redeem(s.ctx, s.doc), dErrors.CodeEncodingFailed))
	})
}

func (s *ServiceSuite) TestRelease() {
	unclaimed := &models.Appointment{Envelope: models.NewEnvelope("never-redeemed")}

	s.Run("nothing to release", func() {
		s.NoError(s.service.Release(s.ctx, []models.Document{unclaimed}))
	})

	s.Run("releases claimed documents and forgets their tags", func() {
		tag, err := s.service.ClaimTag(s.ctx, s.doc)
		s.Require().NoError(err)

		s.redeemer.EXPECT().Release(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, b []byte) error {
			var req releaseRequest
			s.Require().NoError(json.Unmarshal(b, &req))
			s.Require().Len(req.Claims, 1)
			s.True(bytes.Equal(tag, req.Claims[0].Tag))
			return nil
		})
		s.Require().NoError(s.service.Release(s.ctx, []models.Document{s.doc, unclaimed}))

		_, err = s.tags.Load(s.ctx, TagKey(s.doc.ID()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("remote failure keeps the tags", func() {
		_, err := s.service.ClaimTag(s.ctx, s.doc)
		s.Require().NoError(err)
		s.redeemer.EXPECT().Release(gomock.Any(), gomock.Any()).Return(sentinel.ErrUnavailable)

		err = s.service.Release(s.ctx, []models.Document{s.doc})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		_, err = s.tags.Load(s.ctx, TagKey(s.doc.ID()))
		s.NoError(err)
	})
}
