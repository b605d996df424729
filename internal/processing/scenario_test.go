package processing_test

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"healthpass/internal/documents/factory"
	"healthpass/internal/documents/parsers"
	"healthpass/internal/documents/parsers/parsertest"
	"healthpass/internal/documents/repository"
	"healthpass/internal/documents/store"
	"healthpass/internal/documents/validation"
	"healthpass/internal/platform/kv"
	"healthpass/internal/processing"
	"healthpass/internal/profile"
	"healthpass/internal/uniqueness"
	uniquenessmocks "healthpass/internal/uniqueness/mocks"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/requestcontext"
)

// PipelineSuite drives ingest through the real factory, validators,
// uniqueness service and repository; only the remote redeemer is mocked.
type PipelineSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	key      *ecdsa.PrivateKey
	payloads *store.MemoryStore
	profiles *profile.Service
	remote   *uniquenessmocks.MockRedeemer
	service  *processing.Service
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.key = parsertest.ECDSAKey()

	keys := parsertest.NewKeySet()
	keys.Add("provider-1", &s.key.PublicKey)
	f := factory.New()
	s.Require().NoError(f.Register(parsers.NewProviderTokenParser(keys)))

	s.payloads = store.NewMemoryStore()
	repo, err := repository.New(s.payloads, f)
	s.Require().NoError(err)

	kvStore := kv.NewMemoryStore()
	s.profiles, err = profile.New(kvStore)
	s.Require().NoError(err)

	s.remote = uniquenessmocks.NewMockRedeemer(gomock.NewController(s.T()))
	claims, err := uniqueness.New(kvStore, s.remote)
	s.Require().NoError(err)

	s.service, err = processing.New(f, validation.Default(s.profiles), repo, processing.WithRedemption(claims))
	s.Require().NoError(err)
}

func (s *PipelineSuite) token(first, last, dob string) string {
	return parsertest.ProviderToken(s.key, "provider-1", parsertest.NegativePCR(first, last, dob, s.now.Add(-3*time.Hour)))
}

func (s *PipelineSuite) stored() int {
	payloads, err := s.payloads.Restore(s.ctx)
	s.Require().NoError(err)
	return len(payloads)
}

func (s *PipelineSuite) TestForeignNameIsRejectedAndNotStored() {
	_, err := s.profiles.SetOwner(s.ctx, profile.Person{FirstName: "Anna", LastName: "Berg"})
	s.Require().NoError(err)

	_, err = s.service.Ingest(s.ctx, s.token("Max", "Muster", "1990-01-01"))
	s.True(dErrors.HasCode(err, dErrors.CodeNameValidationFailed), err)
	s.Zero(s.stored())
}

func (s *PipelineSuite) TestChildAgedOutIsRejectedAndNotStored() {
	_, err := s.profiles.AddChild(s.ctx, profile.Person{FirstName: "Max", LastName: "Muster"})
	s.Require().NoError(err)

	_, err = s.service.Ingest(s.ctx, s.token("Max", "Muster", "2000-01-01"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidChildAge), err)
	s.Zero(s.stored())
}

func (s *PipelineSuite) TestChildIsAccepted() {
	_, err := s.profiles.SetOwner(s.ctx, profile.Person{FirstName: "Anna", LastName: "Berg"})
	s.Require().NoError(err)
	_, err = s.profiles.AddChild(s.ctx, profile.Person{FirstName: "Mia", LastName: "Berg"})
	s.Require().NoError(err)
	s.remote.EXPECT().Redeem(gomock.Any(), gomock.Any()).Return(nil)

	_, err = s.service.Ingest(s.ctx, s.token("Mia", "Berg", "2018-06-30"))
	s.Require().NoError(err)
	s.Equal(1, s.stored())
}

func (s *PipelineSuite) TestReingestOnSameDeviceSucceeds() {
	_, err := s.profiles.SetOwner(s.ctx, profile.Person{FirstName: "Anna", LastName: "Berg"})
	s.Require().NoError(err)
	code := s.token("Anna", "Berg", "1990-01-01")

	var bodies [][]byte
	s.remote.EXPECT().Redeem(gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, body []byte) error {
			bodies = append(bodies, body)
			return nil
		})

	first, err := s.service.Ingest(s.ctx, code)
	s.Require().NoError(err)
	second, err := s.service.Ingest(s.ctx, code)
	s.Require().NoError(err)

	s.Same(first, second, "second ingest reuses the cached parse")
	s.Require().Len(bodies, 2)
	s.JSONEq(string(bodies[0]), string(bodies[1]), "fingerprint and tag are stable")
	s.Equal(1, s.stored())
}

func (s *PipelineSuite) TestAlreadyRedeemedIsNotStored() {
	_, err := s.profiles.SetOwner(s.ctx, profile.Person{FirstName: "Anna", LastName: "Berg"})
	s.Require().NoError(err)
	s.remote.EXPECT().Redeem(gomock.Any(), gomock.Any()).Return(uniqueness.ErrAlreadyRedeemed)

	_, err = s.service.Ingest(s.ctx, s.token("Anna", "Berg", "1990-01-01"))
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRedeemed))
	s.Zero(s.stored())
}
