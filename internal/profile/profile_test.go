package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"healthpass/internal/documents/validation"
	"healthpass/internal/platform/kv"
	dErrors "healthpass/pkg/domain-errors"
)

type failingStore struct{ kv.MemoryStore }

func (*failingStore) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("redis down")
}

type ProfileSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
}

func TestProfileSuite(t *testing.T) {
	suite.Run(t, new(ProfileSuite))
}

func (s *ProfileSuite) SetupTest() {
	s.ctx = context.Background()
	var err error
	s.service, err = New(kv.NewMemoryStore())
	s.Require().NoError(err)
}

func (s *ProfileSuite) TestOwner() {
	s.Run("absent until set", func() {
		_, ok, err := s.service.Owner(s.ctx)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("set keeps the id across updates", func() {
		first, err := s.service.SetOwner(s.ctx, Person{FirstName: "Anna", LastName: "Berg"})
		s.Require().NoError(err)
		s.NotEqual(uuid.Nil, first.ID)

		second, err := s.service.SetOwner(s.ctx, Person{FirstName: "Anna", LastName: "Berg-Lind"})
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)

		owner, ok, err := s.service.Owner(s.ctx)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal("Berg-Lind", owner.LastName)
	})

	s.Run("names are required", func() {
		_, err := s.service.SetOwner(s.ctx, Person{FirstName: " "})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ProfileSuite) TestChildren() {
	dob := time.Date(2018, 4, 2, 0, 0, 0, 0, time.UTC)
	mia, err := s.service.AddChild(s.ctx, Person{FirstName: "Mia", LastName: "Berg", DateOfBirth: dob})
	s.Require().NoError(err)
	leo, err := s.service.AddChild(s.ctx, Person{FirstName: "Leo", LastName: "Berg"})
	s.Require().NoError(err)
	s.NotEqual(mia.ID, leo.ID)

	children, err := s.service.Children(s.ctx)
	s.Require().NoError(err)
	s.Equal([]Person{mia, leo}, children)

	s.Require().NoError(s.service.RemoveChild(s.ctx, mia.ID))
	err = s.service.RemoveChild(s.ctx, mia.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	children, err = s.service.Children(s.ctx)
	s.Require().NoError(err)
	s.Equal([]Person{leo}, children)

	s.Require().NoError(s.service.ClearChildren(s.ctx))
	children, err = s.service.Children(s.ctx)
	s.Require().NoError(err)
	s.Empty(children)
}

func (s *ProfileSuite) TestIdentities() {
	_, err := s.service.SetOwner(s.ctx, Person{FirstName: "Anna", LastName: "Berg"})
	s.Require().NoError(err)
	_, err = s.service.AddChild(s.ctx, Person{FirstName: "Mia", LastName: "Berg"})
	s.Require().NoError(err)

	owner, hasOwner, children, err := s.service.Identities(s.ctx)
	s.Require().NoError(err)
	s.True(hasOwner)
	s.Equal(validation.Identity{FirstName: "Anna", LastName: "Berg"}, owner)
	s.Equal([]validation.Identity{{FirstName: "Mia", LastName: "Berg"}}, children)
}

func (s *ProfileSuite) TestStoreFailureIsInternal() {
	service, err := New(&failingStore{})
	s.Require().NoError(err)
	_, _, _, err = service.Identities(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
