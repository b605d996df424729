package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthpass/internal/documents/models"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/requestcontext"
)

var (
	errFirst  = dErrors.New(dErrors.CodeExpired, "first")
	errSecond = dErrors.New(dErrors.CodeNoIssuer, "second")
)

func fail(err error) Expr {
	return Atomic("fail", func(context.Context, models.Document) error { return err })
}

func pass() Expr {
	return Atomic("pass", func(context.Context, models.Document) error { return nil })
}

type staticProfiles struct {
	owner    *Identity
	children []Identity
	err      error
}

func (p staticProfiles) Identities(context.Context) (Identity, bool, []Identity, error) {
	if p.owner == nil {
		return Identity{}, false, p.children, p.err
	}
	return *p.owner, true, p.children, p.err
}

type ValidationSuite struct {
	suite.Suite
	now time.Time
	ctx context.Context
}

func TestValidationSuite(t *testing.T) {
	suite.Run(t, new(ValidationSuite))
}

func (s *ValidationSuite) SetupTest() {
	s.now = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ValidationSuite) test(mutate func(*models.CoronaTest)) *models.CoronaTest {
	t := &models.CoronaTest{
		Envelope:  models.NewEnvelope("test"),
		Date:      s.now.Add(-2 * time.Hour),
		TestType:  models.TestTypePCR,
		Negative:  true,
		IssuedBy:  "Lab",
		Holder:    models.ExactName{FirstName: "Anna", LastName: "Berg"},
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(t)
	}
	return t
}

func (s *ValidationSuite) appointment() *models.Appointment {
	return &models.Appointment{Envelope: models.NewEnvelope("appt"), Timestamp: s.now.Add(time.Hour), Lab: "Lab"}
}

func (s *ValidationSuite) TestAllReportsFirstError() {
	err := Evaluate(s.ctx, All(fail(errFirst), pass(), fail(errSecond)), s.test(nil))
	s.Require().ErrorIs(err, errFirst)

	s.NoError(Evaluate(s.ctx, All(), s.test(nil)))
	s.NoError(Evaluate(s.ctx, All(pass(), pass()), s.test(nil)))
}

func (s *ValidationSuite) TestAnyReportsFirstRegisteredFailure() {
	s.Require().ErrorIs(Evaluate(s.ctx, Any(fail(errFirst), fail(errSecond)), s.test(nil)), errFirst)
	s.NoError(Evaluate(s.ctx, Any(fail(errFirst), pass()), s.test(nil)))

	err := Evaluate(s.ctx, Any(), s.test(nil))
	s.True(dErrors.HasCode(err, dErrors.CodeValidationFailed))
}

func (s *ValidationSuite) TestNesting() {
	tree := All(pass(), Any(fail(errSecond), All(pass(), fail(errFirst))))
	s.ErrorIs(tree.Validate(s.ctx, s.test(nil)), errSecond)
}

func (s *ValidationSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.ErrorIs(Evaluate(ctx, All(pass()), s.test(nil)), context.Canceled)
}

func (s *ValidationSuite) TestRulesSkipDocumentsWithoutCapability() {
	appt := s.appointment()
	for _, rule := range []Expr{NegativeTest(), IssuerPresent(), NotInFuture(), BelongsTo("X", "Y"), MaxAge(0)} {
		s.NoError(rule.Validate(s.ctx, appt), rule.Name())
	}
	s.NoError(NewUserOrChild(staticProfiles{}).Validate(s.ctx, appt))
}

func (s *ValidationSuite) TestAtomicRules() {
	cases := []struct {
		name string
		rule Expr
		doc  models.Document
		code dErrors.Code
	}{
		{"expired", NotExpired(), s.test(func(t *models.CoronaTest) { t.Date = s.now.Add(-72 * time.Hour) }), dErrors.CodeExpired},
		{"not expired", NotExpired(), s.test(nil), ""},
		{"positive", NegativeTest(), s.test(func(t *models.CoronaTest) { t.Negative = false }), dErrors.CodePositiveTest},
		{"no issuer", IssuerPresent(), s.test(func(t *models.CoronaTest) { t.IssuedBy = "  " }), dErrors.CodeNoIssuer},
		{"future beyond skew", NotInFuture(), s.test(func(t *models.CoronaTest) { t.Date = s.now.Add(FutureSkew + time.Second) }), dErrors.CodeTestInFuture},
		{"future within skew", NotInFuture(), s.test(func(t *models.CoronaTest) { t.Date = s.now.Add(FutureSkew) }), ""},
		{"name mismatch", BelongsTo("Anna", "Meier"), s.test(nil), dErrors.CodeNameValidationFailed},
		{"name match ignores case", BelongsTo("ANNA", "berg"), s.test(nil), ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := tc.rule.Validate(s.ctx, tc.doc)
			if tc.code == "" {
				s.NoError(err)
				return
			}
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (s *ValidationSuite) recovery(from, until time.Time) *models.Recovery {
	return &models.Recovery{
		Envelope:       models.NewEnvelope("recovery"),
		FirstPositive:  s.now.AddDate(0, -2, 0),
		ValidFromDate:  from,
		ValidUntilDate: until,
		IssuedBy:       "RKI",
		Holder:         models.ExactName{FirstName: "Anna", LastName: "Berg"},
	}
}

func (s *ValidationSuite) TestRecoveryValidityWindow() {
	today := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	v := All(NotExpired(), NotInFuture(), IssuerPresent())

	s.Run("last valid day is included", func() {
		s.NoError(v.Validate(s.ctx, s.recovery(today.AddDate(0, -1, 0), today)))
	})

	s.Run("day after the last valid day is expired", func() {
		err := v.Validate(s.ctx, s.recovery(today.AddDate(0, -1, 0), today.AddDate(0, 0, -1)))
		s.True(dErrors.HasCode(err, dErrors.CodeExpired), "got %v", err)
	})

	s.Run("first valid day is accepted", func() {
		s.NoError(v.Validate(s.ctx, s.recovery(today, today.AddDate(0, 6, 0))))
	})

	s.Run("not valid yet", func() {
		err := v.Validate(s.ctx, s.recovery(today.AddDate(0, 0, 1), today.AddDate(0, 6, 0)))
		s.True(dErrors.HasCode(err, dErrors.CodeTestInFuture), "got %v", err)
	})

	s.Run("default rejects a recovery that is not valid yet", func() {
		d := Default(staticProfiles{owner: &Identity{FirstName: "Anna", LastName: "Berg"}})
		err := d.Validate(s.ctx, s.recovery(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC)))
		s.True(dErrors.HasCode(err, dErrors.CodeTestInFuture), "got %v", err)
	})
}

func (s *ValidationSuite) TestMaxAgeBoundary() {
	exactly := s.test(func(t *models.CoronaTest) { t.BirthDate = time.Date(2012, 5, 20, 0, 0, 0, 0, time.UTC) })
	s.NoError(MaxAge(14).Validate(s.ctx, exactly))

	dayOlder := s.test(func(t *models.CoronaTest) { t.BirthDate = time.Date(2012, 5, 19, 0, 0, 0, 0, time.UTC) })
	err := MaxAge(14).Validate(s.ctx, dayOlder)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidChildAge))

	younger := s.test(func(t *models.CoronaTest) { t.BirthDate = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC) })
	s.NoError(MaxAge(14).Validate(s.ctx, younger))
}

func (s *ValidationSuite) TestUserOrChild() {
	owner := &Identity{FirstName: "Anna", LastName: "Berg"}
	child := Identity{FirstName: "Ben", LastName: "Berg"}
	childDoc := func(dob time.Time) *models.CoronaTest {
		return s.test(func(t *models.CoronaTest) {
			t.Holder = models.ExactName{FirstName: "Ben", LastName: "Berg"}
			t.BirthDate = dob
		})
	}

	s.Run("owner document", func() {
		s.NoError(NewUserOrChild(staticProfiles{owner: owner}).Validate(s.ctx, s.test(nil)))
	})

	s.Run("young child document", func() {
		v := NewUserOrChild(staticProfiles{owner: owner, children: []Identity{child}})
		s.NoError(v.Validate(s.ctx, childDoc(time.Date(2018, 3, 3, 0, 0, 0, 0, time.UTC))))
	})

	s.Run("stranger reports the owner mismatch", func() {
		v := NewUserOrChild(staticProfiles{owner: owner, children: []Identity{child}})
		doc := s.test(func(t *models.CoronaTest) { t.Holder = models.ExactName{FirstName: "Eve", LastName: "Stone"} })
		s.True(dErrors.HasCode(v.Validate(s.ctx, doc), dErrors.CodeNameValidationFailed))
	})

	s.Run("child too old without owner", func() {
		v := NewUserOrChild(staticProfiles{children: []Identity{child}})
		err := v.Validate(s.ctx, childDoc(time.Date(2000, 3, 3, 0, 0, 0, 0, time.UTC)))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidChildAge))
	})

	s.Run("no profiles", func() {
		err := NewUserOrChild(staticProfiles{}).Validate(s.ctx, s.test(nil))
		s.True(dErrors.HasCode(err, dErrors.CodeValidationFailed))
	})

	s.Run("profile source failure", func() {
		err := NewUserOrChild(staticProfiles{err: errors.New("down")}).Validate(s.ctx, s.test(nil))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ValidationSuite) TestDefault() {
	v := Default(staticProfiles{owner: &Identity{FirstName: "Anna", LastName: "Berg"}})
	s.NoError(v.Validate(s.ctx, s.test(nil)))
	s.NoError(v.Validate(s.ctx, s.appointment()))

	expiredAndPositive := s.test(func(t *models.CoronaTest) {
		t.Date = s.now.Add(-100 * time.Hour)
		t.Negative = false
	})
	s.True(dErrors.HasCode(v.Validate(s.ctx, expiredAndPositive), dErrors.CodeExpired))
}
