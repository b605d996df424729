package models

import "time"

// TestType is the kind of laboratory test behind a CoronaTest.
type TestType string

const (
	TestTypePCR      TestType = "pcr"
	TestTypeAntigen  TestType = "antigen"
	TestTypeAntibody TestType = "antibody"
)

// Validity is how long a negative result of this test type may be shown.
func (t TestType) Validity() time.Duration {
	switch t {
	case TestTypePCR:
		return 72 * time.Hour
	case TestTypeAntigen:
		return 48 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// CoronaTest is a single test result.
type CoronaTest struct {
	Envelope
	Date       time.Time
	TestType   TestType
	Negative   bool
	Laboratory string
	IssuedBy   string
	Holder     HolderName
	BirthDate  time.Time
}

func (t *CoronaTest) Kind() Kind { return KindCoronaTest }

func (t *CoronaTest) ExpiresAt() time.Time { return t.Date.Add(t.TestType.Validity()) }

func (t *CoronaTest) BelongsToUser(firstName, lastName string) bool {
	return t.Holder != nil && t.Holder.Matches(firstName, lastName)
}

func (t *CoronaTest) DateOfBirth() time.Time   { return t.BirthDate }
func (t *CoronaTest) IsNegative() bool         { return t.Negative }
func (t *CoronaTest) Issuer() string           { return t.IssuedBy }
func (t *CoronaTest) EffectiveDate() time.Time { return t.Date }
