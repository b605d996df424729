package models

import "time"

// AssociableToIdentity is implemented by documents naming their holder.
type AssociableToIdentity interface {
	BelongsToUser(firstName, lastName string) bool
}

// ContainsDateOfBirth is implemented by documents carrying the holder's birth
// date, used for child-account age checks.
type ContainsDateOfBirth interface {
	DateOfBirth() time.Time
}

// TestResult is implemented by documents reporting a test outcome.
type TestResult interface {
	IsNegative() bool
}

// Issued is implemented by documents that name their issuer.
type Issued interface {
	Issuer() string
}

// Dated is implemented by documents with a real-world event date (sample
// taken, dose given, first positive result).
type Dated interface {
	EffectiveDate() time.Time
}

// ValidityWindow is implemented by documents whose validity starts at a
// date later than issuance.
type ValidityWindow interface {
	ValidFrom() time.Time
}

var (
	_ Document             = (*CoronaTest)(nil)
	_ AssociableToIdentity = (*CoronaTest)(nil)
	_ ContainsDateOfBirth  = (*CoronaTest)(nil)
	_ TestResult           = (*CoronaTest)(nil)
	_ Issued               = (*CoronaTest)(nil)
	_ Dated                = (*CoronaTest)(nil)

	_ Document             = (*Vaccination)(nil)
	_ AssociableToIdentity = (*Vaccination)(nil)
	_ ContainsDateOfBirth  = (*Vaccination)(nil)
	_ Issued               = (*Vaccination)(nil)
	_ Dated                = (*Vaccination)(nil)

	_ Document             = (*Recovery)(nil)
	_ AssociableToIdentity = (*Recovery)(nil)
	_ ContainsDateOfBirth  = (*Recovery)(nil)
	_ Issued               = (*Recovery)(nil)
	_ Dated                = (*Recovery)(nil)
	_ ValidityWindow       = (*Recovery)(nil)

	_ Document = (*Appointment)(nil)
)
