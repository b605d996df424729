package models

import "time"

// Recovery certifies recovery after a positive test.
type Recovery struct {
	Envelope
	FirstPositive  time.Time
	ValidFromDate  time.Time
	ValidUntilDate time.Time
	Country        string
	IssuedBy       string
	CertificateID  string
	Holder         HolderName
	BirthDate      time.Time
}

func (r *Recovery) Kind() Kind { return KindRecovery }

// ExpiresAt is the end of the last valid day; ValidUntilDate itself is
// still valid.
func (r *Recovery) ExpiresAt() time.Time { return r.ValidUntilDate.AddDate(0, 0, 1) }

func (r *Recovery) ValidFrom() time.Time { return r.ValidFromDate }

func (r *Recovery) BelongsToUser(firstName, lastName string) bool {
	return r.Holder != nil && r.Holder.Matches(firstName, lastName)
}

func (r *Recovery) DateOfBirth() time.Time   { return r.BirthDate }
func (r *Recovery) Issuer() string           { return r.IssuedBy }
func (r *Recovery) EffectiveDate() time.Time { return r.FirstPositive }
