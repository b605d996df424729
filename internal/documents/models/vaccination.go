package models

import "time"

// DefaultVaccinationValidity applies when the certificate carries no expiry.
const DefaultVaccinationValidity = 365 * 24 * time.Hour

// Vaccination is one administered dose of a vaccination series.
type Vaccination struct {
	Envelope
	DoseNumber       int
	DosesTotalNumber int
	VaccinatedAt     time.Time
	Product          string
	Country          string
	IssuedBy         string
	CertificateID    string
	// ValidUntil is the certificate expiry; zero when the issuer set none.
	ValidUntil time.Time
	Holder     HolderName
	BirthDate  time.Time
}

func (v *Vaccination) Kind() Kind { return KindVaccination }

func (v *Vaccination) ExpiresAt() time.Time {
	if !v.ValidUntil.IsZero() {
		return v.ValidUntil
	}
	return v.VaccinatedAt.Add(DefaultVaccinationValidity)
}

// IsComplete reports whether the dose completes the series.
func (v *Vaccination) IsComplete() bool {
	return v.DosesTotalNumber > 0 && v.DoseNumber >= v.DosesTotalNumber
}

func (v *Vaccination) BelongsToUser(firstName, lastName string) bool {
	return v.Holder != nil && v.Holder.Matches(firstName, lastName)
}

func (v *Vaccination) DateOfBirth() time.Time   { return v.BirthDate }
func (v *Vaccination) Issuer() string           { return v.IssuedBy }
func (v *Vaccination) EffectiveDate() time.Time { return v.VaccinatedAt }
