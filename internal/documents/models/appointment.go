package models

import "time"

// AppointmentGracePeriod is how long an appointment voucher stays listed after
// its slot.
const AppointmentGracePeriod = 24 * time.Hour

// Appointment is a voucher for a booked test slot. It names no holder.
type Appointment struct {
	Envelope
	Timestamp time.Time
	Lab       string
	Address   string
}

func (a *Appointment) Kind() Kind { return KindAppointment }

func (a *Appointment) ExpiresAt() time.Time { return a.Timestamp.Add(AppointmentGracePeriod) }
