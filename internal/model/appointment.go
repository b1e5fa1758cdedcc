package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

type Appointment struct {
	Base
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	VeterinarianID uuid.UUID         `db:"veterinarian_id" json:"veterinarian_id"`
	ScheduledAt    time.Time         `db:"scheduled_at" json:"scheduled_at"`
	ServiceType    string            `db:"service_type" json:"service_type"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Reason         string            `db:"reason" json:"reason,omitempty"`
	TriageLevel    string            `db:"triage_level" json:"triage_level,omitempty"`
	CancelReason   *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

// IsTerminal reports whether no further transition is allowed
func (a *Appointment) IsTerminal() bool {
	return a.Status != AppointmentStatusScheduled
}

type ScheduleAppointmentRequest struct {
	PatientID      uuid.UUID `json:"patient_id" validate:"required"`
	VeterinarianID uuid.UUID `json:"veterinarian_id" validate:"required"`
	ScheduledAt    time.Time `json:"scheduled_at" validate:"required"`
	ServiceType    string    `json:"service_type" validate:"required,max=100"`
	Reason         string    `json:"reason" validate:"max=1000"`
	TriageLevel    string    `json:"triage_level" validate:"max=50"`
}

type RescheduleAppointmentRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type AppointmentFilter struct {
	VeterinarianID *uuid.UUID
	PatientID      *uuid.UUID
	Status         AppointmentStatus
	From           *time.Time
	To             *time.Time
	Pagination
}
