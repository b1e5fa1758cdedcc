package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrStateChanged = errors.New("record state changed concurrently")
	ErrDuplicate    = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		// FindConflicting returns scheduled appointments of the veterinarian strictly
		// inside (from, to), ascending by time, leaving out excludeID.
		FindConflicting(ctx context.Context, veterinarianID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)
		// UpdateIfStatus writes the mutable columns only while the stored status
		// still equals expected. ErrStateChanged otherwise.
		UpdateIfStatus(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error
	}

	PartyRepository interface {
		Create(ctx context.Context, party *model.Party) error
		Get(ctx context.Context, id uuid.UUID) (*model.Party, error)
		List(ctx context.Context, filter model.PartyFilter) ([]*model.Party, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimDue leases up to limit due events so concurrent workers skip them
		ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Update(ctx context.Context, notification *model.Notification) error
		ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.Notification, error)
	}
)
