package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
)

const appointmentColumns = `
	id, patient_id, veterinarian_id, scheduled_at, service_type, status,
	reason, triage_level, cancel_reason, cancelled_at, completed_at,
	created_at, updated_at, created_by, updated_by`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	appointment.Stamp(model.ActorID(ctx), r.now())

	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.VeterinarianID,
		appointment.ScheduledAt,
		appointment.ServiceType,
		appointment.Status,
		appointment.Reason,
		appointment.TriageLevel,
		appointment.CancelReason,
		appointment.CancelledAt,
		appointment.CompletedAt,
		appointment.CreatedAt,
		appointment.UpdatedAt,
		appointment.CreatedBy,
		appointment.UpdatedBy,
	)
	return mapError("create appointment", err)
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, mapError("get appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filter.VeterinarianID != nil {
		query += fmt.Sprintf(" AND veterinarian_id = $%d", argCount)
		args = append(args, *filter.VeterinarianID)
		argCount++
	}
	if filter.PatientID != nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, *filter.PatientID)
		argCount++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filter.Status)
		argCount++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND scheduled_at >= $%d", argCount)
		args = append(args, *filter.From)
		argCount++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND scheduled_at < $%d", argCount)
		args = append(args, *filter.To)
		argCount++
	}

	page := filter.Pagination.Normalize()
	query += fmt.Sprintf(" ORDER BY scheduled_at ASC, id ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, page.Limit, page.Offset)

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, mapError("list appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) FindConflicting(ctx context.Context, veterinarianID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE veterinarian_id = $1
		AND status = 'scheduled'
		AND scheduled_at > $2
		AND scheduled_at < $3
	`
	args := []interface{}{veterinarianID, from, to}

	if excludeID != nil {
		query += " AND id <> $4"
		args = append(args, *excludeID)
	}
	query += " ORDER BY scheduled_at ASC"

	conflicts := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &conflicts, query, args...); err != nil {
		return nil, mapError("find conflicting appointments", err)
	}
	return conflicts, nil
}

func (r *appointmentRepository) UpdateIfStatus(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error {
	appointment.Touch(model.ActorID(ctx), r.now())

	query := `
		UPDATE appointments
		SET scheduled_at = :scheduled_at,
			status = :status,
			cancel_reason = :cancel_reason,
			cancelled_at = :cancelled_at,
			completed_at = :completed_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND status = :expected_status
	`
	params := map[string]interface{}{
		"scheduled_at":    appointment.ScheduledAt,
		"status":          appointment.Status,
		"cancel_reason":   appointment.CancelReason,
		"cancelled_at":    appointment.CancelledAt,
		"completed_at":    appointment.CompletedAt,
		"updated_at":      appointment.UpdatedAt,
		"updated_by":      appointment.UpdatedBy,
		"id":              appointment.ID,
		"expected_status": expected,
	}

	bound, args, err := sqlx.Named(query, params)
	if err != nil {
		return fmt.Errorf("failed to bind appointment update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(bound), args...)
	if err != nil {
		return mapError("update appointment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrStateChanged
	}
	return nil
}
