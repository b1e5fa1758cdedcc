package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
)

const notificationColumns = `
	id, appointment_id, recipient_id, event_type, channel, recipient,
	subject, content, status, last_error, sent_at, created_at, updated_at`

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	now := r.now()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = now
	n.UpdatedAt = now

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.AppointmentID,
		n.RecipientID,
		n.EventType,
		n.Channel,
		n.Recipient,
		n.Subject,
		n.Content,
		n.Status,
		n.LastError,
		n.SentAt,
		n.CreatedAt,
		n.UpdatedAt,
	)
	return mapError("create notification", err)
}

func (r *notificationRepository) Update(ctx context.Context, n *model.Notification) error {
	n.UpdatedAt = r.now()

	query := `
		UPDATE notifications
		SET status = $1, last_error = $2, sent_at = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query, n.Status, n.LastError, n.SentAt, n.UpdatedAt, n.ID)
	if err != nil {
		return mapError("update notification", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError("update notification", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *notificationRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE appointment_id = $1 ORDER BY created_at ASC`

	notifications := []*model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, appointmentID); err != nil {
		return nil, mapError("list notifications", err)
	}
	return notifications, nil
}
