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

const outboxColumns = `
	id, event_type, aggregate_id, payload, status, error_message,
	retry_count, retry_at, created_at, processed_at, updated_at`

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if len(event.Payload) == 0 {
		return fmt.Errorf("event payload cannot be empty")
	}

	now := r.now()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now

	query := `
		INSERT INTO outbox_events (
			id, event_type, aggregate_id, payload, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateID,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// ClaimDue pushes retry_at of the claimed rows forward by lease. A worker that
// dies mid-batch leaves them due again once the lease expires.
func (r *outboxRepository) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	now := r.now()
	query := `
		UPDATE outbox_events
		SET retry_at = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status IN ('pending', 'retry')
			AND (retry_at IS NULL OR retry_at <= $2)
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	events := []*model.OutboxEvent{}
	if err := r.db.SelectContext(ctx, &events, query, now.Add(lease), now, limit); err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := r.now()
	query := `
		UPDATE outbox_events
		SET status = 'processed', processed_at = $1, updated_at = $1, error_message = NULL, retry_at = NULL
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, now, id); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'retry', error_message = $1, retry_at = $2,
			retry_count = retry_count + 1, updated_at = $3
		WHERE id = $4
	`
	if _, err := r.db.ExecContext(ctx, query, errMsg, retryAt, r.now(), id); err != nil {
		return fmt.Errorf("failed to schedule event retry: %w", err)
	}
	return nil
}

func (r *outboxRepository) MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent, errMsg string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO outbox_events_deadletter (
				event_id, event_type, payload, error_message, retry_count, created_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (event_id) DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, insert,
			event.ID, event.EventType, []byte(event.Payload), errMsg, event.RetryCount+1, r.now(),
		); err != nil {
			return fmt.Errorf("failed to insert dead letter: %w", err)
		}

		update := `
			UPDATE outbox_events
			SET status = 'failed', error_message = $1, retry_count = retry_count + 1,
				retry_at = NULL, updated_at = $2
			WHERE id = $3
		`
		if _, err := tx.ExecContext(ctx, update, errMsg, r.now(), event.ID); err != nil {
			return fmt.Errorf("failed to mark event failed: %w", err)
		}
		return nil
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
