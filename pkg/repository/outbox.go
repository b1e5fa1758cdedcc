package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
)

// OutboxRepository is the slice of the outbox store the relay needs
type OutboxRepository interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
	MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent, errMsg string) error
}
