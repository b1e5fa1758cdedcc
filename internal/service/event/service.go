package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
	"github.com/jwalitptl/vetclinic-api/pkg/event"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
)

const (
	OutboxSubscriber = "outbox"
	LogSubscriber    = "log"
)

// EventService persists lifecycle events into the outbox so the worker can
// deliver them to the broker
type EventService struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
	now        func() time.Time
}

func NewEventService(outboxRepo repository.OutboxRepository, log *logger.Logger) *EventService {
	return &EventService{
		outboxRepo: outboxRepo,
		logger:     log,
		now:        time.Now,
	}
}

func (s *EventService) Record(ctx context.Context, evt event.Event) error {
	payload, err := event.Marshal(evt)
	if err != nil {
		return err
	}

	now := s.now()
	outboxEvent := &model.OutboxEvent{
		ID:          uuid.New(),
		EventType:   string(evt.Type()),
		AggregateID: evt.AggregateID(),
		Payload:     payload,
		Status:      model.OutboxStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.outboxRepo.Create(ctx, outboxEvent); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// Register wires the outbox recorder and the structured log consumer onto bus
func Register(bus *event.Bus, svc *EventService, log *logger.Logger) error {
	if err := bus.Subscribe(OutboxSubscriber, event.HandlerFunc(svc.Record)); err != nil {
		return err
	}
	return bus.Subscribe(LogSubscriber, NewLogHandler(log))
}

// NewLogHandler writes one structured line per lifecycle event
func NewLogHandler(log *logger.Logger) event.Handler {
	l := log.WithFields(map[string]interface{}{"component": "lifecycle_events"})
	return event.HandlerFunc(func(_ context.Context, evt event.Event) error {
		fields := []interface{}{
			"event_type", string(evt.Type()),
			"appointment_id", evt.AggregateID().String(),
			"occurred_at", evt.OccurredAt(),
		}
		switch e := evt.(type) {
		case event.AppointmentCreated:
			fields = append(fields, "veterinarian_id", e.Veterinarian.ID.String(), "scheduled_at", e.ScheduledAt)
		case event.AppointmentRescheduled:
			fields = append(fields, "old_scheduled_at", e.OldScheduledAt, "new_scheduled_at", e.NewScheduledAt)
		case event.AppointmentCancelled:
			fields = append(fields, "reason", e.Reason)
		}
		l.Info("appointment event", fields...)
		return nil
	})
}
