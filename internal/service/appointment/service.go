package appointment

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/lock"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
	"github.com/jwalitptl/vetclinic-api/internal/service/audit"
	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/event"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/metrics"
)

const DefaultConflictWindow = 30 * time.Minute

const (
	opSchedule   = "schedule"
	opReschedule = "reschedule"
	opCancel     = "cancel"
	opComplete   = "complete"
)

// Auditor records lifecycle transitions. It must not fail the caller.
type Auditor interface {
	Log(ctx context.Context, action, entityType string, entityID uuid.UUID, opts *audit.LogOptions)
}

type Options struct {
	ConflictWindow time.Duration
	Clock          func() time.Time
}

// Service is the appointment lifecycle manager
type Service struct {
	appointments repository.AppointmentRepository
	parties      repository.PartyRepository
	patients     repository.PatientRepository
	locker       lock.Locker
	events       event.Publisher
	auditor      Auditor
	metrics      *metrics.Metrics
	logger       *logger.Logger

	window time.Duration
	now    func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	parties repository.PartyRepository,
	patients repository.PatientRepository,
	locker lock.Locker,
	events event.Publisher,
	auditor Auditor,
	m *metrics.Metrics,
	log *logger.Logger,
	opts Options,
) *Service {
	if opts.ConflictWindow <= 0 {
		opts.ConflictWindow = DefaultConflictWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Service{
		appointments: appointments,
		parties:      parties,
		patients:     patients,
		locker:       locker,
		events:       events,
		auditor:      auditor,
		metrics:      m,
		logger:       log.WithFields(map[string]interface{}{"component": "appointment_service"}),
		window:       opts.ConflictWindow,
		now:          opts.Clock,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr("appointment", err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.NewBadRequest(fmt.Sprintf("unknown status %q", filter.Status), nil)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, errors.NewBadRequest("to must not be before from", nil)
	}
	filter.Pagination = filter.Pagination.Normalize()

	list, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to list appointments: %w", err))
	}
	return list, nil
}

// checkConflict reports the earliest other scheduled appointment of the
// veterinarian strictly inside (at-window, at+window)
func (s *Service) checkConflict(ctx context.Context, vetID uuid.UUID, at time.Time, exclude *uuid.UUID) error {
	conflicts, err := s.appointments.FindConflicting(ctx, vetID, at.Add(-s.window), at.Add(s.window), exclude)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to check conflicts: %w", err))
	}
	if len(conflicts) == 0 {
		return nil
	}

	first := conflicts[0]
	return errors.NewConflict(errors.ReasonSchedulingOverlap,
		fmt.Sprintf("veterinarian already has an appointment at %s", first.ScheduledAt.Format(time.RFC3339)), nil).
		WithDetail("conflicting_appointment_id", first.ID.String()).
		WithDetail("conflicting_time", first.ScheduledAt)
}

// withVeterinarianLock runs fn under the per-veterinarian lock and translates lock failures
func (s *Service) withVeterinarianLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context) error) error {
	requested := time.Now()
	err := s.locker.WithVeterinarianLock(ctx, vetID, func(ctx context.Context) error {
		s.metrics.LockWait.Observe(time.Since(requested).Seconds())
		return fn(ctx)
	})

	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, lock.ErrLockNotAcquired):
		return errors.NewConflict(errors.ReasonScheduleLocked,
			"veterinarian schedule is being changed by another request, retry shortly", err)
	case stderrors.Is(err, repository.ErrDuplicate):
		return errors.NewConflict(errors.ReasonSchedulingOverlap,
			"veterinarian already has an appointment at this time", err)
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.NewInternal(err)
}

// transitionRejected maps the stored status onto the error a caller should see
func transitionRejected(op string, status model.AppointmentStatus) error {
	if op == opCancel {
		switch status {
		case model.AppointmentStatusCompleted:
			return errors.NewInvalidState(errors.ReasonAlreadyCompleted, "appointment is already completed")
		case model.AppointmentStatusCancelled:
			return errors.NewInvalidState(errors.ReasonAlreadyCancelled, "appointment is already cancelled")
		}
	}
	return errors.NewInvalidState(errors.ReasonNotScheduled,
		fmt.Sprintf("cannot %s an appointment that is %s", op, status))
}

// applyTransition persists apt if its stored status is still scheduled. When
// another writer got there first the record is re-read to explain why.
func (s *Service) applyTransition(ctx context.Context, op string, apt *model.Appointment) error {
	err := s.appointments.UpdateIfStatus(ctx, apt, model.AppointmentStatusScheduled)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, repository.ErrStateChanged) {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to %s appointment: %w", op, err))
	}

	current, getErr := s.appointments.Get(ctx, apt.ID)
	if getErr != nil {
		return notFoundOr("appointment", getErr)
	}
	return transitionRejected(op, current.Status)
}

func requireFuture(at, now time.Time) error {
	if at.After(now) {
		return nil
	}
	return errors.NewInvalidState(errors.ReasonPastDateTime,
		fmt.Sprintf("date-time %s is not after %s", at.Format(time.RFC3339), now.Format(time.RFC3339)))
}

func (s *Service) record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(errors.ReasonOf(err)))
		if outcome == "" {
			outcome = "error"
		}
		if errors.Is(err, errors.ErrConflict) {
			s.metrics.SchedulingConflicts.WithLabelValues(string(errors.ReasonOf(err))).Inc()
		}
	}
	s.metrics.AppointmentOperations.WithLabelValues(op, outcome).Inc()
}

func actorOf(ctx context.Context) uuid.UUID {
	if id := model.ActorID(ctx); id != nil {
		return *id
	}
	return uuid.Nil
}

func notFoundOr(resource string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NewNotFound(resource, err)
	}
	return errors.NewInternal(fmt.Errorf("failed to load %s: %w", resource, err))
}
