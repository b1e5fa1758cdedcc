package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jwalitptl/vetclinic-api/internal/lock"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/event"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/metrics"
)

var clockNow = time.Date(2030, 3, 10, 9, 0, 0, 0, time.UTC)

type LifecycleSuite struct {
	suite.Suite

	ctx          context.Context
	appointments *memAppointments
	parties      *memParties
	patients     *memPatients
	events       *recordingPublisher
	auditor      *recordingAuditor
	svc          *Service

	client, vet5, vet6, secretary *model.Party
	p1, p2                        *model.Patient
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	clock := func() time.Time { return clockNow }

	s.client = &model.Party{Base: model.Base{ID: uuid.New()}, Role: model.PartyRoleClient,
		FirstName: "Marta", LastName: "Ruiz", Email: "marta@example.com", Phone: "+34 600 111 222"}
	s.vet5 = &model.Party{Base: model.Base{ID: uuid.New()}, Role: model.PartyRoleVeterinarian,
		FirstName: "Pablo", LastName: "Vega", Email: "pablo@clinic.test",
		Veterinarian: &model.VeterinarianProfile{LicenseNumber: "VET-5"}}
	s.vet6 = &model.Party{Base: model.Base{ID: uuid.New()}, Role: model.PartyRoleVeterinarian,
		FirstName: "Irene", LastName: "Sol", Email: "irene@clinic.test",
		Veterinarian: &model.VeterinarianProfile{LicenseNumber: "VET-6"}}
	s.secretary = &model.Party{Base: model.Base{ID: uuid.New()}, Role: model.PartyRoleSecretary, FirstName: "Eva"}

	s.p1 = &model.Patient{Base: model.Base{ID: uuid.New()}, OwnerID: s.client.ID, Name: "Toby", Species: "dog"}
	s.p2 = &model.Patient{Base: model.Base{ID: uuid.New()}, OwnerID: s.client.ID, Name: "Misu", Species: "cat"}

	s.appointments = newMemAppointments(clock)
	s.parties = &memParties{items: map[uuid.UUID]*model.Party{
		s.client.ID: s.client, s.vet5.ID: s.vet5, s.vet6.ID: s.vet6, s.secretary.ID: s.secretary,
	}}
	s.patients = &memPatients{items: map[uuid.UUID]*model.Patient{s.p1.ID: s.p1, s.p2.ID: s.p2}}
	s.events = &recordingPublisher{}
	s.auditor = &recordingAuditor{}

	s.ctx = model.WithActor(context.Background(), model.Actor{ID: s.secretary.ID, Role: model.PartyRoleSecretary})
	s.svc = s.newService(lock.NewLocalLocker(time.Second))
}

func (s *LifecycleSuite) newService(locker lock.Locker) *Service {
	return NewService(s.appointments, s.parties, s.patients, locker, s.events, s.auditor,
		metrics.NewMetrics("test"), logger.Nop(),
		Options{ConflictWindow: 30 * time.Minute, Clock: func() time.Time { return clockNow }})
}

func (s *LifecycleSuite) schedule(patient *model.Patient, vet *model.Party, at time.Time) (*model.Appointment, error) {
	return s.svc.Schedule(s.ctx, model.ScheduleAppointmentRequest{
		PatientID:      patient.ID,
		VeterinarianID: vet.ID,
		ScheduledAt:    at,
		ServiceType:    "checkup",
		Reason:         "annual vaccines",
		TriageLevel:    "routine",
	})
}

func (s *LifecycleSuite) requireReason(err error, code errors.ErrorCode, reason errors.Reason) {
	s.Require().Error(err)
	s.True(errors.Is(err, code), "unexpected error: %v", err)
	s.Equal(reason, errors.ReasonOf(err))
}

func (s *LifecycleSuite) TestScheduleFuture() {
	at := clockNow.Add(24 * time.Hour)
	apt, err := s.schedule(s.p1, s.vet5, at)
	s.Require().NoError(err)

	s.Equal(model.AppointmentStatusScheduled, apt.Status)
	s.Equal(at, apt.ScheduledAt)
	s.NotEqual(uuid.Nil, apt.ID)
	s.Require().NotNil(apt.CreatedBy)
	s.Equal(s.secretary.ID, *apt.CreatedBy)

	stored, err := s.svc.Get(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(at, stored.ScheduledAt)

	s.Require().Len(s.events.events, 1)
	created, ok := s.events.last().(event.AppointmentCreated)
	s.Require().True(ok)
	s.Equal(apt.ID, created.AppointmentID)
	s.Equal("Toby", created.Patient.Name)
	s.Equal("pablo@clinic.test", created.Veterinarian.Email)
	s.Equal("Marta Ruiz", created.Client.Name)
	s.Equal("marta@example.com", created.Client.Email)
	s.Equal(s.secretary.ID, created.ActorID)

	s.Require().Len(s.auditor.entries, 1)
	s.Equal(model.AuditActionCreate, s.auditor.entries[0].action)
}

func (s *LifecycleSuite) TestScheduleNotInFuture() {
	for name, at := range map[string]time.Time{
		"now":  clockNow,
		"past": clockNow.Add(-time.Minute),
	} {
		s.Run(name, func() {
			_, err := s.schedule(s.p1, s.vet5, at)
			s.requireReason(err, errors.ErrInvalidState, errors.ReasonPastDateTime)
		})
	}
	s.Zero(s.appointments.count())
	s.Empty(s.events.events)
}

func (s *LifecycleSuite) TestScheduleUnknownReferences() {
	_, err := s.svc.Schedule(s.ctx, model.ScheduleAppointmentRequest{
		PatientID: uuid.New(), VeterinarianID: s.vet5.ID, ScheduledAt: clockNow.Add(time.Hour),
	})
	s.True(errors.Is(err, errors.ErrNotFound))

	_, err = s.svc.Schedule(s.ctx, model.ScheduleAppointmentRequest{
		PatientID: s.p1.ID, VeterinarianID: uuid.New(), ScheduledAt: clockNow.Add(time.Hour),
	})
	s.True(errors.Is(err, errors.ErrNotFound))

	_, err = s.svc.Schedule(s.ctx, model.ScheduleAppointmentRequest{
		PatientID: s.p1.ID, VeterinarianID: s.client.ID, ScheduledAt: clockNow.Add(time.Hour),
	})
	s.requireReason(err, errors.ErrBadRequest, errors.ReasonWrongRole)
	s.Zero(s.appointments.count())
}

func (s *LifecycleSuite) TestScheduleConflictWindow() {
	first, err := s.schedule(s.p1, s.vet5, clockNow.Add(24*time.Hour))
	s.Require().NoError(err)

	_, err = s.schedule(s.p2, s.vet5, clockNow.Add(24*time.Hour+10*time.Minute))
	s.requireReason(err, errors.ErrConflict, errors.ReasonSchedulingOverlap)

	var appErr *errors.AppError
	s.Require().ErrorAs(err, &appErr)
	s.Equal(first.ID.String(), appErr.Details["conflicting_appointment_id"])
	s.Equal(first.ScheduledAt, appErr.Details["conflicting_time"])

	_, err = s.schedule(s.p2, s.vet5, clockNow.Add(24*time.Hour-29*time.Minute))
	s.requireReason(err, errors.ErrConflict, errors.ReasonSchedulingOverlap)

	// exactly one window away is outside the open interval
	_, err = s.schedule(s.p2, s.vet5, clockNow.Add(24*time.Hour+30*time.Minute))
	s.NoError(err)

	// same time, different veterinarian
	_, err = s.schedule(s.p2, s.vet6, clockNow.Add(24*time.Hour))
	s.NoError(err)

	s.Equal(3, s.appointments.count())
}

func (s *LifecycleSuite) TestConflictReportsEarliest() {
	early, err := s.schedule(s.p1, s.vet5, clockNow.Add(10*time.Hour))
	s.Require().NoError(err)
	_, err = s.schedule(s.p2, s.vet5, clockNow.Add(10*time.Hour+40*time.Minute))
	s.Require().NoError(err)

	_, err = s.schedule(s.p2, s.vet5, clockNow.Add(10*time.Hour+20*time.Minute))
	var appErr *errors.AppError
	s.Require().ErrorAs(err, &appErr)
	s.Equal(early.ID.String(), appErr.Details["conflicting_appointment_id"])
}

func (s *LifecycleSuite) TestCancelledAppointmentsDoNotConflict() {
	apt, err := s.schedule(s.p1, s.vet5, clockNow.Add(5*time.Hour))
	s.Require().NoError(err)
	_, err = s.svc.Cancel(s.ctx, apt.ID, model.CancelAppointmentRequest{Reason: "sick"})
	s.Require().NoError(err)

	_, err = s.schedule(s.p2, s.vet5, clockNow.Add(5*time.Hour))
	s.NoError(err)
}

func (s *LifecycleSuite) TestRescheduleExcludesItself() {
	apt, err := s.schedule(s.p1, s.vet5, clockNow.Add(24*time.Hour))
	s.Require().NoError(err)

	moved, err := s.svc.Reschedule(s.ctx, apt.ID, model.RescheduleAppointmentRequest{
		ScheduledAt: clockNow.Add(24*time.Hour + 15*time.Minute),
	})
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusScheduled, moved.Status)
	s.Equal(clockNow.Add(24*time.Hour+15*time.Minute), moved.ScheduledAt)

	evt, ok := s.events.last().(event.AppointmentRescheduled)
	s.Require().True(ok)
	s.Equal(clockNow.Add(24*time.Hour), evt.OldScheduledAt)
	s.Equal(clockNow.Add(24*time.Hour+15*time.Minute), evt.NewScheduledAt)
}

func (s *LifecycleSuite) TestRescheduleIntoConflict() {
	a1, err := s.schedule(s.p1, s.vet5, clockNow.Add(24*time.Hour))
	s.Require().NoError(err)
	a2, err := s.schedule(s.p2, s.vet5, clockNow.Add(48*time.Hour))
	s.Require().NoError(err)

	_, err = s.svc.Reschedule(s.ctx, a2.ID, model.RescheduleAppointmentRequest{ScheduledAt: clockNow.Add(24*time.Hour + 5*time.Minute)})
	s.requireReason(err, errors.ErrConflict, errors.ReasonSchedulingOverlap)

	stored, err := s.svc.Get(s.ctx, a2.ID)
	s.Require().NoError(err)
	s.Equal(clockNow.Add(48*time.Hour), stored.ScheduledAt)
	s.NotEqual(a1.ID, stored.ID)
}

func (s *LifecycleSuite) TestRescheduleRejections() {
	apt, err := s.schedule(s.p1, s.vet5, clockNow.Add(24*time.Hour))
	s.Require().NoError(err)

	_, err = s.svc.Reschedule(s.ctx, apt.ID, model.RescheduleAppointmentRequest{ScheduledAt: clockNow.Add(-time.Hour)})
	s.requireReason(err, errors.ErrInvalidState, errors.ReasonPastDateTime)

	_, err = s.svc.Reschedule(s.ctx, uuid.New(), model.RescheduleAppointmentRequest{ScheduledAt: clockNow.Add(time.Hour)})
	s.True(errors.Is(err, errors.ErrNotFound))

	for _, status := range []model.AppointmentStatus{model.AppointmentStatusCompleted, model.AppointmentStatusCancelled} {
		terminal := model.Appointment{
			Base:           model.Base{ID: uuid.New()},
			PatientID:      s.p2.ID,
			VeterinarianID: s.vet6.ID,
			ScheduledAt:    clockNow.Add(72 * time.Hour),
			Status:         status,
		}
		s.appointments.force(terminal)

		_, err := s.svc.Reschedule(s.ctx, terminal.ID, model.RescheduleAppointmentRequest{ScheduledAt: clockNow.Add(96 * time.Hour)})
		s.requireReason(err, errors.ErrInvalidState, errors.ReasonNotScheduled)

		stored, err := s.svc.Get(s.ctx, terminal.ID)
		s.Require().NoError(err)
		s.Equal(terminal.ScheduledAt, stored.ScheduledAt)
		s.Equal(status, stored.Status)
	}
}

func (s *LifecycleSuite) TestCompleteTwice() {
	apt, err := s.schedule(s.p1, s.vet5, clockNow.Add(time.Hour))
	s.Require().NoError(err)

	done, err := s.svc.Complete(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusCompleted, done.Status)
	s.Require().NotNil(done.CompletedAt)

	_, err = s.svc.Complete(s.ctx, apt.ID)
	s.requireReason(err, errors.ErrInvalidState, errors.ReasonNotScheduled)

	stored, err := s.svc.Get(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusCompleted, stored.Status)
}

func (s *LifecycleSuite) TestCancelIsSingleUpdate() {
	apt, err := s.schedule(s.p1, s.vet5, clockNow.Add(time.Hour))
	s.Require().NoError(err)

	cancelled, err := s.svc.Cancel(s.ctx, apt.ID, model.CancelAppointmentRequest{Reason: "owner travelling"})
	s.Require().NoError(err)
	s.Equal(1, s.appointments.updates)

	s.Equal(model.AppointmentStatusCancelled, cancelled.Status)
	s.Require().NotNil(cancelled.CancelReason)
	s.Equal("owner travelling", *cancelled.CancelReason)
	s.Require().NotNil(cancelled.CancelledAt)

	stored, err := s.svc.Get(s.ctx, apt.ID)
	s.Require().NoError(err)
	s.Equal(model.AppointmentStatusCancelled, stored.Status)
	s.Equal("owner travelling", *stored.CancelReason)

	evt, ok := s.events.last().(event.AppointmentCancelled)
	s.Require().True(ok)
	s.Equal("owner travelling", evt.Reason)
}

func (s *LifecycleSuite) TestCancelRejections() {
	apt, err := s.schedule(s.p1, s.vet5, clockNow.Add(time.Hour))
	s.Require().NoError(err)
	_, err = s.svc.Cancel(s.ctx, apt.ID, model.CancelAppointmentRequest{})
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, apt.ID, model.CancelAppointmentRequest{Reason: "again"})
	s.requireReason(err, errors.ErrInvalidState, errors.ReasonAlreadyCancelled)

	done, err := s.schedule(s.p2, s.vet6, clockNow.Add(2*time.Hour))
	s.Require().NoError(err)
	_, err = s.svc.Complete(s.ctx, done.ID)
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, done.ID, model.CancelAppointmentRequest{Reason: "late"})
	s.requireReason(err, errors.ErrInvalidState, errors.ReasonAlreadyCompleted)

	stored, err := s.svc.Get(s.ctx, done.ID)
	s.Require().NoError(err)
	s.Nil(stored.CancelReason)
}

func (s *LifecycleSuite) TestLostRaceIsReportedFromStoredState() {
	apt, err := s.schedule(s.p1, s.vet5, clockNow.Add(time.Hour))
	s.Require().NoError(err)

	s.appointments.beforeUpdate = func(id uuid.UUID) {
		s.appointments.beforeUpdate = nil
		stored, _ := s.appointments.Get(context.Background(), id)
		stored.Status = model.AppointmentStatusCompleted
		s.appointments.force(*stored)
	}

	_, err = s.svc.Cancel(s.ctx, apt.ID, model.CancelAppointmentRequest{Reason: "race"})
	s.requireReason(err, errors.ErrInvalidState, errors.ReasonAlreadyCompleted)
}

func (s *LifecycleSuite) TestLockUnavailable() {
	svc := s.newService(blockingLocker{})

	_, err := svc.Schedule(s.ctx, model.ScheduleAppointmentRequest{
		PatientID: s.p1.ID, VeterinarianID: s.vet5.ID, ScheduledAt: clockNow.Add(time.Hour), ServiceType: "checkup",
	})
	s.requireReason(err, errors.ErrConflict, errors.ReasonScheduleLocked)
	s.Zero(s.appointments.count())
}

func (s *LifecycleSuite) TestUniqueViolationIsOverlap() {
	// another instance inserted the same slot between our check and insert
	s.appointments.createErr = repository.ErrDuplicate

	_, err := s.schedule(s.p1, s.vet5, clockNow.Add(time.Hour))
	s.requireReason(err, errors.ErrConflict, errors.ReasonSchedulingOverlap)
	s.Empty(s.events.events)
}

func (s *LifecycleSuite) TestScenario() {
	a1, err := s.schedule(s.p1, s.vet5, clockNow.Add(24*time.Hour))
	s.Require().NoError(err)

	_, err = s.schedule(s.p2, s.vet5, clockNow.Add(24*time.Hour+10*time.Minute))
	s.requireReason(err, errors.ErrConflict, errors.ReasonSchedulingOverlap)

	_, err = s.svc.Reschedule(s.ctx, a1.ID, model.RescheduleAppointmentRequest{ScheduledAt: clockNow.Add(48 * time.Hour)})
	s.Require().NoError(err)

	_, err = s.svc.Complete(s.ctx, a1.ID)
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, a1.ID, model.CancelAppointmentRequest{Reason: "too late"})
	s.requireReason(err, errors.ErrInvalidState, errors.ReasonAlreadyCompleted)

	s.Equal([]event.EventType{
		event.AppointmentCreatedType,
		event.AppointmentRescheduledType,
		event.AppointmentCompletedType,
	}, s.events.types())
}

func (s *LifecycleSuite) TestList() {
	_, err := s.schedule(s.p1, s.vet5, clockNow.Add(3*time.Hour))
	s.Require().NoError(err)
	_, err = s.schedule(s.p2, s.vet5, clockNow.Add(time.Hour))
	s.Require().NoError(err)
	_, err = s.schedule(s.p2, s.vet6, clockNow.Add(time.Hour))
	s.Require().NoError(err)

	list, err := s.svc.List(s.ctx, model.AppointmentFilter{VeterinarianID: &s.vet5.ID})
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.True(list[0].ScheduledAt.Before(list[1].ScheduledAt))

	_, err = s.svc.List(s.ctx, model.AppointmentFilter{Status: "pending"})
	s.True(errors.Is(err, errors.ErrBadRequest))
}

func TestConcurrentScheduleSameSlot(t *testing.T) {
	clock := func() time.Time { return clockNow }
	vet := &model.Party{Base: model.Base{ID: uuid.New()}, Role: model.PartyRoleVeterinarian}
	owner := &model.Party{Base: model.Base{ID: uuid.New()}, Role: model.PartyRoleClient}
	patient := &model.Patient{Base: model.Base{ID: uuid.New()}, OwnerID: owner.ID, Name: "Rex"}

	store := newMemAppointments(clock)
	svc := NewService(store,
		&memParties{items: map[uuid.UUID]*model.Party{vet.ID: vet, owner.ID: owner}},
		&memPatients{items: map[uuid.UUID]*model.Patient{patient.ID: patient}},
		lock.NewLocalLocker(2*time.Second), &recordingPublisher{}, &recordingAuditor{},
		metrics.NewMetrics("test"), logger.Nop(), Options{Clock: clock})

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Schedule(context.Background(), model.ScheduleAppointmentRequest{
				PatientID:      patient.ID,
				VeterinarianID: vet.ID,
				ScheduledAt:    clockNow.Add(time.Hour + time.Duration(i)*time.Minute),
				ServiceType:    "checkup",
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, errors.ErrConflict), "unexpected error: %v", err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	assert.Equal(t, 1, store.count())
}
