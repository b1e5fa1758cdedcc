package appointment

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
	"github.com/jwalitptl/vetclinic-api/internal/service/audit"
	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/event"
)

// Schedule books a new appointment for a patient with a veterinarian
func (s *Service) Schedule(ctx context.Context, req model.ScheduleAppointmentRequest) (apt *model.Appointment, err error) {
	defer func() { s.record(opSchedule, err) }()

	patient, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		return nil, notFoundOr("patient", err)
	}

	vet, err := s.parties.Get(ctx, req.VeterinarianID)
	if err != nil {
		return nil, notFoundOr("veterinarian", err)
	}
	if !vet.Is(model.PartyRoleVeterinarian) {
		return nil, errors.NewBadRequest(fmt.Sprintf("party %s is not a veterinarian", vet.ID), nil).
			WithReason(errors.ReasonWrongRole)
	}

	at := req.ScheduledAt.UTC()
	if err := requireFuture(at, s.now()); err != nil {
		return nil, err
	}

	apt = &model.Appointment{
		PatientID:      patient.ID,
		VeterinarianID: vet.ID,
		ScheduledAt:    at,
		ServiceType:    req.ServiceType,
		Status:         model.AppointmentStatusScheduled,
		Reason:         req.Reason,
		TriageLevel:    req.TriageLevel,
	}

	err = s.withVeterinarianLock(ctx, vet.ID, func(ctx context.Context) error {
		if err := s.checkConflict(ctx, vet.ID, at, nil); err != nil {
			return err
		}
		if err := s.appointments.Create(ctx, apt); err != nil {
			if stderrors.Is(err, repository.ErrDuplicate) {
				return err
			}
			return errors.NewInternal(fmt.Errorf("failed to create appointment: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment scheduled",
		"appointment_id", apt.ID.String(),
		"veterinarian_id", vet.ID.String(),
		"scheduled_at", at)

	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityAppointment, apt.ID, &audit.LogOptions{
		Changes: apt,
	})

	s.events.Publish(ctx, event.AppointmentCreated{
		Meta:         event.NewMeta(apt.ID, actorOf(ctx), apt.CreatedAt),
		Patient:      event.PatientInfo{ID: patient.ID, Name: patient.Name, Species: patient.Species},
		Veterinarian: contactOf(vet),
		Client:       s.clientContact(ctx, patient.OwnerID),
		ScheduledAt:  apt.ScheduledAt,
		ServiceType:  apt.ServiceType,
		Reason:       apt.Reason,
		TriageLevel:  apt.TriageLevel,
	})

	return apt, nil
}

// Reschedule moves a scheduled appointment to a new date-time
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req model.RescheduleAppointmentRequest) (apt *model.Appointment, err error) {
	defer func() { s.record(opReschedule, err) }()

	apt, err = s.appointments.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr("appointment", err)
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, transitionRejected(opReschedule, apt.Status)
	}

	at := req.ScheduledAt.UTC()
	if err := requireFuture(at, s.now()); err != nil {
		return nil, err
	}

	old := apt.ScheduledAt
	err = s.withVeterinarianLock(ctx, apt.VeterinarianID, func(ctx context.Context) error {
		if err := s.checkConflict(ctx, apt.VeterinarianID, at, &apt.ID); err != nil {
			return err
		}
		apt.ScheduledAt = at
		return s.applyTransition(ctx, opReschedule, apt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment rescheduled",
		"appointment_id", apt.ID.String(),
		"from", old,
		"to", at)

	s.auditor.Log(ctx, model.AuditActionReschedule, model.AuditEntityAppointment, apt.ID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"old_scheduled_at": old,
			"new_scheduled_at": at,
		},
	})

	s.events.Publish(ctx, event.AppointmentRescheduled{
		Meta:           event.NewMeta(apt.ID, actorOf(ctx), apt.UpdatedAt),
		PatientID:      apt.PatientID,
		VeterinarianID: apt.VeterinarianID,
		OldScheduledAt: old,
		NewScheduledAt: at,
	})

	return apt, nil
}

// Cancel moves a scheduled appointment to cancelled, recording the reason
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, req model.CancelAppointmentRequest) (apt *model.Appointment, err error) {
	defer func() { s.record(opCancel, err) }()

	apt, err = s.appointments.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr("appointment", err)
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, transitionRejected(opCancel, apt.Status)
	}

	now := s.now().UTC()
	reason := req.Reason
	apt.Status = model.AppointmentStatusCancelled
	apt.CancelReason = &reason
	apt.CancelledAt = &now

	if err := s.applyTransition(ctx, opCancel, apt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment cancelled", "appointment_id", apt.ID.String())

	s.auditor.Log(ctx, model.AuditActionCancel, model.AuditEntityAppointment, apt.ID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"status":        apt.Status,
			"cancel_reason": reason,
		},
	})

	s.events.Publish(ctx, event.AppointmentCancelled{
		Meta:           event.NewMeta(apt.ID, actorOf(ctx), now),
		PatientID:      apt.PatientID,
		VeterinarianID: apt.VeterinarianID,
		ScheduledAt:    apt.ScheduledAt,
		Reason:         reason,
	})

	return apt, nil
}

// Complete marks a scheduled appointment as attended. Completed is terminal.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (apt *model.Appointment, err error) {
	defer func() { s.record(opComplete, err) }()

	apt, err = s.appointments.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr("appointment", err)
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, transitionRejected(opComplete, apt.Status)
	}

	now := s.now().UTC()
	apt.Status = model.AppointmentStatusCompleted
	apt.CompletedAt = &now

	if err := s.applyTransition(ctx, opComplete, apt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment completed", "appointment_id", apt.ID.String())

	s.auditor.Log(ctx, model.AuditActionComplete, model.AuditEntityAppointment, apt.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"status": apt.Status},
	})

	s.events.Publish(ctx, event.AppointmentCompleted{
		Meta:           event.NewMeta(apt.ID, actorOf(ctx), now),
		PatientID:      apt.PatientID,
		VeterinarianID: apt.VeterinarianID,
		ScheduledAt:    apt.ScheduledAt,
	})

	return apt, nil
}

func (s *Service) clientContact(ctx context.Context, ownerID uuid.UUID) event.Contact {
	owner, err := s.parties.Get(ctx, ownerID)
	if err != nil {
		s.logger.Warn("patient owner lookup failed, event carries id only",
			"owner_id", ownerID.String(),
			"error", err.Error())
		return event.Contact{ID: ownerID}
	}
	return contactOf(owner)
}

func contactOf(p *model.Party) event.Contact {
	return event.Contact{
		ID:    p.ID,
		Name:  p.FullName(),
		Email: p.Email,
		Phone: p.Phone,
	}
}
