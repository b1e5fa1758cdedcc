package notification

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/email"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
	"github.com/jwalitptl/vetclinic-api/pkg/event"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/messaging"
	"github.com/jwalitptl/vetclinic-api/pkg/metrics"
)

const timeLayout = "Mon 02 Jan 2006 15:04 MST"

type message struct {
	subject *template.Template
	body    *template.Template
}

func mustMessage(subject, body string) message {
	return message{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

var messages = map[event.EventType]message{
	event.AppointmentCreatedType: mustMessage(
		"Appointment booked for {{.PatientName}}",
		`Hello {{.RecipientName}},

{{.PatientName}} is booked for {{.ServiceType}} with {{.VeterinarianName}} on {{.ScheduledAt}}.
`),
	event.AppointmentRescheduledType: mustMessage(
		"Appointment for {{.PatientName}} moved",
		`Hello {{.RecipientName}},

The appointment for {{.PatientName}} with {{.VeterinarianName}} moved from {{.OldScheduledAt}} to {{.ScheduledAt}}.
`),
	event.AppointmentCancelledType: mustMessage(
		"Appointment for {{.PatientName}} cancelled",
		`Hello {{.RecipientName}},

The appointment for {{.PatientName}} on {{.ScheduledAt}} was cancelled.{{if .Reason}} Reason: {{.Reason}}.{{end}}
`),
}

type templateData struct {
	RecipientName    string
	PatientName      string
	VeterinarianName string
	ServiceType      string
	ScheduledAt      string
	OldScheduledAt   string
	Reason           string
}

// Service turns lifecycle events received from the broker into emails
type Service struct {
	repo     repository.NotificationRepository
	parties  repository.PartyRepository
	patients repository.PatientRepository
	emailSvc email.Service
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(
	repo repository.NotificationRepository,
	parties repository.PartyRepository,
	patients repository.PatientRepository,
	emailSvc email.Service,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		parties:  parties,
		patients: patients,
		emailSvc: emailSvc,
		metrics:  m,
		logger:   log.WithFields(map[string]interface{}{"component": "notification_service"}),
		now:      time.Now,
	}
}

// Run consumes every appointment channel until ctx is done
func (s *Service) Run(ctx context.Context, broker messaging.Broker) error {
	msgs, err := broker.PSubscribe(ctx, messaging.ChannelFor("appointment.*"))
	if err != nil {
		return fmt.Errorf("failed to subscribe to appointment events: %w", err)
	}

	s.logger.Info("notification consumer started")
	messaging.Consume(ctx, msgs, s.HandleMessage, func(msg messaging.Message, err error) {
		s.logger.Error(err, "notification handling failed", "channel", msg.Channel)
	})
	s.logger.Info("notification consumer stopped")
	return nil
}

// HandleMessage is the broker consumer entry point
func (s *Service) HandleMessage(ctx context.Context, msg messaging.Message) error {
	evt, err := event.Unmarshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode message on %s: %w", msg.Channel, err)
	}
	return s.Handle(ctx, evt)
}

func (s *Service) Handle(ctx context.Context, evt event.Event) error {
	tmpl, ok := messages[evt.Type()]
	if !ok {
		return nil
	}

	data, recipients, err := s.resolve(ctx, evt)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range recipients {
		if r.Email == "" {
			s.logger.Warn("recipient has no email, skipping",
				"event_type", string(evt.Type()),
				"recipient_id", r.ID.String())
			continue
		}
		d := data
		d.RecipientName = r.Name
		if err := s.deliver(ctx, evt, tmpl, d, r); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (s *Service) resolve(ctx context.Context, evt event.Event) (templateData, []event.Contact, error) {
	switch e := evt.(type) {
	case event.AppointmentCreated:
		return templateData{
			PatientName:      e.Patient.Name,
			VeterinarianName: e.Veterinarian.Name,
			ServiceType:      e.ServiceType,
			ScheduledAt:      e.ScheduledAt.Format(timeLayout),
		}, []event.Contact{e.Client}, nil

	case event.AppointmentRescheduled:
		patient, owner, vet, err := s.lookup(ctx, e.PatientID, e.VeterinarianID)
		if err != nil {
			return templateData{}, nil, err
		}
		return templateData{
			PatientName:      patient.Name,
			VeterinarianName: vet.Name,
			ScheduledAt:      e.NewScheduledAt.Format(timeLayout),
			OldScheduledAt:   e.OldScheduledAt.Format(timeLayout),
		}, []event.Contact{owner}, nil

	case event.AppointmentCancelled:
		patient, owner, vet, err := s.lookup(ctx, e.PatientID, e.VeterinarianID)
		if err != nil {
			return templateData{}, nil, err
		}
		return templateData{
			PatientName:      patient.Name,
			VeterinarianName: vet.Name,
			ScheduledAt:      e.ScheduledAt.Format(timeLayout),
			Reason:           e.Reason,
		}, []event.Contact{owner, vet}, nil
	}
	return templateData{}, nil, fmt.Errorf("no recipients for %s", evt.Type())
}

func (s *Service) lookup(ctx context.Context, patientID, vetID uuid.UUID) (*model.Patient, event.Contact, event.Contact, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, event.Contact{}, event.Contact{}, fmt.Errorf("failed to load patient %s: %w", patientID, err)
	}
	owner, err := s.parties.Get(ctx, patient.OwnerID)
	if err != nil {
		return nil, event.Contact{}, event.Contact{}, fmt.Errorf("failed to load owner %s: %w", patient.OwnerID, err)
	}
	vet, err := s.parties.Get(ctx, vetID)
	if err != nil {
		return nil, event.Contact{}, event.Contact{}, fmt.Errorf("failed to load veterinarian %s: %w", vetID, err)
	}
	return patient, contactOf(owner), contactOf(vet), nil
}

func contactOf(p *model.Party) event.Contact {
	return event.Contact{ID: p.ID, Name: p.FullName(), Email: p.Email, Phone: p.Phone}
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Service) deliver(ctx context.Context, evt event.Event, tmpl message, data templateData, to event.Contact) error {
	subject, err := render(tmpl.subject, data)
	if err != nil {
		return fmt.Errorf("failed to render subject: %w", err)
	}
	content, err := render(tmpl.body, data)
	if err != nil {
		return fmt.Errorf("failed to render body: %w", err)
	}

	now := s.now()
	n := &model.Notification{
		ID:            uuid.New(),
		AppointmentID: evt.AggregateID(),
		RecipientID:   to.ID,
		EventType:     string(evt.Type()),
		Channel:       model.NotificationChannelEmail,
		Recipient:     to.Email,
		Subject:       subject,
		Content:       content,
		Status:        model.NotificationStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	sendErr := s.emailSvc.SendCustom(ctx, to.Email, subject, content)

	n.UpdatedAt = s.now()
	if sendErr != nil {
		msg := sendErr.Error()
		n.Status = model.NotificationStatusFailed
		n.LastError = &msg
		s.metrics.NotificationsSent.WithLabelValues(n.Channel, "failed").Inc()
		s.logger.Error(sendErr, "failed to send notification",
			"notification_id", n.ID.String(),
			"appointment_id", n.AppointmentID.String())
	} else {
		sentAt := n.UpdatedAt
		n.Status = model.NotificationStatusSent
		n.SentAt = &sentAt
		s.metrics.NotificationsSent.WithLabelValues(n.Channel, "sent").Inc()
	}

	if err := s.repo.Update(ctx, n); err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return sendErr
}
