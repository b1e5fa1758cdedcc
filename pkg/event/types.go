package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	AppointmentCreatedType     EventType = "appointment.created"
	AppointmentRescheduledType EventType = "appointment.rescheduled"
	AppointmentCancelledType   EventType = "appointment.cancelled"
	AppointmentCompletedType   EventType = "appointment.completed"
)

// Event is a lifecycle fact emitted after an appointment change has been persisted
type Event interface {
	Type() EventType
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// Meta is embedded by every appointment event
type Meta struct {
	EventID       uuid.UUID `json:"event_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Occurred      time.Time `json:"occurred_at"`
	ActorID       uuid.UUID `json:"actor_id,omitempty"`
}

func NewMeta(appointmentID, actorID uuid.UUID, at time.Time) Meta {
	return Meta{
		EventID:       uuid.New(),
		AppointmentID: appointmentID,
		Occurred:      at,
		ActorID:       actorID,
	}
}

func (m Meta) AggregateID() uuid.UUID { return m.AppointmentID }
func (m Meta) OccurredAt() time.Time  { return m.Occurred }

// Contact is the subset of a party needed to reach it
type Contact struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

type PatientInfo struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Species string    `json:"species"`
}

type AppointmentCreated struct {
	Meta
	Patient      PatientInfo `json:"patient"`
	Veterinarian Contact     `json:"veterinarian"`
	Client       Contact     `json:"client"`
	ScheduledAt  time.Time   `json:"scheduled_at"`
	ServiceType  string      `json:"service_type"`
	Reason       string      `json:"reason,omitempty"`
	TriageLevel  string      `json:"triage_level,omitempty"`
}

func (AppointmentCreated) Type() EventType { return AppointmentCreatedType }

type AppointmentRescheduled struct {
	Meta
	PatientID      uuid.UUID `json:"patient_id"`
	VeterinarianID uuid.UUID `json:"veterinarian_id"`
	OldScheduledAt time.Time `json:"old_scheduled_at"`
	NewScheduledAt time.Time `json:"new_scheduled_at"`
}

func (AppointmentRescheduled) Type() EventType { return AppointmentRescheduledType }

type AppointmentCancelled struct {
	Meta
	PatientID      uuid.UUID `json:"patient_id"`
	VeterinarianID uuid.UUID `json:"veterinarian_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Reason         string    `json:"reason,omitempty"`
}

func (AppointmentCancelled) Type() EventType { return AppointmentCancelledType }

type AppointmentCompleted struct {
	Meta
	PatientID      uuid.UUID `json:"patient_id"`
	VeterinarianID uuid.UUID `json:"veterinarian_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

func (AppointmentCompleted) Type() EventType { return AppointmentCompletedType }

// Envelope is the wire form used by the outbox and the broker
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Marshal wraps an event in an envelope and encodes it
func Marshal(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type(), err)
	}
	env := Envelope{
		Type:       e.Type(),
		OccurredAt: e.OccurredAt(),
		Payload:    payload,
	}
	if m, ok := metaOf(e); ok {
		env.ID = m.EventID
	}
	return json.Marshal(env)
}

// Unmarshal decodes an envelope back into its concrete event
func Unmarshal(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return Decode(env.Type, env.Payload)
}

// Decode turns a typed payload into its concrete event
func Decode(t EventType, payload []byte) (Event, error) {
	var (
		evt Event
		err error
	)
	switch t {
	case AppointmentCreatedType:
		var e AppointmentCreated
		err = json.Unmarshal(payload, &e)
		evt = e
	case AppointmentRescheduledType:
		var e AppointmentRescheduled
		err = json.Unmarshal(payload, &e)
		evt = e
	case AppointmentCancelledType:
		var e AppointmentCancelled
		err = json.Unmarshal(payload, &e)
		evt = e
	case AppointmentCompletedType:
		var e AppointmentCompleted
		err = json.Unmarshal(payload, &e)
		evt = e
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", t, err)
	}
	return evt, nil
}

func metaOf(e Event) (Meta, bool) {
	switch v := e.(type) {
	case AppointmentCreated:
		return v.Meta, true
	case AppointmentRescheduled:
		return v.Meta, true
	case AppointmentCancelled:
		return v.Meta, true
	case AppointmentCompleted:
		return v.Meta, true
	}
	return Meta{}, false
}
