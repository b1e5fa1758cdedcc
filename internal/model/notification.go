package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

const NotificationChannelEmail = "email"

type Notification struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	AppointmentID uuid.UUID          `db:"appointment_id" json:"appointment_id"`
	RecipientID   uuid.UUID          `db:"recipient_id" json:"recipient_id"`
	EventType     string             `db:"event_type" json:"event_type"`
	Channel       string             `db:"channel" json:"channel"`
	Recipient     string             `db:"recipient" json:"recipient"`
	Subject       string             `db:"subject" json:"subject"`
	Content       string             `db:"content" json:"content"`
	Status        NotificationStatus `db:"status" json:"status"`
	LastError     *string            `db:"last_error" json:"last_error,omitempty"`
	SentAt        *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}
