package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate     = "create"
	AuditActionReschedule = "reschedule"
	AuditActionCancel     = "cancel"
	AuditActionComplete   = "complete"

	// Entity types
	AuditEntityAppointment = "appointment"
	AuditEntityParty       = "party"
	AuditEntityPatient     = "patient"
)

type AuditFilter struct {
	EntityType string
	EntityID   *uuid.UUID
	Pagination
}
