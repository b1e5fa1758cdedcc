package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
}

// Stamp fills the audit columns for an insert
func (b *Base) Stamp(actor *uuid.UUID, now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	b.CreatedBy = actor
	b.UpdatedBy = actor
}

// Touch fills the audit columns for an update
func (b *Base) Touch(actor *uuid.UUID, now time.Time) {
	b.UpdatedAt = now
	b.UpdatedBy = actor
}

// Pagination represents common pagination parameters
type Pagination struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Normalize clamps the page to sane bounds
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Actor is whoever is making the current change
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Role  PartyRole `json:"role"`
	Email string    `json:"email,omitempty"`
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// ActorID returns the acting party id, or nil for system changes
func ActorID(ctx context.Context) *uuid.UUID {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == uuid.Nil {
		return nil
	}
	id := actor.ID
	return &id
}
