package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PartyRole string

const (
	PartyRoleClient       PartyRole = "client"
	PartyRoleVeterinarian PartyRole = "veterinarian"
	PartyRoleSecretary    PartyRole = "secretary"
)

// VeterinarianProfile is only present on parties with the veterinarian role
type VeterinarianProfile struct {
	LicenseNumber string `json:"license_number"`
	Specialty     string `json:"specialty,omitempty"`
}

// ClientProfile is only present on parties with the client role
type ClientProfile struct {
	Address    string `json:"address,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// Party is any person the clinic knows about. Role decides which optional
// profile is populated.
type Party struct {
	Base
	Role         PartyRole            `json:"role"`
	FirstName    string               `json:"first_name"`
	LastName     string               `json:"last_name"`
	Email        string               `json:"email"`
	Phone        string               `json:"phone,omitempty"`
	Veterinarian *VeterinarianProfile `json:"veterinarian,omitempty"`
	Client       *ClientProfile       `json:"client,omitempty"`
}

func (p *Party) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Party) Is(role PartyRole) bool {
	return p.Role == role
}

type CreatePartyRequest struct {
	Role          PartyRole `json:"role" validate:"required,party_role"`
	FirstName     string    `json:"first_name" validate:"required,max=100"`
	LastName      string    `json:"last_name" validate:"required,max=100"`
	Email         string    `json:"email" validate:"required,email"`
	Phone         string    `json:"phone" validate:"omitempty,e164ish"`
	LicenseNumber string    `json:"license_number" validate:"required_if=Role veterinarian,max=50"`
	Specialty     string    `json:"specialty" validate:"max=100"`
	Address       string    `json:"address" validate:"max=255"`
	DocumentID    string    `json:"document_id" validate:"max=50"`
}

type PartyFilter struct {
	Role PartyRole
	Pagination
}

type Patient struct {
	Base
	OwnerID   uuid.UUID  `db:"owner_id" json:"owner_id"`
	Name      string     `db:"name" json:"name"`
	Species   string     `db:"species" json:"species"`
	Breed     string     `db:"breed" json:"breed,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
}

type CreatePatientRequest struct {
	OwnerID   uuid.UUID  `json:"owner_id" validate:"required"`
	Name      string     `json:"name" validate:"required,max=100"`
	Species   string     `json:"species" validate:"required,max=50"`
	Breed     string     `json:"breed" validate:"max=100"`
	BirthDate *time.Time `json:"birth_date"`
}

type PatientFilter struct {
	OwnerID *uuid.UUID
	Pagination
}
