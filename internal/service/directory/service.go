package directory

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
	"github.com/jwalitptl/vetclinic-api/internal/service/audit"
	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/validator"
)

type Auditor interface {
	Log(ctx context.Context, action, entityType string, entityID uuid.UUID, opts *audit.LogOptions)
}

// Service owns registration and lookup of parties and patients
type Service struct {
	parties   repository.PartyRepository
	patients  repository.PatientRepository
	validator validator.Validator
	auditor   Auditor
}

func NewService(parties repository.PartyRepository, patients repository.PatientRepository, v validator.Validator, auditor Auditor) *Service {
	return &Service{
		parties:   parties,
		patients:  patients,
		validator: v,
		auditor:   auditor,
	}
}

func (s *Service) CreateParty(ctx context.Context, req model.CreatePartyRequest) (*model.Party, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	party := &model.Party{
		Role:      req.Role,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     req.Phone,
	}
	switch req.Role {
	case model.PartyRoleVeterinarian:
		party.Veterinarian = &model.VeterinarianProfile{LicenseNumber: req.LicenseNumber, Specialty: req.Specialty}
	case model.PartyRoleClient:
		party.Client = &model.ClientProfile{Address: req.Address, DocumentID: req.DocumentID}
	}

	if err := s.parties.Create(ctx, party); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.NewConflict("", fmt.Sprintf("a party with email %s already exists", party.Email), err)
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to create party: %w", err))
	}

	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityParty, party.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"role": party.Role, "email": party.Email},
	})
	return party, nil
}

func (s *Service) GetParty(ctx context.Context, id uuid.UUID) (*model.Party, error) {
	party, err := s.parties.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr("party", err)
	}
	return party, nil
}

func (s *Service) ListParties(ctx context.Context, filter model.PartyFilter) ([]*model.Party, error) {
	if filter.Role != "" {
		switch filter.Role {
		case model.PartyRoleClient, model.PartyRoleVeterinarian, model.PartyRoleSecretary:
		default:
			return nil, errors.NewBadRequest(fmt.Sprintf("unknown role %q", filter.Role), nil)
		}
	}
	filter.Pagination = filter.Pagination.Normalize()

	parties, err := s.parties.List(ctx, filter)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to list parties: %w", err))
	}
	return parties, nil
}

// CreatePatient registers a pet. The owner must be a client.
func (s *Service) CreatePatient(ctx context.Context, req model.CreatePatientRequest) (*model.Patient, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	owner, err := s.parties.Get(ctx, req.OwnerID)
	if err != nil {
		return nil, notFoundOr("owner", err)
	}
	if !owner.Is(model.PartyRoleClient) {
		return nil, errors.NewBadRequest(fmt.Sprintf("party %s is not a client", owner.ID), nil).
			WithReason(errors.ReasonWrongRole)
	}

	patient := &model.Patient{
		OwnerID:   owner.ID,
		Name:      strings.TrimSpace(req.Name),
		Species:   strings.ToLower(strings.TrimSpace(req.Species)),
		Breed:     req.Breed,
		BirthDate: req.BirthDate,
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create patient: %w", err))
	}

	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityPatient, patient.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"owner_id": owner.ID, "name": patient.Name},
	})
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr("patient", err)
	}
	return patient, nil
}

func (s *Service) ListPatients(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error) {
	filter.Pagination = filter.Pagination.Normalize()
	patients, err := s.patients.List(ctx, filter)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to list patients: %w", err))
	}
	return patients, nil
}

func notFoundOr(resource string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NewNotFound(resource, err)
	}
	return errors.NewInternal(fmt.Errorf("failed to load %s: %w", resource, err))
}
