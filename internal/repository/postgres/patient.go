package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
)

const patientColumns = `
	id, owner_id, name, species, breed, birth_date,
	created_at, updated_at, created_by, updated_by`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	patient.Stamp(model.ActorID(ctx), r.now())

	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.OwnerID,
		patient.Name,
		patient.Species,
		patient.Breed,
		patient.BirthDate,
		patient.CreatedAt,
		patient.UpdatedAt,
		patient.CreatedBy,
		patient.UpdatedBy,
	)
	return mapError("create patient", err)
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, mapError("get patient", err)
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients`
	args := []interface{}{}
	argCount := 1

	if filter.OwnerID != nil {
		query += fmt.Sprintf(" WHERE owner_id = $%d", argCount)
		args = append(args, *filter.OwnerID)
		argCount++
	}

	page := filter.Pagination.Normalize()
	query += fmt.Sprintf(" ORDER BY name, id LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, page.Limit, page.Offset)

	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, mapError("list patients", err)
	}
	return patients, nil
}
