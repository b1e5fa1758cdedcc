package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
)

const partyColumns = `
	id, role, first_name, last_name, email, phone,
	license_number, specialty, address, document_id,
	created_at, updated_at, created_by, updated_by`

// partyRow flattens the optional role profiles into nullable columns
type partyRow struct {
	model.Base
	Role          model.PartyRole `db:"role"`
	FirstName     string          `db:"first_name"`
	LastName      string          `db:"last_name"`
	Email         string          `db:"email"`
	Phone         string          `db:"phone"`
	LicenseNumber sql.NullString  `db:"license_number"`
	Specialty     sql.NullString  `db:"specialty"`
	Address       sql.NullString  `db:"address"`
	DocumentID    sql.NullString  `db:"document_id"`
}

func (row partyRow) toModel() *model.Party {
	p := &model.Party{
		Base:      row.Base,
		Role:      row.Role,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		Phone:     row.Phone,
	}
	switch row.Role {
	case model.PartyRoleVeterinarian:
		p.Veterinarian = &model.VeterinarianProfile{
			LicenseNumber: row.LicenseNumber.String,
			Specialty:     row.Specialty.String,
		}
	case model.PartyRoleClient:
		p.Client = &model.ClientProfile{
			Address:    row.Address.String,
			DocumentID: row.DocumentID.String,
		}
	}
	return p
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type partyRepository struct {
	BaseRepository
}

func NewPartyRepository(base BaseRepository) repository.PartyRepository {
	return &partyRepository{base}
}

func (r *partyRepository) Create(ctx context.Context, party *model.Party) error {
	party.Stamp(model.ActorID(ctx), r.now())

	var license, specialty, address, document sql.NullString
	if v := party.Veterinarian; v != nil {
		license, specialty = nullString(v.LicenseNumber), nullString(v.Specialty)
	}
	if c := party.Client; c != nil {
		address, document = nullString(c.Address), nullString(c.DocumentID)
	}

	query := `
		INSERT INTO parties (` + partyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		party.ID,
		party.Role,
		party.FirstName,
		party.LastName,
		party.Email,
		party.Phone,
		license,
		specialty,
		address,
		document,
		party.CreatedAt,
		party.UpdatedAt,
		party.CreatedBy,
		party.UpdatedBy,
	)
	return mapError("create party", err)
}

func (r *partyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE id = $1`

	var row partyRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, mapError("get party", err)
	}
	return row.toModel(), nil
}

func (r *partyRepository) List(ctx context.Context, filter model.PartyFilter) ([]*model.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties`
	args := []interface{}{}
	argCount := 1

	if filter.Role != "" {
		query += fmt.Sprintf(" WHERE role = $%d", argCount)
		args = append(args, filter.Role)
		argCount++
	}

	page := filter.Pagination.Normalize()
	query += fmt.Sprintf(" ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, page.Limit, page.Offset)

	var rows []partyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError("list parties", err)
	}

	parties := make([]*model.Party, 0, len(rows))
	for _, row := range rows {
		parties = append(parties, row.toModel())
	}
	return parties, nil
}
