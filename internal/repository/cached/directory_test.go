package cached

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
)

type countingParties struct {
	items map[uuid.UUID]*model.Party
	gets  int
}

func (c *countingParties) Create(_ context.Context, p *model.Party) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c.items[p.ID] = p
	return nil
}

func (c *countingParties) Get(_ context.Context, id uuid.UUID) (*model.Party, error) {
	c.gets++
	p, ok := c.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (c *countingParties) List(context.Context, model.PartyFilter) ([]*model.Party, error) {
	return nil, nil
}

type countingPatients struct {
	items map[uuid.UUID]*model.Patient
	gets  int
}

func (c *countingPatients) Create(_ context.Context, p *model.Patient) error {
	c.items[p.ID] = p
	return nil
}

func (c *countingPatients) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	c.gets++
	p, ok := c.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (c *countingPatients) List(context.Context, model.PatientFilter) ([]*model.Patient, error) {
	return nil, nil
}

func TestPartyReadThrough(t *testing.T) {
	id := uuid.New()
	backing := &countingParties{items: map[uuid.UUID]*model.Party{
		id: {Base: model.Base{ID: id}, Role: model.PartyRoleVeterinarian, FirstName: "Ana",
			Veterinarian: &model.VeterinarianProfile{LicenseNumber: "VET-1"}},
	}}
	repo := NewPartyRepository(backing, Config{TTL: time.Minute})

	first, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	first.Veterinarian.LicenseNumber = "mutated"

	second, err := repo.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, 1, backing.gets)
	assert.Equal(t, "VET-1", second.Veterinarian.LicenseNumber)
}

func TestPartyMissIsNotCached(t *testing.T) {
	backing := &countingParties{items: map[uuid.UUID]*model.Party{}}
	repo := NewPartyRepository(backing, Config{})

	id := uuid.New()
	for i := 0; i < 2; i++ {
		_, err := repo.Get(context.Background(), id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
	assert.Equal(t, 2, backing.gets)
}

func TestPartyCreateWarmsCache(t *testing.T) {
	backing := &countingParties{items: map[uuid.UUID]*model.Party{}}
	repo := NewPartyRepository(backing, Config{})

	p := &model.Party{Role: model.PartyRoleClient, FirstName: "Luis"}
	require.NoError(t, repo.Create(context.Background(), p))

	got, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Luis", got.FirstName)
	assert.Zero(t, backing.gets)
}

func TestPatientReadThrough(t *testing.T) {
	id := uuid.New()
	backing := &countingPatients{items: map[uuid.UUID]*model.Patient{
		id: {Base: model.Base{ID: id}, Name: "Toby", Species: "dog"},
	}}
	repo := NewPatientRepository(backing, Config{})

	for i := 0; i < 3; i++ {
		p, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Toby", p.Name)
	}
	assert.Equal(t, 1, backing.gets)
}
