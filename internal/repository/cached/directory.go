package cached

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
)

// Config controls the in-process read-through cache for directory lookups
type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 10 * time.Minute
	}
	return c
}

// PartyRepository caches Get by id. Parties are immutable once registered,
// so entries only expire by TTL.
type PartyRepository struct {
	next  repository.PartyRepository
	cache *cache.Cache
}

func NewPartyRepository(next repository.PartyRepository, cfg Config) *PartyRepository {
	cfg = cfg.withDefaults()
	return &PartyRepository{
		next:  next,
		cache: cache.New(cfg.TTL, cfg.CleanupInterval),
	}
}

func (r *PartyRepository) Create(ctx context.Context, party *model.Party) error {
	if err := r.next.Create(ctx, party); err != nil {
		return err
	}
	r.cache.Set(party.ID.String(), clonePartyRecord(party), cache.DefaultExpiration)
	return nil
}

func (r *PartyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Party, error) {
	if v, ok := r.cache.Get(id.String()); ok {
		return clonePartyRecord(v.(*model.Party)), nil
	}

	party, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(id.String(), clonePartyRecord(party), cache.DefaultExpiration)
	return party, nil
}

func (r *PartyRepository) List(ctx context.Context, filter model.PartyFilter) ([]*model.Party, error) {
	return r.next.List(ctx, filter)
}

type PatientRepository struct {
	next  repository.PatientRepository
	cache *cache.Cache
}

func NewPatientRepository(next repository.PatientRepository, cfg Config) *PatientRepository {
	cfg = cfg.withDefaults()
	return &PatientRepository{
		next:  next,
		cache: cache.New(cfg.TTL, cfg.CleanupInterval),
	}
}

func (r *PatientRepository) Create(ctx context.Context, patient *model.Patient) error {
	if err := r.next.Create(ctx, patient); err != nil {
		return err
	}
	cp := *patient
	r.cache.Set(patient.ID.String(), &cp, cache.DefaultExpiration)
	return nil
}

func (r *PatientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	if v, ok := r.cache.Get(id.String()); ok {
		cp := *v.(*model.Patient)
		return &cp, nil
	}

	patient, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *patient
	r.cache.Set(id.String(), &cp, cache.DefaultExpiration)
	return patient, nil
}

func (r *PatientRepository) List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error) {
	return r.next.List(ctx, filter)
}

func clonePartyRecord(p *model.Party) *model.Party {
	cp := *p
	if p.Veterinarian != nil {
		v := *p.Veterinarian
		cp.Veterinarian = &v
	}
	if p.Client != nil {
		c := *p.Client
		cp.Client = &c
	}
	return &cp
}
