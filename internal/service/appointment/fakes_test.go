package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/lock"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
	"github.com/jwalitptl/vetclinic-api/internal/service/audit"
	"github.com/jwalitptl/vetclinic-api/pkg/event"
)

type memAppointments struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.Appointment
	now   func() time.Time

	createErr error
	// beforeUpdate runs inside UpdateIfStatus to simulate a concurrent writer
	beforeUpdate func(id uuid.UUID)
	updates      int
}

func newMemAppointments(now func() time.Time) *memAppointments {
	return &memAppointments{items: make(map[uuid.UUID]model.Appointment), now: now}
}

func (m *memAppointments) Create(ctx context.Context, apt *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	for _, other := range m.items {
		if other.Status == model.AppointmentStatusScheduled &&
			other.VeterinarianID == apt.VeterinarianID && other.ScheduledAt.Equal(apt.ScheduledAt) {
			return repository.ErrDuplicate
		}
	}
	apt.Stamp(model.ActorID(ctx), m.now())
	m.items[apt.ID] = *apt
	return nil
}

func (m *memAppointments) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apt, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &apt, nil
}

func (m *memAppointments) List(_ context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Appointment
	for _, apt := range m.items {
		if filter.VeterinarianID != nil && apt.VeterinarianID != *filter.VeterinarianID {
			continue
		}
		if filter.PatientID != nil && apt.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != "" && apt.Status != filter.Status {
			continue
		}
		a := apt
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *memAppointments) FindConflicting(_ context.Context, vetID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Appointment
	for _, apt := range m.items {
		if apt.VeterinarianID != vetID || apt.Status != model.AppointmentStatusScheduled {
			continue
		}
		if excludeID != nil && apt.ID == *excludeID {
			continue
		}
		if apt.ScheduledAt.After(from) && apt.ScheduledAt.Before(to) {
			a := apt
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *memAppointments) UpdateIfStatus(ctx context.Context, apt *model.Appointment, expected model.AppointmentStatus) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(apt.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[apt.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStateChanged
	}
	apt.Touch(model.ActorID(ctx), m.now())
	m.items[apt.ID] = *apt
	m.updates++
	return nil
}

// force overwrites a stored record, bypassing every rule
func (m *memAppointments) force(apt model.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[apt.ID] = apt
}

func (m *memAppointments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memParties struct {
	items map[uuid.UUID]*model.Party
}

func (m *memParties) Create(_ context.Context, p *model.Party) error {
	m.items[p.ID] = p
	return nil
}

func (m *memParties) Get(_ context.Context, id uuid.UUID) (*model.Party, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memParties) List(context.Context, model.PartyFilter) ([]*model.Party, error) {
	return nil, nil
}

type memPatients struct {
	items map[uuid.UUID]*model.Patient
}

func (m *memPatients) Create(_ context.Context, p *model.Patient) error {
	m.items[p.ID] = p
	return nil
}

func (m *memPatients) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPatients) List(context.Context, model.PatientFilter) ([]*model.Patient, error) {
	return nil, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type())
	}
	return out
}

func (p *recordingPublisher) last() event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type auditEntry struct {
	action   string
	entityID uuid.UUID
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAuditor) Log(_ context.Context, action, _ string, entityID uuid.UUID, _ *audit.LogOptions) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, entityID: entityID})
}

// blockingLocker never grants the lock
type blockingLocker struct{}

func (blockingLocker) WithVeterinarianLock(context.Context, uuid.UUID, func(context.Context) error) error {
	return lock.ErrLockNotAcquired
}
