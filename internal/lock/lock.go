package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrLockNotAcquired = errors.New("veterinarian schedule lock not acquired")

// Locker serializes schedule changes for one veterinarian
type Locker interface {
	WithVeterinarianLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context) error) error
}

type entry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process keyed lock for single-instance deployments and tests
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
	wait  time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		locks: make(map[uuid.UUID]*entry),
		wait:  wait,
	}
}

func (l *LocalLocker) WithVeterinarianLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context) error) error {
	e := l.ref(vetID)
	defer l.unref(vetID)

	if err := l.acquire(ctx, e); err != nil {
		return err
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *LocalLocker) acquire(ctx context.Context, e *entry) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	default:
	}
	if l.wait <= 0 {
		return ErrLockNotAcquired
	}

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LocalLocker) ref(id uuid.UUID) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[id]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.locks[id] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) unref(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.locks[id]; ok {
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
	}
}
