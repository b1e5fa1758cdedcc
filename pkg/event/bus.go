package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/metrics"
)

// Publisher is the fire-and-forget sink the lifecycle manager writes to.
// Publish never blocks and never reports failure to the caller.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

type HandlerFunc func(ctx context.Context, evt Event) error

func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

type BusConfig struct {
	QueueSize int
}

type subscription struct {
	name    string
	handler Handler
	queue   chan Event
}

// Bus fans each published event out to every subscriber through its own
// buffered queue. A slow subscriber loses events instead of slowing publishers.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	started bool
	closed  bool
	wg      sync.WaitGroup

	queueSize int
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewBus(cfg BusConfig, log *logger.Logger, m *metrics.Metrics) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Bus{
		queueSize: cfg.QueueSize,
		logger:    log.WithFields(map[string]interface{}{"component": "event_bus"}),
		metrics:   m,
	}
}

// Subscribe registers a consumer. It must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started || b.closed {
		return fmt.Errorf("cannot subscribe %q: bus already running", name)
	}
	for _, s := range b.subs {
		if s.name == name {
			return fmt.Errorf("subscriber %q already registered", name)
		}
	}
	b.subs = append(b.subs, &subscription{
		name:    name,
		handler: h,
		queue:   make(chan Event, b.queueSize),
	})
	return nil
}

// Start launches one consumer goroutine per subscriber. Handlers receive ctx,
// not the publisher's request context.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started || b.closed {
		return
	}
	b.started = true

	for _, s := range b.subs {
		b.wg.Add(1)
		go b.consume(ctx, s)
	}
}

func (b *Bus) Publish(_ context.Context, evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("event published after bus closed", "event_type", string(evt.Type()))
		return
	}

	b.metrics.EventsPublished.WithLabelValues(string(evt.Type())).Inc()
	for _, s := range b.subs {
		select {
		case s.queue <- evt:
		default:
			b.metrics.EventsDropped.WithLabelValues(string(evt.Type()), s.name).Inc()
			b.logger.Warn("consumer queue full, event dropped",
				"consumer", s.name,
				"event_type", string(evt.Type()),
				"appointment_id", evt.AggregateID().String())
		}
	}
}

// Close stops accepting events and waits for consumers to drain their queues
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Bus) consume(ctx context.Context, s *subscription) {
	defer b.wg.Done()

	for evt := range s.queue {
		b.dispatch(ctx, s, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, s *subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.EventsHandled.WithLabelValues(s.name, "panic").Inc()
			b.logger.Error(fmt.Errorf("%v", r), "event consumer panicked",
				"consumer", s.name,
				"event_type", string(evt.Type()))
		}
	}()

	if err := s.handler.Handle(ctx, evt); err != nil {
		b.metrics.EventsHandled.WithLabelValues(s.name, "error").Inc()
		b.logger.Error(err, "event consumer failed",
			"consumer", s.name,
			"event_type", string(evt.Type()),
			"appointment_id", evt.AggregateID().String())
		return
	}
	b.metrics.EventsHandled.WithLabelValues(s.name, "ok").Inc()
}
