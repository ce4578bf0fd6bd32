// Package ops provides a non-blocking, sampled audit tracker for operational events.
//
// Track never blocks and never returns an error: events that cannot be buffered,
// are sampled out, or arrive while the store is failing are dropped and counted.
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "kycdesk/pkg/platform/audit"
)

const defaultBufferSize = 1024

// Tracker buffers ops events and persists them on a background goroutine.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	metrics *Metrics
	logger  *slog.Logger

	events chan audit.OpsEvent
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Tracker)

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) { t.sampler = s }
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *Tracker) { t.breaker = cb }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithBufferSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.events = make(chan audit.OpsEvent, n)
		}
	}
}

// New starts a tracker. Call Close to drain buffered events on shutdown.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1.0),
		breaker: NewCircuitBreaker(5, time.Minute),
		logger:  slog.Default(),
		events:  make(chan audit.OpsEvent, defaultBufferSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Track enqueues an event without blocking.
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if !t.sampler.ShouldSample(string(event.Action)) {
		t.metrics.IncSampled()
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case t.events <- event:
	default:
		t.metrics.IncDropped("buffer_full")
		t.logger.WarnContext(ctx, "ops audit buffer full, dropping event", "action", event.Action)
	}
}

func (t *Tracker) run() {
	defer t.wg.Done()
	for event := range t.events {
		t.persist(event)
	}
}

func (t *Tracker) persist(event audit.OpsEvent) {
	err := t.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.store.Append(ctx, event.ToEvent())
	})
	switch {
	case rejected(err):
		t.metrics.IncDropped("circuit_open")
	case err != nil:
		t.metrics.IncPersistFailures()
		t.metrics.SetCircuitBreakerState(t.breaker.IsOpen())
		t.logger.Warn("ops audit persist failed", "action", event.Action, "error", err)
	default:
		t.metrics.SetCircuitBreakerState(false)
		t.metrics.IncTracked()
	}
}

// Close stops accepting events and waits for the buffer to drain.
// Track must not be called after Close.
func (t *Tracker) Close() {
	t.once.Do(func() {
		close(t.events)
	})
	t.wg.Wait()
}
