// Package compliance writes regulatory audit events to the outbox synchronously.
// A failed write is returned to the caller, whose operation must fail with it. When
// ctx carries a transaction the outbox row commits or rolls back with the business write.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "kycdesk/pkg/platform/audit"
)

// ErrIncompleteEvent is returned before any write when an event lacks its analyst,
// tenant or action, or names an operational action.
var ErrIncompleteEvent = errors.New("incomplete compliance event")

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New wraps store, which should be outbox-backed in production.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func check(event audit.ComplianceEvent) error {
	switch {
	case event.UserID.IsNil():
		return fmt.Errorf("%w: user id missing", ErrIncompleteEvent)
	case event.CompanyID.IsNil():
		return fmt.Errorf("%w: company id missing", ErrIncompleteEvent)
	case event.Action == "":
		return fmt.Errorf("%w: action missing", ErrIncompleteEvent)
	case event.Action.Category() != audit.CategoryCompliance:
		return fmt.Errorf("%w: %s is an operational action", ErrIncompleteEvent, event.Action)
	}
	return nil
}

// Emit appends event to the store. The timestamp defaults to now.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if err := check(event); err != nil {
		return err
	}
	start := time.Now()
	if event.Timestamp.IsZero() {
		event.Timestamp = start
	}

	err := p.store.Append(ctx, event.ToEvent())
	if err != nil {
		p.metrics.IncPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit write failed",
				"action", event.Action,
				"subject", event.Subject,
				"company_id", event.CompanyID,
				"request_id", event.RequestID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}
	p.metrics.ObservePersistDuration(time.Since(start))
	p.metrics.IncEventsEmitted(string(event.Action))
	return nil
}
