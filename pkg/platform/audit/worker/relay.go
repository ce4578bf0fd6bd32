// Package worker relays audit outbox entries to Kafka.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kycdesk/internal/platform/kafka"
	auditpg "kycdesk/pkg/platform/audit/store/postgres"
	"kycdesk/pkg/platform/tx"
)

// Outbox is the slice of the postgres audit store the relay needs.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]auditpg.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, records []kafka.Record) error
}

// Relay polls the outbox and publishes unpublished entries. Fetch, publish and mark
// run in one transaction, so a failed publish leaves the rows for the next tick and
// delivery is at-least-once.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	tx        tx.Runner
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

func NewRelay(outbox Outbox, publisher Publisher, runner tx.Runner, topic string, interval time.Duration, batchSize int, logger *slog.Logger) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		tx:        runner,
		topic:     topic,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay tick failed", "error", err)
			}
		}
	}
}

// Tick relays one batch and reports how many entries were published.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	var published int
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		records := make([]kafka.Record, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			records[i] = kafka.Record{
				Key:   e.AggregateID,
				Value: e.Payload,
				Headers: map[string]string{
					"event_type":     e.EventType,
					"aggregate_type": e.AggregateType,
				},
			}
			ids[i] = e.ID
		}
		if err := r.publisher.Publish(ctx, r.topic, records); err != nil {
			return err
		}
		if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		published = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}
