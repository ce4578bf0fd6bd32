// Package notify publishes monitoring change events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"kycdesk/internal/platform/resilience"
)

// ChangeEvent is published when a re-check changes a record's restriction count.
type ChangeEvent struct {
	CompanyID            string    `json:"company_id"`
	Document             string    `json:"document"`
	DocumentType         string    `json:"document_type"`
	EntityName           string    `json:"entity_name,omitempty"`
	Status               string    `json:"status"`
	PreviousRestrictions int       `json:"old_restrictions"`
	Restrictions         int       `json:"new_restrictions"`
	Description          string    `json:"change_description"`
	DetectedAt           time.Time `json:"detected_at"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier publishes change events on one subject.
type Notifier struct {
	conn     *nats.Conn
	pub      publisher
	subject  string
	guard *resilience.Guard
	logger   *slog.Logger
}

// Connect dials NATS. An empty url disables notifications and returns nil.
func Connect(url, subject string, guard *resilience.Guard, logger *slog.Logger) (*Notifier, error) {
	if url == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(
		url,
		nats.Name("kycdesk"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	n := newNotifier(conn, subject, guard, logger)
	n.conn = conn
	return n, nil
}

func newNotifier(pub publisher, subject string, guard *resilience.Guard, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, subject: subject, guard: guard, logger: logger}
}

// Close drains pending publishes before closing the connection.
func (n *Notifier) Close() {
	if n == nil || n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

// NotifyChange publishes one change event.
func (n *Notifier) NotifyChange(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	call := func(_ context.Context) error {
		if err := n.pub.Publish(n.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if n.guard != nil {
		return n.guard.Run(ctx, "nats.publish", call, judgeNATSError)
	}
	return call(ctx)
}

// judgeNATSError retries connection loss. A cancelled publish says nothing about
// the broker.
func judgeNATSError(err error) resilience.Verdict {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Verdict{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.Verdict{Retry: true, Trips: true}
	default:
		return resilience.Verdict{Trips: true}
	}
}
