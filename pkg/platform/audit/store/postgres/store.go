package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "kycdesk/pkg/platform/audit"
	txcontext "kycdesk/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and relayed to Kafka by the outbox worker.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Payload is the JSON document stored in outbox.payload and published to Kafka.
type Payload struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Timestamp     string `json:"timestamp"`
	UserID        string `json:"user_id,omitempty"`
	CompanyID     string `json:"company_id,omitempty"`
	Subject       string `json:"subject"`
	Action        string `json:"action"`
	Decision      string `json:"decision,omitempty"`
	Reason        string `json:"reason,omitempty"`
	SubjectIDHash string `json:"subject_id_hash,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	ClientIP      string `json:"client_ip,omitempty"`
	Device        string `json:"device,omitempty"`
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// The category is always derived from the action.
	category := audit.AuditEvent(event.Action).Category()

	payload := Payload{
		ID:            eventID.String(),
		Category:      string(category),
		Timestamp:     event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:       event.Subject,
		Action:        event.Action,
		Decision:      event.Decision,
		Reason:        event.Reason,
		SubjectIDHash: event.SubjectIDHash,
		RequestID:     event.RequestID,
		ClientIP:      event.ClientIP,
		Device:        event.Device,
	}
	if !event.UserID.IsNil() {
		payload.UserID = event.UserID.String()
	}
	if !event.CompanyID.IsNil() {
		payload.CompanyID = event.CompanyID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.Subject != "" {
		aggregateType = aggregateTypeFor(audit.AuditEvent(event.Action))
		aggregateID = event.Subject
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func aggregateTypeFor(action audit.AuditEvent) string {
	switch action {
	case audit.EventDossierCreated, audit.EventDecisionMade, audit.EventBatchSubmitted:
		return "dossier"
	default:
		return "monitoring"
	}
}

// Entry is an unpublished outbox row.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// FetchUnpublished returns up to limit unpublished entries, oldest first. Rows are
// locked with SKIP LOCKED so concurrent relays never publish the same entry, which
// is why this must run inside the relay's transaction.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	var (
		rows *sql.Rows
		err  error
	)
	if tx, ok := txcontext.From(ctx); ok {
		rows, err = tx.QueryContext(ctx, query, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps published_at on the given entries.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`
	strIDs := make([]string, len(ids))
	for i, u := range ids {
		strIDs[i] = u.String()
	}
	if _, err := s.execer(ctx).ExecContext(ctx, query, at, pq.Array(strIDs)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
