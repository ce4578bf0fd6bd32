// Package postgres opens the database pool and applies the service schema.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"kycdesk/internal/platform/config"
)

// schemaLockKey serializes schema application across replicas starting together.
const schemaLockKey = 7_302_114

// Open creates a pooled *sql.DB on the pgx driver and verifies connectivity.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema applies the idempotent DDL under an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, schemaLockKey)
	}()

	for i, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dossiers (
		id                    UUID PRIMARY KEY,
		company_id            UUID NOT NULL,
		document              TEXT NOT NULL,
		document_type         TEXT NOT NULL,
		entity_name           TEXT NOT NULL DEFAULT '',
		risk_level            TEXT,
		report_data           JSONB NOT NULL DEFAULT '{}'::jsonb,
		technical_opinion     TEXT,
		director_justification TEXT,
		decision_status       TEXT NOT NULL DEFAULT 'PENDING',
		approved              BOOLEAN,
		decided_at            TIMESTAMPTZ,
		decided_by            UUID,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (company_id, document)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dossiers_company_created ON dossiers (company_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS monitoring_records (
		id                UUID PRIMARY KEY,
		company_id        UUID NOT NULL,
		document          TEXT NOT NULL,
		document_type     TEXT NOT NULL,
		status            TEXT NOT NULL,
		entity_name       TEXT NOT NULL DEFAULT '',
		notes             TEXT NOT NULL DEFAULT '',
		restriction_count INTEGER NOT NULL DEFAULT 0,
		has_changes       BOOLEAN NOT NULL DEFAULT false,
		change_description TEXT NOT NULL DEFAULT '',
		previous_restriction_count INTEGER NOT NULL DEFAULT 0,
		last_check_at     TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (company_id, document)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_monitoring_changes ON monitoring_records (company_id, last_check_at) WHERE has_changes`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox (created_at) WHERE published_at IS NULL`,
}

// Tables lists every table the service owns, in truncation-safe order.
var Tables = []string{"outbox", "monitoring_records", "dossiers"}
