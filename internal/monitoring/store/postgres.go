package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kycdesk/internal/monitoring/models"
	"kycdesk/internal/monitoring/reconcile"
	"kycdesk/internal/platform/postgres"
	id "kycdesk/pkg/domain"
	"kycdesk/pkg/platform/sentinel"
	txcontext "kycdesk/pkg/platform/tx"
)

var allDocumentTypes = []string{"CPF", "CNPJ"}

// Postgres persists records in monitoring_records.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, r *models.Record) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO monitoring_records (id, company_id, document, document_type, status, entity_name, notes,
			restriction_count, last_check_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(r.ID), uuid.UUID(r.CompanyID), r.Document, r.DocumentType, string(r.Status), r.EntityName, r.Notes,
		r.RestrictionCount, r.LastCheckAt, r.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert monitoring record: %w", err)
	}
	return nil
}

const selectRecord = `
	SELECT id, company_id, document, document_type, status, entity_name, notes, restriction_count,
	       previous_restriction_count, has_changes, change_description, last_check_at, created_at
	FROM monitoring_records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (models.Record, error) {
	var (
		r                       models.Record
		recordUUID, companyUUID uuid.UUID
		status                  string
		lastCheck               sql.NullTime
	)
	err := row.Scan(&recordUUID, &companyUUID, &r.Document, &r.DocumentType, &status, &r.EntityName, &r.Notes,
		&r.RestrictionCount, &r.PreviousRestrictions, &r.HasChanges, &r.ChangeDescription, &lastCheck, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.ID = id.MonitoringID(recordUUID)
	r.CompanyID = id.CompanyID(companyUUID)
	r.Status = models.Status(status)
	if lastCheck.Valid {
		r.LastCheckAt = &lastCheck.Time
	}
	return r, nil
}

func (s *Postgres) FindByDocument(ctx context.Context, companyID id.CompanyID, digits string) (*models.Record, error) {
	row := s.conn(ctx).QueryRowContext(ctx, selectRecord+` WHERE company_id = $1 AND document = $2`,
		uuid.UUID(companyID), digits)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find monitoring record: %w", err)
	}
	return &r, nil
}

func (s *Postgres) List(ctx context.Context, companyID id.CompanyID, docType string, limit, offset int) ([]models.Record, int, error) {
	types := allDocumentTypes
	if docType != "" {
		types = []string{docType}
	}

	var total int
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM monitoring_records WHERE company_id = $1 AND document_type = ANY($2::text[])`,
		uuid.UUID(companyID), pq.Array(types)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count monitoring records: %w", err)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, selectRecord+`
		WHERE company_id = $1 AND document_type = ANY($2::text[])
		ORDER BY created_at DESC, document
		LIMIT $3 OFFSET $4`,
		uuid.UUID(companyID), pq.Array(types), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list monitoring records: %w", err)
	}
	out, err := collect(rows)
	return out, total, err
}

func (s *Postgres) ListAll(ctx context.Context, companyID id.CompanyID) ([]models.Record, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, selectRecord+` WHERE company_id = $1 ORDER BY created_at DESC, document`,
		uuid.UUID(companyID))
	if err != nil {
		return nil, fmt.Errorf("list monitoring records: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]models.Record, error) {
	defer rows.Close()
	out := make([]models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitoring record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitoring records: %w", err)
	}
	return out, nil
}

func (s *Postgres) Update(ctx context.Context, r *models.Record) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE monitoring_records
		SET status = $3, entity_name = $4, restriction_count = $5, previous_restriction_count = $6,
		    has_changes = $7, change_description = $8, last_check_at = $9
		WHERE company_id = $1 AND document = $2`,
		uuid.UUID(r.CompanyID), r.Document, string(r.Status), r.EntityName, r.RestrictionCount,
		r.PreviousRestrictions, r.HasChanges, r.ChangeDescription, r.LastCheckAt,
	)
	if err != nil {
		return fmt.Errorf("update monitoring record: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) Delete(ctx context.Context, companyID id.CompanyID, digits string) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM monitoring_records WHERE company_id = $1 AND document = $2`,
		uuid.UUID(companyID), digits)
	if err != nil {
		return fmt.Errorf("delete monitoring record: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Stats aggregates in one pass. The last update is computed here, so no per-record
// timestamps are returned.
func (s *Postgres) Stats(ctx context.Context, companyID id.CompanyID) (reconcile.RawStats, []reconcile.RawRecord, error) {
	var (
		total, cpf, cnpj int
		raw              reconcile.RawStats
		lastUpdate       sql.NullTime
	)
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE document_type = 'CPF'),
		       count(*) FILTER (WHERE document_type = 'CNPJ'),
		       count(*) FILTER (WHERE restriction_count > 0),
		       count(*) FILTER (WHERE status = ANY($2::text[])),
		       max(COALESCE(last_check_at, created_at))
		FROM monitoring_records WHERE company_id = $1`,
		uuid.UUID(companyID), pq.Array(activeStatuses),
	).Scan(&total, &cpf, &cnpj, &raw.WithRestrictions, &raw.Active, &lastUpdate)
	if err != nil {
		return reconcile.RawStats{}, nil, fmt.Errorf("monitoring stats: %w", err)
	}
	raw.TotalMonitored = &total
	raw.ByType = map[string]int{"CPF": cpf, "CNPJ": cnpj}
	if lastUpdate.Valid {
		raw.LastUpdate = lastUpdate.Time.UTC().Format(time.RFC3339Nano)
	}
	return raw, nil, nil
}

func (s *Postgres) ChangedSince(ctx context.Context, companyID id.CompanyID, since time.Time) ([]models.Record, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, selectRecord+`
		WHERE company_id = $1 AND has_changes AND last_check_at >= $2
		ORDER BY last_check_at DESC`,
		uuid.UUID(companyID), since)
	if err != nil {
		return nil, fmt.Errorf("list changed monitoring records: %w", err)
	}
	return collect(rows)
}
