package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kycdesk/internal/dossier/models"
	"kycdesk/internal/platform/postgres"
	id "kycdesk/pkg/domain"
	"kycdesk/pkg/platform/sentinel"
	txcontext "kycdesk/pkg/platform/tx"
)

// Postgres persists dossiers in the dossiers table. Calls made inside a tx.Runner
// join the caller's transaction.
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

func (s *Postgres) Create(ctx context.Context, d *models.Dossier) error {
	report, err := json.Marshal(d.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO dossiers (id, company_id, document, document_type, entity_name, risk_level, report_data, decision_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(d.ID), uuid.UUID(d.CompanyID), d.Document, d.DocumentType, d.EntityName,
		nullString(string(d.RiskLevel)), report, string(models.DecisionPending), d.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert dossier: %w", err)
	}
	return nil
}

const selectDossier = `
	SELECT id, company_id, document, document_type, entity_name, risk_level, report_data,
	       technical_opinion, director_justification, decision_status, approved, decided_at, decided_by, created_at
	FROM dossiers`

func (s *Postgres) FindByID(ctx context.Context, companyID id.CompanyID, dossierID id.DossierID) (*models.Dossier, error) {
	row := s.conn(ctx).QueryRowContext(ctx, selectDossier+` WHERE id = $1 AND company_id = $2`,
		uuid.UUID(dossierID), uuid.UUID(companyID))

	var (
		d                            models.Dossier
		dossierUUID, companyUUID     uuid.UUID
		risk, opinion, justification sql.NullString
		status                       string
		approved                     sql.NullBool
		decidedAt                    sql.NullTime
		decidedBy                    uuid.NullUUID
		report                       []byte
	)
	err := row.Scan(&dossierUUID, &companyUUID, &d.Document, &d.DocumentType, &d.EntityName, &risk, &report,
		&opinion, &justification, &status, &approved, &decidedAt, &decidedBy, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find dossier: %w", err)
	}

	d.ID = id.DossierID(dossierUUID)
	d.CompanyID = id.CompanyID(companyUUID)
	d.RiskLevel = models.RiskLevel(risk.String)
	d.Report = decodeReport(report)
	d.Decision = models.Decision{
		TechnicalOpinion:      opinion.String,
		DirectorJustification: justification.String,
		Status:                models.DecisionStatus(status),
	}
	if approved.Valid {
		d.Decision.Approved = &approved.Bool
	}
	if decidedAt.Valid {
		d.Decision.DecidedAt = &decidedAt.Time
	}
	if decidedBy.Valid {
		userID := id.UserID(decidedBy.UUID)
		d.Decision.DecidedBy = &userID
	}
	return &d, nil
}

// decodeReport never fails: a payload that no longer decodes is served as an empty
// report so the view degrades instead of the read erroring.
func decodeReport(raw []byte) *models.Report {
	var r models.Report
	if len(raw) == 0 || json.Unmarshal(raw, &r) != nil {
		return &models.Report{}
	}
	return &r
}

func (s *Postgres) FindIDByDocument(ctx context.Context, companyID id.CompanyID, digits string) (id.DossierID, error) {
	var dossierUUID uuid.UUID
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id FROM dossiers WHERE company_id = $1 AND document = $2`,
		uuid.UUID(companyID), digits,
	).Scan(&dossierUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.DossierID{}, sentinel.ErrNotFound
		}
		return id.DossierID{}, fmt.Errorf("find dossier by document: %w", err)
	}
	return id.DossierID(dossierUUID), nil
}

func (s *Postgres) FindIDsByDocuments(ctx context.Context, companyID id.CompanyID, digits []string) (map[string]id.DossierID, error) {
	found := make(map[string]id.DossierID)
	if len(digits) == 0 {
		return found, nil
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT document, id FROM dossiers WHERE company_id = $1 AND document = ANY($2::text[])`,
		uuid.UUID(companyID), pq.Array(digits),
	)
	if err != nil {
		return nil, fmt.Errorf("find dossiers by documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			doc         string
			dossierUUID uuid.UUID
		)
		if err := rows.Scan(&doc, &dossierUUID); err != nil {
			return nil, fmt.Errorf("scan dossier id: %w", err)
		}
		found[doc] = id.DossierID(dossierUUID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dossier ids: %w", err)
	}
	return found, nil
}

func (s *Postgres) List(ctx context.Context, companyID id.CompanyID, limit, offset int) ([]models.Summary, int, error) {
	var total int
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM dossiers WHERE company_id = $1`, uuid.UUID(companyID),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dossiers: %w", err)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, document, document_type, entity_name, risk_level, decision_status, created_at
		FROM dossiers
		WHERE company_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		uuid.UUID(companyID), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list dossiers: %w", err)
	}
	defer rows.Close()

	page := []models.Summary{}
	for rows.Next() {
		var (
			sum         models.Summary
			dossierUUID uuid.UUID
			risk        sql.NullString
			status      string
		)
		if err := rows.Scan(&dossierUUID, &sum.Document, &sum.DocumentType, &sum.EntityName, &risk, &status, &sum.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan dossier summary: %w", err)
		}
		sum.ID = id.DossierID(dossierUUID)
		sum.RiskLevel = models.RiskLevel(risk.String)
		sum.DecisionStatus = models.DecisionStatus(status)
		page = append(page, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate dossiers: %w", err)
	}
	return page, total, nil
}

// Decide is a compare-and-set on decision_status. The timestamp comes from the
// database clock. When no row changes, a follow-up lookup tells a missing dossier
// apart from one that was already decided.
func (s *Postgres) Decide(ctx context.Context, in models.DecisionInput) (models.DecisionResult, error) {
	status := in.Status()
	var result models.DecisionResult
	err := s.conn(ctx).QueryRowContext(ctx, `
		UPDATE dossiers
		SET technical_opinion = $3,
		    director_justification = $4,
		    approved = $5,
		    decision_status = $6,
		    decided_by = $7,
		    decided_at = now()
		WHERE id = $1 AND company_id = $2 AND decision_status = 'PENDING'
		RETURNING decided_at`,
		uuid.UUID(in.DossierID), uuid.UUID(in.CompanyID),
		in.TechnicalOpinion, in.Justification, in.Approved, string(status), uuid.UUID(in.DecidedBy),
	).Scan(&result.DecidedAt)
	if err == nil {
		result.Status = status
		return result, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.DecisionResult{}, fmt.Errorf("record decision: %w", err)
	}

	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM dossiers WHERE id = $1 AND company_id = $2)`,
		uuid.UUID(in.DossierID), uuid.UUID(in.CompanyID),
	).Scan(&exists); err != nil {
		return models.DecisionResult{}, fmt.Errorf("check dossier exists: %w", err)
	}
	if !exists {
		return models.DecisionResult{}, sentinel.ErrNotFound
	}
	return models.DecisionResult{}, sentinel.ErrInvalidState
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
