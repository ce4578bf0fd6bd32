// Package service orchestrates dossier creation, retrieval, batch submission and the
// approval decision. Handlers stay thin; everything tenant-scoped happens here.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"kycdesk/internal/document"
	"kycdesk/internal/dossier/metrics"
	"kycdesk/internal/dossier/models"
	"kycdesk/internal/evidence/narrative"
	"kycdesk/internal/evidence/registry"
	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/audit"
	txcontext "kycdesk/pkg/platform/tx"
	"kycdesk/pkg/requestcontext"
)

const defaultCreateTimeout = 30 * time.Second

type Store interface {
	Create(ctx context.Context, d *models.Dossier) error
	FindByID(ctx context.Context, companyID id.CompanyID, dossierID id.DossierID) (*models.Dossier, error)
	FindIDByDocument(ctx context.Context, companyID id.CompanyID, digits string) (id.DossierID, error)
	FindIDsByDocuments(ctx context.Context, companyID id.CompanyID, digits []string) (map[string]id.DossierID, error)
	List(ctx context.Context, companyID id.CompanyID, limit, offset int) ([]models.Summary, int, error)
	Decide(ctx context.Context, in models.DecisionInput) (models.DecisionResult, error)
}

type Screener interface {
	Screen(ctx context.Context, doc document.Document) (*registry.Screening, error)
}

type Narrator interface {
	Narrate(ctx context.Context, s narrative.Subject) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

type Service struct {
	store         Store
	screener      Screener
	narrator      Narrator
	tx            txcontext.Runner
	auditor       AuditPublisher
	ops           OpsTracker
	metrics       *metrics.Metrics
	logger        *slog.Logger
	createTimeout time.Duration
	inflight      singleflight.Group
}

type Option func(*Service)

func WithNarrator(n Narrator) Option {
	return func(s *Service) { s.narrator = n }
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(s *Service) {
		if r != nil {
			s.tx = r
		}
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) { s.ops = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCreateTimeout bounds evidence aggregation during Create.
func WithCreateTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.createTimeout = d
		}
	}
}

func New(store Store, screener Screener, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("dossier store is required")
	}
	if screener == nil {
		return nil, errors.New("screener is required")
	}
	s := &Service{
		store:         store,
		screener:      screener,
		tx:            txcontext.NoopRunner{},
		logger:        slog.Default(),
		createTimeout: defaultCreateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func callerCompany(ctx context.Context) (id.CompanyID, error) {
	companyID := requestcontext.CompanyID(ctx)
	if companyID.IsNil() {
		return companyID, dErrors.New(dErrors.CodeUnauthorized, "company required")
	}
	return companyID, nil
}

// emit writes a compliance event. It joins the caller's transaction when one is open,
// so a failed write rolls the business change back.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subject, decision, digits string) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, audit.ComplianceEvent{
		Timestamp:     requestcontext.Now(ctx),
		UserID:        requestcontext.UserID(ctx),
		CompanyID:     requestcontext.CompanyID(ctx),
		Subject:       subject,
		Action:        action,
		Decision:      decision,
		SubjectIDHash: audit.HashSubjectID(digits),
		RequestID:     requestcontext.RequestID(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
		Device:        requestcontext.Device(ctx),
	})
}
