// Package service manages the set of documents a company keeps under continuous
// monitoring and re-checks them against the evidence sources.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kycdesk/internal/document"
	"kycdesk/internal/evidence/registry"
	"kycdesk/internal/monitoring/metrics"
	"kycdesk/internal/monitoring/models"
	"kycdesk/internal/monitoring/notify"
	"kycdesk/internal/monitoring/reconcile"
	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/audit"
	txcontext "kycdesk/pkg/platform/tx"
	"kycdesk/pkg/requestcontext"
)

const defaultCheckTimeout = 30 * time.Second

type Store interface {
	Create(ctx context.Context, r *models.Record) error
	FindByDocument(ctx context.Context, companyID id.CompanyID, digits string) (*models.Record, error)
	List(ctx context.Context, companyID id.CompanyID, docType string, limit, offset int) ([]models.Record, int, error)
	ListAll(ctx context.Context, companyID id.CompanyID) ([]models.Record, error)
	Update(ctx context.Context, r *models.Record) error
	Delete(ctx context.Context, companyID id.CompanyID, digits string) error
	Stats(ctx context.Context, companyID id.CompanyID) (reconcile.RawStats, []reconcile.RawRecord, error)
	ChangedSince(ctx context.Context, companyID id.CompanyID, since time.Time) ([]models.Record, error)
}

type Screener interface {
	Screen(ctx context.Context, doc document.Document) (*registry.Screening, error)
}

// Notifier announces restriction changes to downstream consumers.
type Notifier interface {
	NotifyChange(ctx context.Context, event notify.ChangeEvent) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

type Service struct {
	store        Store
	screener     Screener
	notifier     Notifier
	tx           txcontext.Runner
	auditor      AuditPublisher
	ops          OpsTracker
	metrics      *metrics.Metrics
	logger       *slog.Logger
	checkTimeout time.Duration
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
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

// WithCheckTimeout bounds each screening done by Add and Update.
func WithCheckTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.checkTimeout = d
		}
	}
}

func New(store Store, screener Screener, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("monitoring store is required")
	}
	if screener == nil {
		return nil, errors.New("screener is required")
	}
	s := &Service{
		store:        store,
		screener:     screener,
		tx:           txcontext.NoopRunner{},
		logger:       slog.Default(),
		checkTimeout: defaultCheckTimeout,
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

func classify(raw string) (document.Document, error) {
	doc := document.Classify(raw)
	if !doc.Valid() {
		return doc, dErrors.New(dErrors.CodeValidation, document.InvalidMessage)
	}
	return doc, nil
}

func (s *Service) screen(ctx context.Context, doc document.Document) (*registry.Screening, error) {
	checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()
	screening, err := s.screener.Screen(checkCtx, doc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "monitoring check timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "evidence sources unavailable")
	}
	return screening, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, digits string) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, audit.ComplianceEvent{
		Timestamp:     requestcontext.Now(ctx),
		UserID:        requestcontext.UserID(ctx),
		CompanyID:     requestcontext.CompanyID(ctx),
		Subject:       "monitoring",
		Action:        action,
		SubjectIDHash: audit.HashSubjectID(digits),
		RequestID:     requestcontext.RequestID(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
		Device:        requestcontext.Device(ctx),
	})
}

func (s *Service) track(ctx context.Context, reason string) {
	if s.ops == nil {
		return
	}
	s.ops.Track(ctx, audit.OpsEvent{
		Timestamp: requestcontext.Now(ctx),
		CompanyID: requestcontext.CompanyID(ctx),
		Subject:   "monitoring",
		Action:    audit.EventMonitoringChecked,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func errorText(err error) string {
	if msg := dErrors.MessageOf(err); msg != "" {
		return msg
	}
	return err.Error()
}
