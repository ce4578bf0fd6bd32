package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
	"kycdesk/internal/evidence/narrative"
	"kycdesk/internal/evidence/registry"
	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/audit"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

const (
	aiNotConfigured = "AI not configured"
	aiFailedPrefix  = "AI analysis failed: "
)

type CreateResult struct {
	ID           id.DossierID
	EntityName   string
	Document     string
	DocumentType string
	RiskLevel    models.RiskLevel
}

type DuplicateCheck struct {
	Exists    bool
	DossierID *id.DossierID
}

// Create screens the document and persists a PENDING dossier. Concurrent creates for
// the same company and document share one execution.
func (s *Service) Create(ctx context.Context, raw string, aiEnabled bool) (*CreateResult, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	doc := document.Classify(raw)
	if !doc.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, document.InvalidMessage)
	}

	// The shared call outlives any one caller: it keeps the leader's values but not
	// its cancellation, and screening stays bounded by createTimeout.
	key := companyID.String() + ":" + doc.Digits
	flightCtx := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (any, error) {
		return s.create(flightCtx, companyID, doc, aiEnabled)
	})

	select {
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "request ended before the dossier was created")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "dossier create collapsed", "company_id", companyID.String())
		}
		return res.Val.(*CreateResult), nil
	}
}

func (s *Service) create(ctx context.Context, companyID id.CompanyID, doc document.Document, aiEnabled bool) (*CreateResult, error) {
	existing, err := s.store.FindIDByDocument(ctx, companyID, doc.Digits)
	switch {
	case err == nil:
		return nil, duplicate(existing)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing dossier")
	}

	start := time.Now()
	screenCtx, cancel := context.WithTimeout(ctx, s.createTimeout)
	screening, err := s.screener.Screen(screenCtx, doc)
	cancel()
	s.metrics.ObserveAggregate(start)
	if err != nil {
		s.logger.ErrorContext(ctx, "evidence aggregation failed",
			"company_id", companyID.String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, transportFailure(err)
	}

	if aiEnabled {
		screening.Report.AIAnalysis = s.narrate(ctx, screening)
	}

	d := models.NewDossier(companyID, doc.Digits, doc.Label(), screening.EntityName,
		screening.RiskLevel, screening.Report, requestcontext.Now(ctx))

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, d); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventDossierCreated, d.ID.String(), string(d.RiskLevel), doc.Digits)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if existing, ferr := s.store.FindIDByDocument(ctx, companyID, doc.Digits); ferr == nil {
				return nil, duplicate(existing)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "dossier already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save dossier")
	}

	s.metrics.IncCreated(string(d.RiskLevel))
	s.logger.InfoContext(ctx, "dossier created",
		"company_id", companyID.String(),
		"dossier_id", d.ID.String(),
		"risk_level", d.RiskLevel,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &CreateResult{
		ID:           d.ID,
		EntityName:   d.EntityName,
		Document:     d.Document,
		DocumentType: d.DocumentType,
		RiskLevel:    d.RiskLevel,
	}, nil
}

// narrate never fails the create: problems become the narrative text itself.
func (s *Service) narrate(ctx context.Context, sc *registry.Screening) string {
	if s.narrator == nil {
		return aiNotConfigured
	}
	text, err := s.narrator.Narrate(ctx, narrative.Subject{
		Document:           sc.Document.Digits,
		DocumentType:       sc.Document.Label(),
		EntityName:         sc.EntityName,
		RegistrationStatus: sc.RegistrationStatus,
		RiskLevel:          string(sc.RiskLevel),
		TotalSanctions:     sc.Restrictions,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "narrative generation failed", "error", err)
		return aiFailedPrefix + err.Error()
	}
	return text
}

func (s *Service) CheckDuplicate(ctx context.Context, raw string) (DuplicateCheck, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return DuplicateCheck{}, err
	}
	doc := document.Classify(raw)
	if !doc.Valid() {
		return DuplicateCheck{}, dErrors.New(dErrors.CodeValidation, document.InvalidMessage)
	}
	existing, err := s.store.FindIDByDocument(ctx, companyID, doc.Digits)
	if errors.Is(err, sentinel.ErrNotFound) {
		return DuplicateCheck{}, nil
	}
	if err != nil {
		return DuplicateCheck{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing dossier")
	}
	return DuplicateCheck{Exists: true, DossierID: &existing}, nil
}

type BatchItem struct {
	Document   string
	DossierID  *id.DossierID
	Error      string
	ExistingID *id.DossierID
}

type BatchError struct {
	Document string
	Error    string
}

type BatchResult struct {
	TotalProcessed int
	Successful     int
	Failed         int
	Results        []BatchItem
	Errors         []BatchError
}

const alreadyExists = "already exists"

// SubmitBatch creates one dossier per document, sequentially and in order. A failing
// item is reported and never stops the rest.
func (s *Service) SubmitBatch(ctx context.Context, documents []string, aiEnabled bool) (*BatchResult, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, len(documents))
	for _, raw := range documents {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no documents provided")
	}

	known := s.knownDocuments(ctx, companyID, items)
	result := &BatchResult{
		Results: make([]BatchItem, 0, len(items)),
		Errors:  []BatchError{},
	}
	for _, raw := range items {
		item := BatchItem{Document: raw}
		if existing, ok := known[document.Digits(raw)]; ok {
			item.Error = alreadyExists
			item.ExistingID = &existing
		} else if created, err := s.Create(ctx, raw, aiEnabled); err != nil {
			if existing, ok := ExistingID(err); ok {
				item.Error = alreadyExists
				item.ExistingID = &existing
			} else {
				item.Error = errorText(err)
			}
		} else {
			item.DossierID = &created.ID
		}

		if item.Error != "" {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{Document: raw, Error: item.Error})
		} else {
			result.Successful++
		}
		result.Results = append(result.Results, item)
	}
	result.TotalProcessed = len(items)

	s.metrics.ObserveBatchSize(len(items))
	if s.ops != nil {
		s.ops.Track(ctx, audit.OpsEvent{
			Timestamp: requestcontext.Now(ctx),
			CompanyID: companyID,
			Subject:   "batch",
			Action:    audit.EventBatchSubmitted,
			Reason:    fmt.Sprintf("processed=%d failed=%d", result.TotalProcessed, result.Failed),
			RequestID: requestcontext.RequestID(ctx),
		})
	}
	return result, nil
}

// knownDocuments is a single lookup ahead of the batch. Create re-checks every item,
// so a failed lookup only costs the shortcut.
func (s *Service) knownDocuments(ctx context.Context, companyID id.CompanyID, items []string) map[string]id.DossierID {
	digits := make([]string, 0, len(items))
	for _, raw := range items {
		if doc := document.Classify(raw); doc.Valid() {
			digits = append(digits, doc.Digits)
		}
	}
	if len(digits) == 0 {
		return nil
	}
	known, err := s.store.FindIDsByDocuments(ctx, companyID, digits)
	if err != nil {
		s.logger.WarnContext(ctx, "batch duplicate lookup failed", "error", err)
		return nil
	}
	return known
}

func errorText(err error) string {
	if msg := dErrors.MessageOf(err); msg != "" {
		return msg
	}
	return err.Error()
}
