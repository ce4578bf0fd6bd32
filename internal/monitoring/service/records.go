package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kycdesk/internal/document"
	"kycdesk/internal/monitoring/models"
	"kycdesk/internal/monitoring/notify"
	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/audit"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	notMonitored    = "document is not monitored"
)

type AddResult struct {
	RecordID         id.MonitoringID
	Document         string
	EntityName       string
	RestrictionCount int
	AlreadyExists    bool
}

type Page struct {
	Records  []models.Record
	Total    int
	Page     int
	PageSize int
}

type UpdateResult struct {
	Document        string
	OldRestrictions int
	NewRestrictions int
	HasChanges      bool
}

type UpdateError struct {
	Document string
	Error    string
}

type UpdateAllResult struct {
	Total   int
	Updated int
	Errors  []UpdateError
}

func addResult(r *models.Record, existed bool) *AddResult {
	return &AddResult{
		RecordID:         r.ID,
		Document:         r.Document,
		EntityName:       r.EntityName,
		RestrictionCount: r.RestrictionCount,
		AlreadyExists:    existed,
	}
}

// Add puts a document under monitoring. Adding a monitored document returns the
// stored record without screening again.
func (s *Service) Add(ctx context.Context, raw, notes string) (*AddResult, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := classify(raw)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByDocument(ctx, companyID, doc.Digits)
	switch {
	case err == nil:
		return addResult(existing, true), nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check monitoring")
	}

	screening, err := s.screen(ctx, doc)
	if err != nil {
		s.logger.ErrorContext(ctx, "monitoring screening failed", "company_id", companyID.String(), "error", err)
		return nil, err
	}

	status := models.ComputeStatus(doc.Kind, screening.RegistrationStatus, screening.Restrictions)
	record := models.NewRecord(companyID, doc, screening.EntityName, strings.TrimSpace(notes), status,
		screening.Restrictions, requestcontext.Now(ctx))

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, record); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventMonitoringAdded, doc.Digits)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if winner, findErr := s.store.FindByDocument(ctx, companyID, doc.Digits); findErr == nil {
				return addResult(winner, true), nil
			}
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add monitoring")
	}

	s.metrics.IncAdded()
	s.logger.InfoContext(ctx, "monitoring added",
		"company_id", companyID.String(),
		"record_id", record.ID.String(),
		"status", string(record.Status),
	)
	return addResult(record, false), nil
}

// List pages the company's records newest first. docType accepts CPF or CNPJ;
// empty lists every type.
func (s *Service) List(ctx context.Context, page, pageSize int, docType string) (*Page, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	label := ""
	if strings.TrimSpace(docType) != "" {
		kind, ok := document.ParseKind(docType)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, "doc_type must be CPF or CNPJ")
		}
		label = kind.Label()
	}

	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}

	records, total, err := s.store.List(ctx, companyID, label, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list monitoring")
	}
	return &Page{Records: records, Total: total, Page: page, PageSize: pageSize}, nil
}

// Update re-checks one monitored document.
func (s *Service) Update(ctx context.Context, raw string) (*UpdateResult, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := classify(raw)
	if err != nil {
		return nil, err
	}
	record, err := s.store.FindByDocument(ctx, companyID, doc.Digits)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, notMonitored)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load monitoring")
	}
	return s.recheck(ctx, record)
}

// UpdateAll re-checks every record of the company in order. A failed record is
// reported and does not stop the rest.
func (s *Service) UpdateAll(ctx context.Context) (*UpdateAllResult, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListAll(ctx, companyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list monitoring")
	}

	result := &UpdateAllResult{Total: len(records), Errors: []UpdateError{}}
	for i := range records {
		if _, err := s.recheck(ctx, &records[i]); err != nil {
			result.Errors = append(result.Errors, UpdateError{Document: records[i].Document, Error: errorText(err)})
			continue
		}
		result.Updated++
	}
	s.logger.InfoContext(ctx, "monitoring bulk update",
		"company_id", companyID.String(),
		"total", result.Total,
		"updated", result.Updated,
	)
	return result, nil
}

func (s *Service) recheck(ctx context.Context, record *models.Record) (*UpdateResult, error) {
	doc := document.Classify(record.Document)
	screening, err := s.screen(ctx, doc)
	if err != nil {
		s.metrics.IncCheck("error")
		s.logger.ErrorContext(ctx, "monitoring check failed", "record_id", record.ID.String(), "error", err)
		return nil, err
	}

	old := record.RestrictionCount
	status := models.ComputeStatus(doc.Kind, screening.RegistrationStatus, screening.Restrictions)
	record.ApplyCheck(screening.EntityName, status, screening.Restrictions, requestcontext.Now(ctx))

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, record); err != nil {
			return err
		}
		if !record.HasChanges {
			return nil
		}
		return s.emit(ctx, audit.EventMonitoringChanged, record.Document)
	})
	if err != nil {
		s.metrics.IncCheck("error")
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, notMonitored)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save monitoring check")
	}

	s.metrics.IncCheck("ok")
	if record.HasChanges {
		s.metrics.IncChange()
		s.publishChange(ctx, record)
	}
	s.track(ctx, fmt.Sprintf("old=%d new=%d", old, record.RestrictionCount))

	return &UpdateResult{
		Document:        record.Document,
		OldRestrictions: old,
		NewRestrictions: record.RestrictionCount,
		HasChanges:      record.HasChanges,
	}, nil
}

// publishChange runs after the check is committed; a failed publish is logged and
// does not undo the check.
func (s *Service) publishChange(ctx context.Context, r *models.Record) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyChange(ctx, notify.ChangeEvent{
		CompanyID:            r.CompanyID.String(),
		Document:             r.Document,
		DocumentType:         r.DocumentType,
		EntityName:           r.EntityName,
		Status:               string(r.Status),
		PreviousRestrictions: r.PreviousRestrictions,
		Restrictions:         r.RestrictionCount,
		Description:          r.ChangeDescription,
		DetectedAt:           *r.LastCheckAt,
	})
	if err != nil {
		s.metrics.IncNotifyFailure()
		s.logger.WarnContext(ctx, "monitoring change not published", "record_id", r.ID.String(), "error", err)
	}
}

// Remove stops monitoring a document.
func (s *Service) Remove(ctx context.Context, raw string) error {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return err
	}
	doc, err := classify(raw)
	if err != nil {
		return err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, companyID, doc.Digits); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventMonitoringRemoved, doc.Digits)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, notMonitored)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove monitoring")
	}
	return nil
}
