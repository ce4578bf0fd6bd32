package service

import (
	"context"
	"errors"

	"kycdesk/internal/dossier/models"
	"kycdesk/internal/dossier/reconcile"
	id "kycdesk/pkg/domain"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/sentinel"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Detail is a stored dossier together with the view derived from its report.
type Detail struct {
	Dossier *models.Dossier
	View    reconcile.View
}

type Page struct {
	Items    []models.Summary
	Total    int
	Page     int
	PageSize int
}

func (s *Service) Get(ctx context.Context, dossierID id.DossierID) (*Detail, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	if dossierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "dossier id required")
	}
	d, err := s.store.FindByID(ctx, companyID, dossierID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "dossier not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dossier")
	}
	return &Detail{Dossier: d, View: reconcile.DeriveView(d)}, nil
}

// List returns the company's dossiers newest first.
func (s *Service) List(ctx context.Context, page, pageSize int) (*Page, error) {
	companyID, err := callerCompany(ctx)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.store.List(ctx, companyID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list dossiers")
	}
	return &Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return page, pageSize
}
