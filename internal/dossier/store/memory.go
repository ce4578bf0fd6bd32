// Package store persists dossiers. Both implementations enforce the decision
// transition themselves: a dossier leaves PENDING at most once no matter how many
// callers race.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"kycdesk/internal/dossier/models"
	id "kycdesk/pkg/domain"
	"kycdesk/pkg/platform/sentinel"
)

type companyDocument struct {
	company  id.CompanyID
	document string
}

// InMemory is a mutex-guarded store for development and tests.
type InMemory struct {
	mu         sync.RWMutex
	dossiers   map[id.DossierID]*models.Dossier
	byDocument map[companyDocument]id.DossierID
	now        func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		dossiers:   make(map[id.DossierID]*models.Dossier),
		byDocument: make(map[companyDocument]id.DossierID),
		now:        time.Now,
	}
}

func (s *InMemory) Create(_ context.Context, d *models.Dossier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := companyDocument{d.CompanyID, d.Document}
	if _, exists := s.byDocument[key]; exists {
		return sentinel.ErrConflict
	}
	stored := *d
	s.dossiers[d.ID] = &stored
	s.byDocument[key] = d.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, companyID id.CompanyID, dossierID id.DossierID) (*models.Dossier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dossiers[dossierID]
	if !ok || d.CompanyID != companyID {
		return nil, sentinel.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *InMemory) FindIDByDocument(_ context.Context, companyID id.CompanyID, digits string) (id.DossierID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dossierID, ok := s.byDocument[companyDocument{companyID, digits}]
	if !ok {
		return id.DossierID{}, sentinel.ErrNotFound
	}
	return dossierID, nil
}

func (s *InMemory) FindIDsByDocuments(_ context.Context, companyID id.CompanyID, digits []string) (map[string]id.DossierID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]id.DossierID)
	for _, doc := range digits {
		if dossierID, ok := s.byDocument[companyDocument{companyID, doc}]; ok {
			found[doc] = dossierID
		}
	}
	return found, nil
}

// List returns a page of a company's dossiers, newest first, and the company total.
func (s *InMemory) List(_ context.Context, companyID id.CompanyID, limit, offset int) ([]models.Summary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Dossier
	for _, d := range s.dossiers {
		if d.CompanyID == companyID {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []models.Summary{}, total, nil
	}
	end := min(offset+limit, total)
	page := make([]models.Summary, 0, end-offset)
	for _, d := range all[offset:end] {
		page = append(page, d.Summary())
	}
	return page, total, nil
}

// Decide applies the PENDING → terminal transition. A dossier that is already
// decided yields sentinel.ErrInvalidState and keeps its first decision.
func (s *InMemory) Decide(_ context.Context, in models.DecisionInput) (models.DecisionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dossiers[in.DossierID]
	if !ok || d.CompanyID != in.CompanyID {
		return models.DecisionResult{}, sentinel.ErrNotFound
	}
	if d.Decision.Status != models.DecisionPending {
		return models.DecisionResult{}, sentinel.ErrInvalidState
	}

	decidedAt := s.now()
	approved := in.Approved
	decidedBy := in.DecidedBy
	d.Decision = models.Decision{
		TechnicalOpinion:      in.TechnicalOpinion,
		DirectorJustification: in.Justification,
		Status:                in.Status(),
		Approved:              &approved,
		DecidedAt:             &decidedAt,
		DecidedBy:             &decidedBy,
	}
	return models.DecisionResult{Status: d.Decision.Status, DecidedAt: decidedAt}, nil
}
