// Package store persists monitoring records, unique per company and document.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"kycdesk/internal/monitoring/models"
	"kycdesk/internal/monitoring/reconcile"
	id "kycdesk/pkg/domain"
	"kycdesk/pkg/platform/sentinel"
)

type recordKey struct {
	company  id.CompanyID
	document string
}

// InMemory is a mutex-guarded store for development and tests.
type InMemory struct {
	mu      sync.RWMutex
	records map[recordKey]*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[recordKey]*models.Record)}
}

func (s *InMemory) Create(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{r.CompanyID, r.Document}
	if _, ok := s.records[key]; ok {
		return sentinel.ErrConflict
	}
	cp := *r
	s.records[key] = &cp
	return nil
}

func (s *InMemory) FindByDocument(_ context.Context, companyID id.CompanyID, digits string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[recordKey{companyID, digits}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// List returns one page newest first. An empty docType matches every type.
func (s *InMemory) List(_ context.Context, companyID id.CompanyID, docType string, limit, offset int) ([]models.Record, int, error) {
	all := s.company(companyID, func(r *models.Record) bool {
		return docType == "" || r.DocumentType == docType
	})
	total := len(all)
	if offset >= total {
		return []models.Record{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *InMemory) ListAll(_ context.Context, companyID id.CompanyID) ([]models.Record, error) {
	return s.company(companyID, nil), nil
}

func (s *InMemory) Update(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{r.CompanyID, r.Document}
	if _, ok := s.records[key]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *r
	s.records[key] = &cp
	return nil
}

func (s *InMemory) Delete(_ context.Context, companyID id.CompanyID, digits string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{companyID, digits}
	if _, ok := s.records[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// Stats reports counters only; the last update is left for the reconciler to derive
// from the returned record timestamps.
func (s *InMemory) Stats(_ context.Context, companyID id.CompanyID) (reconcile.RawStats, []reconcile.RawRecord, error) {
	all := s.company(companyID, nil)
	total := len(all)
	raw := reconcile.RawStats{
		TotalMonitored: &total,
		ByType:         map[string]int{"CPF": 0, "CNPJ": 0},
	}
	records := make([]reconcile.RawRecord, 0, len(all))
	for _, r := range all {
		raw.ByType[r.DocumentType]++
		if r.RestrictionCount > 0 {
			raw.WithRestrictions++
		}
		if isActive(r.Status) {
			raw.Active++
		}
		rr := reconcile.RawRecord{AddedDate: r.CreatedAt.Format(time.RFC3339Nano)}
		if r.LastCheckAt != nil {
			rr.LastCheck = r.LastCheckAt.Format(time.RFC3339Nano)
		}
		records = append(records, rr)
	}
	return raw, records, nil
}

func (s *InMemory) ChangedSince(_ context.Context, companyID id.CompanyID, since time.Time) ([]models.Record, error) {
	out := s.company(companyID, func(r *models.Record) bool {
		return r.HasChanges && r.LastCheckAt != nil && !r.LastCheckAt.Before(since)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastCheckAt.After(*out[j].LastCheckAt) })
	return out, nil
}

// company returns copies of the company's matching records, newest first.
func (s *InMemory) company(companyID id.CompanyID, keep func(*models.Record) bool) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, 0)
	for key, r := range s.records {
		if key.company != companyID || (keep != nil && !keep(r)) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Document < out[j].Document
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// activeStatuses are the statuses counted as active in stats.
var activeStatuses = []string{string(models.StatusActive), string(models.StatusRegular)}

func isActive(s models.Status) bool {
	for _, a := range activeStatuses {
		if string(s) == a {
			return true
		}
	}
	return false
}
