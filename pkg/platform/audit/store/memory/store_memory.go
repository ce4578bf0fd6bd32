package memory

import (
	"context"
	"sync"

	id "kycdesk/pkg/domain"
	audit "kycdesk/pkg/platform/audit"
)

// InMemoryStore keeps audit events per company for development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.CompanyID][]audit.Event
	err    error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.CompanyID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.CompanyID][]audit.Event)
}

// FailWith makes every subsequent Append return err. Pass nil to recover.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events[event.CompanyID] = append(s.events[event.CompanyID], event)
	return nil
}

// ListByCompany returns a company's events in append order.
func (s *InMemoryStore) ListByCompany(_ context.Context, companyID id.CompanyID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[companyID]...), nil
}
