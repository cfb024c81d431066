package config

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps records in process memory. Hosts back their remote
// scope with it; tests use it everywhere.
type MemoryStore struct {
	scope Scope

	mu      sync.RWMutex
	records []ProviderConfigRecord
}

func NewMemoryStore(scope Scope) *MemoryStore {
	return &MemoryStore{scope: scope}
}

func (s *MemoryStore) Scope() Scope { return s.scope }
func (s *MemoryStore) Path() string { return "" }
func (s *MemoryStore) Exists() bool { return true }

func (s *MemoryStore) List(_ context.Context) ([]ProviderConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ProviderConfigRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec ProviderConfigRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.Key() == rec.Key() {
			s.records[i] = rec.Clone()
			return nil
		}
	}
	s.records = append(s.records, rec.Clone())
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	for i, r := range s.records {
		if r.Key() == key {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}
