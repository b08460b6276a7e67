// Package memory provides an in-memory Store implementation for tests and dev.
package memory

import (
	"context"
	"sync"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

// Store keeps records in a slice guarded by an RWMutex. Load returns a
// copy, so readers always see a torn-read-free snapshot.
type Store struct {
	mu      sync.RWMutex
	records []billing.Record
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, rec billing.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) AppendBatch(_ context.Context, recs []billing.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recs...)
	return nil
}

func (s *Store) Load(_ context.Context) ([]billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) Last(_ context.Context) (*billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	rec := s.records[len(s.records)-1]
	return &rec, nil
}

func (s *Store) RevertLast(_ context.Context) (billing.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return billing.Record{}, billing.ErrEmptyLedger
	}
	rec := s.records[len(s.records)-1]
	s.records = s.records[:len(s.records)-1]
	return rec, nil
}
