package ledger

import (
	"context"
	"sync"
	"time"

	"entrypass/internal/pass"
)

var _ Store = &MemoryStore{}

// MemoryStore keeps the ledger for the lifetime of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	passes    map[string]pass.Record
	order     []string
	processed map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		passes:    make(map[string]pass.Record),
		processed: make(map[string]struct{}),
	}
}

func (s *MemoryStore) Put(_ context.Context, rec pass.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.passes[rec.ID]; ok {
		return NewPassAlreadyExistsError(rec.ID)
	}
	s.passes[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (pass.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.passes[id]
	if !ok {
		return pass.Record{}, NewPassNotFoundError(id)
	}
	return rec, nil
}

func (s *MemoryStore) CheckIn(_ context.Context, id string, at time.Time) (pass.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.passes[id]
	if !ok {
		return pass.Record{}, NewPassNotFoundError(id)
	}
	if rec.CheckedIn {
		return rec, NewAlreadyCheckedInError(id)
	}

	rec.CheckedIn = true
	rec.CheckInTime = &at
	s.passes[id] = rec
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context) ([]pass.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pass.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.passes[id])
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[email] = struct{}{}
	return nil
}

func (s *MemoryStore) IsProcessed(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processed[email]
	return ok, nil
}

func (s *MemoryStore) ProcessedCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.processed), nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
