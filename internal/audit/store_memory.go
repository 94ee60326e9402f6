package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps audit records in process, newest first. Default backend
// when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*PlateQuery
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of the record, assigning an ID when absent.
func (s *MemoryStore) Append(_ context.Context, record *PlateQuery) error {
	stored := *record
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]*PlateQuery{&stored}, s.records...)
	return nil
}

// FindBySession returns the record for the session or ErrNotFound.
func (s *MemoryStore) FindBySession(_ context.Context, sessionID uuid.UUID) (*PlateQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.SessionID == sessionID {
			dup := *record
			return &dup, nil
		}
	}
	return nil, ErrNotFound
}

// ListRecent returns up to limit records, newest first.
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]*PlateQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]*PlateQuery, 0, limit)
	for _, record := range s.records[:limit] {
		dup := *record
		out = append(out, &dup)
	}
	return out, nil
}
