package alertstore

import (
	"context"
	"sync"

	"alertcore/internal/domain"
)

// MemoryStore keeps alert documents in process memory for single-instance mode.
// Params: in-memory map guarded by RW mutex.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[string]memoryAlert
}

type memoryAlert struct {
	alert    domain.Alert
	revision uint64
}

// NewMemoryStore creates in-memory alert store.
// Params: none.
// Returns: initialized in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alerts: make(map[string]memoryAlert)}
}

// Get returns alert document and revision.
// Params: alert ID key.
// Returns: stored alert, revision, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, alertID string) (domain.Alert, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.alerts[alertID]
	if !ok {
		return domain.Alert{}, 0, ErrNotFound
	}
	return entry.alert, entry.revision, nil
}

// Put writes alert document unconditionally.
// Params: alert ID key and document payload.
// Returns: new revision.
func (s *MemoryStore) Put(_ context.Context, alertID string, alert domain.Alert) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev := s.alerts[alertID].revision + 1
	s.alerts[alertID] = memoryAlert{alert: alert, revision: rev}
	return rev, nil
}

// Update updates alert document using expected revision CAS.
// Params: alert ID key, expected revision, and replacement payload.
// Returns: new revision, ErrNotFound, or ErrConflict.
func (s *MemoryStore) Update(_ context.Context, alertID string, expectedRevision uint64, alert domain.Alert) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.alerts[alertID]
	if !ok {
		return 0, ErrNotFound
	}
	if entry.revision != expectedRevision {
		return 0, ErrConflict
	}
	rev := expectedRevision + 1
	s.alerts[alertID] = memoryAlert{alert: alert, revision: rev}
	return rev, nil
}

// List returns every stored alert document.
// Params: none.
// Returns: alert snapshot copies in unspecified order.
func (s *MemoryStore) List(_ context.Context) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.alerts))
	for _, entry := range s.alerts {
		out = append(out, entry.alert)
	}
	return out, nil
}

// Delete removes one alert document.
// Params: alert ID key.
// Returns: nil (in-memory delete).
func (s *MemoryStore) Delete(_ context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, alertID)
	return nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}
