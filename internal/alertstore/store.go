package alertstore

import (
	"context"
	"errors"

	"alertcore/internal/domain"
)

var (
	// ErrNotFound indicates absent alert document.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates revision mismatch for CAS update.
	ErrConflict = errors.New("revision conflict")
)

// Store provides alert document persistence operations.
// Params: CRUD with revision-based optimistic concurrency plus full listing.
// Returns: backend persistence behavior.
type Store interface {
	Get(ctx context.Context, alertID string) (domain.Alert, uint64, error)
	Put(ctx context.Context, alertID string, alert domain.Alert) (uint64, error)
	Update(ctx context.Context, alertID string, expectedRevision uint64, alert domain.Alert) (uint64, error)
	List(ctx context.Context) ([]domain.Alert, error)
	Delete(ctx context.Context, alertID string) error
	Close() error
}
