package attempt

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists payment attempts. Implementations must guarantee two
// invariants: at most one non-terminal attempt exists per order, and an
// attempt that reached a terminal status never changes again.
type Store interface {
	// Create inserts a new attempt. Returns ErrActiveAttemptExists when the
	// order already has a non-terminal attempt.
	Create(ctx context.Context, a *Attempt) error

	// GetByID returns the attempt or ErrAttemptNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Attempt, error)

	// GetActiveForOrder returns the order's single non-terminal attempt, or
	// ErrAttemptNotFound when the order has none.
	GetActiveForOrder(ctx context.Context, orderID string) (*Attempt, error)

	// UpdatePhase applies one transition against the expected version.
	// Returns ErrTerminalAttempt if the stored attempt is already terminal,
	// ErrVersionConflict if another writer got there first, and the updated
	// attempt on success.
	UpdatePhase(ctx context.Context, id uuid.UUID, expectedVersion int, upd Update) (*Attempt, error)

	// ListByOrder returns all attempts for an order, oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]*Attempt, error)

	// ListExpired returns non-terminal attempts whose deadline has passed.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Attempt, error)
}
