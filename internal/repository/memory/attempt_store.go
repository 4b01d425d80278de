// Package memory holds the in-memory attempt store used by tests and
// single-node development setups. It enforces the same invariants as the
// PostgreSQL store: one active attempt per order, version-checked updates,
// terminal immutability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/domain/attempt"
	domainErrors "github.com/DTBbuilds/smartduka-payments/internal/domain/errors"
	"github.com/google/uuid"
)

type AttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*attempt.Attempt
	byOrder  map[string][]uuid.UUID
	active   map[string]uuid.UUID // orderID -> non-terminal attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[uuid.UUID]*attempt.Attempt),
		byOrder:  make(map[string][]uuid.UUID),
		active:   make(map[string]uuid.UUID),
	}
}

func (s *AttemptStore) Create(ctx context.Context, a *attempt.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.active[a.OrderID]; busy {
		return domainErrors.ErrActiveAttemptExists
	}
	s.attempts[a.ID] = a.Clone()
	s.byOrder[a.OrderID] = append(s.byOrder[a.OrderID], a.ID)
	if !a.IsTerminal() {
		s.active[a.OrderID] = a.ID
	}
	return nil
}

func (s *AttemptStore) GetByID(ctx context.Context, id uuid.UUID) (*attempt.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return nil, domainErrors.ErrAttemptNotFound
	}
	return a.Clone(), nil
}

func (s *AttemptStore) GetActiveForOrder(ctx context.Context, orderID string) (*attempt.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.active[orderID]
	if !ok {
		return nil, domainErrors.ErrAttemptNotFound
	}
	return s.attempts[id].Clone(), nil
}

func (s *AttemptStore) UpdatePhase(ctx context.Context, id uuid.UUID, expectedVersion int, upd attempt.Update) (*attempt.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return nil, domainErrors.ErrAttemptNotFound
	}
	if a.IsTerminal() {
		return nil, domainErrors.ErrTerminalAttempt
	}
	if a.Version != expectedVersion {
		return nil, domainErrors.ErrVersionConflict
	}

	next := a.Clone()
	if err := next.Apply(upd, time.Now()); err != nil {
		return nil, err
	}
	s.attempts[id] = next
	if next.IsTerminal() {
		delete(s.active, next.OrderID)
	}
	return next.Clone(), nil
}

func (s *AttemptStore) ListByOrder(ctx context.Context, orderID string) ([]*attempt.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byOrder[orderID]
	result := make([]*attempt.Attempt, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.attempts[id].Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AttemptNumber < result[j].AttemptNumber
	})
	return result, nil
}

func (s *AttemptStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*attempt.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*attempt.Attempt
	for _, id := range s.active {
		a := s.attempts[id]
		if a.Expired(now) {
			result = append(result, a.Clone())
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}
