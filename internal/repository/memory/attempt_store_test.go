package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/domain/attempt"
	domainErrors "github.com/DTBbuilds/smartduka-payments/internal/domain/errors"
	"github.com/DTBbuilds/smartduka-payments/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredAttempt(t *testing.T, store *memory.AttemptStore, orderID string, number int) *attempt.Attempt {
	t.Helper()
	a, err := attempt.New(orderID, number, attempt.Amount{ValueCents: 5000, Currency: "KES"}, "0712345678", time.Now(), 2*time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), a))
	return a
}

func finalize(t *testing.T, store *memory.AttemptStore, a *attempt.Attempt, phase attempt.Phase) *attempt.Attempt {
	t.Helper()
	updated, err := store.UpdatePhase(context.Background(), a.ID, a.Version, attempt.Update{Phase: phase})
	require.NoError(t, err)
	return updated
}

func TestCreateAndGet(t *testing.T) {
	store := memory.NewAttemptStore()
	a := newStoredAttempt(t, store, "order-1", 1)

	got, err := store.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, attempt.PhaseInitiating, got.Phase)
}

func TestGetByID_NotFound(t *testing.T) {
	store := memory.NewAttemptStore()
	_, err := store.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrAttemptNotFound)
}

func TestCreate_SecondActiveRejected(t *testing.T) {
	store := memory.NewAttemptStore()
	newStoredAttempt(t, store, "order-1", 1)

	b, err := attempt.New("order-1", 2, attempt.Amount{ValueCents: 5000, Currency: "KES"}, "0712345678", time.Now(), time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Create(context.Background(), b), domainErrors.ErrActiveAttemptExists)
}

func TestCreate_AllowedAfterTerminal(t *testing.T) {
	store := memory.NewAttemptStore()
	a := newStoredAttempt(t, store, "order-1", 1)
	finalize(t, store, a, attempt.PhaseFailed)

	b, err := attempt.New("order-1", 2, attempt.Amount{ValueCents: 5000, Currency: "KES"}, "0712345678", time.Now(), time.Minute)
	require.NoError(t, err)
	assert.NoError(t, store.Create(context.Background(), b))
}

func TestGetActiveForOrder(t *testing.T) {
	store := memory.NewAttemptStore()
	a := newStoredAttempt(t, store, "order-1", 1)

	got, err := store.GetActiveForOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	finalize(t, store, a, attempt.PhaseCancelled)
	_, err = store.GetActiveForOrder(context.Background(), "order-1")
	assert.ErrorIs(t, err, domainErrors.ErrAttemptNotFound)
}

func TestUpdatePhase_VersionConflict(t *testing.T) {
	store := memory.NewAttemptStore()
	a := newStoredAttempt(t, store, "order-1", 1)

	_, err := store.UpdatePhase(context.Background(), a.ID, a.Version, attempt.Update{Phase: attempt.PhaseAwaitingAuthorization})
	require.NoError(t, err)

	// A writer holding the stale version must lose.
	_, err = store.UpdatePhase(context.Background(), a.ID, a.Version, attempt.Update{Phase: attempt.PhaseFailed})
	assert.ErrorIs(t, err, domainErrors.ErrVersionConflict)
}

func TestUpdatePhase_TerminalImmutable(t *testing.T) {
	store := memory.NewAttemptStore()
	a := newStoredAttempt(t, store, "order-1", 1)
	updated := finalize(t, store, a, attempt.PhaseSucceeded)

	_, err := store.UpdatePhase(context.Background(), a.ID, updated.Version, attempt.Update{Phase: attempt.PhaseFailed})
	assert.ErrorIs(t, err, domainErrors.ErrTerminalAttempt)
}

func TestListByOrder_OldestFirst(t *testing.T) {
	store := memory.NewAttemptStore()
	a := newStoredAttempt(t, store, "order-1", 1)
	finalize(t, store, a, attempt.PhaseFailed)
	newStoredAttempt(t, store, "order-1", 2)
	newStoredAttempt(t, store, "order-2", 1)

	list, err := store.ListByOrder(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].AttemptNumber)
	assert.Equal(t, 2, list[1].AttemptNumber)
}

func TestListExpired(t *testing.T) {
	store := memory.NewAttemptStore()
	a := newStoredAttempt(t, store, "order-1", 1)
	newStoredAttempt(t, store, "order-2", 1)

	expired, err := store.ListExpired(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = store.ListExpired(context.Background(), time.Now().Add(3*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, expired, 2)

	// Terminal attempts never expire.
	finalize(t, store, a, attempt.PhaseSucceeded)
	expired, err = store.ListExpired(context.Background(), time.Now().Add(3*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := memory.NewAttemptStore()
	a := newStoredAttempt(t, store, "order-1", 1)

	got, err := store.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	got.Phase = attempt.PhaseSucceeded

	again, err := store.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.PhaseInitiating, again.Phase)
}
