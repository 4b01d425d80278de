package events_test

import (
	"testing"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/domain/attempt"
	"github.com/DTBbuilds/smartduka-payments/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(id uuid.UUID, phase attempt.Phase) events.PhaseChange {
	return events.PhaseChange{
		AttemptID:  id,
		OrderID:    "order-1",
		Phase:      phase,
		Status:     phase.ToStatus(),
		Terminal:   phase.IsTerminal(),
		OccurredAt: time.Now(),
	}
}

func TestBus_SubscribePerAttempt(t *testing.T) {
	bus := events.NewBus()
	id := uuid.New()
	other := uuid.New()

	var got []events.PhaseChange
	bus.Subscribe(id, func(c events.PhaseChange) { got = append(got, c) })

	bus.Publish(change(id, attempt.PhaseAwaitingAuthorization))
	bus.Publish(change(other, attempt.PhaseAwaitingAuthorization))

	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].AttemptID)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := events.NewBus()

	var count int
	bus.SubscribeAll(func(events.PhaseChange) { count++ })

	bus.Publish(change(uuid.New(), attempt.PhaseAwaitingAuthorization))
	bus.Publish(change(uuid.New(), attempt.PhaseProcessing))
	assert.Equal(t, 2, count)
}

func TestBus_TerminalPublishedOnce(t *testing.T) {
	bus := events.NewBus()
	id := uuid.New()

	var phases []attempt.Phase
	bus.SubscribeAll(func(c events.PhaseChange) { phases = append(phases, c.Phase) })

	bus.Publish(change(id, attempt.PhaseVerifying))
	bus.Publish(change(id, attempt.PhaseSucceeded))
	// A duplicate terminal poll must not produce a second downstream event.
	bus.Publish(change(id, attempt.PhaseSucceeded))
	bus.Publish(change(id, attempt.PhaseFailed))

	assert.Equal(t, []attempt.Phase{attempt.PhaseVerifying, attempt.PhaseSucceeded}, phases)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus()
	id := uuid.New()

	var count int
	sub := bus.Subscribe(id, func(events.PhaseChange) { count++ })
	bus.Publish(change(id, attempt.PhaseAwaitingAuthorization))
	bus.Unsubscribe(id, sub)
	bus.Publish(change(id, attempt.PhaseProcessing))

	assert.Equal(t, 1, count)
}

func TestBus_UnsubscribeAll(t *testing.T) {
	bus := events.NewBus()

	var count int
	sub := bus.SubscribeAll(func(events.PhaseChange) { count++ })
	bus.Publish(change(uuid.New(), attempt.PhaseProcessing))
	bus.UnsubscribeAll(sub)
	bus.Publish(change(uuid.New(), attempt.PhaseProcessing))

	assert.Equal(t, 1, count)
}

func TestBus_ForgetReleasesDedupe(t *testing.T) {
	bus := events.NewBus()
	id := uuid.New()

	var count int
	bus.SubscribeAll(func(events.PhaseChange) { count++ })

	bus.Publish(change(id, attempt.PhaseSucceeded))
	bus.Forget(id)
	bus.Publish(change(id, attempt.PhaseSucceeded))

	assert.Equal(t, 2, count)
}
