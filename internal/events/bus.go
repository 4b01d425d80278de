// Package events carries phase-change notifications from the orchestrator to
// the rest of the platform (UI pollers, audit log, webhook bridge). It is the
// only surface those consumers may depend on.
package events

import (
	"sync"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/domain/attempt"
	"github.com/google/uuid"
)

// PhaseChange describes one attempt transition.
type PhaseChange struct {
	AttemptID       uuid.UUID
	OrderID         string
	Phase           attempt.Phase
	Status          attempt.Status
	ProgressPercent int
	EtaSeconds      int
	Terminal        bool
	ResultCategory  string
	OccurredAt      time.Time
}

// Handler receives phase changes. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(PhaseChange)

// Subscription identifies one registered handler for later removal.
type Subscription int

// Bus is an in-process fan-out of phase changes. Publishing a terminal
// change for an attempt that already got one is swallowed, so duplicate
// terminal polls never produce duplicate downstream side effects.
type Bus struct {
	mu         sync.RWMutex
	nextSub    Subscription
	byAttempt  map[uuid.UUID]map[Subscription]Handler
	global     map[Subscription]Handler
	terminated map[uuid.UUID]attempt.Phase
}

func NewBus() *Bus {
	return &Bus{
		byAttempt:  make(map[uuid.UUID]map[Subscription]Handler),
		global:     make(map[Subscription]Handler),
		terminated: make(map[uuid.UUID]attempt.Phase),
	}
}

// Subscribe registers a handler for one attempt's changes.
func (b *Bus) Subscribe(attemptID uuid.UUID, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	subs, ok := b.byAttempt[attemptID]
	if !ok {
		subs = make(map[Subscription]Handler)
		b.byAttempt[attemptID] = subs
	}
	subs[b.nextSub] = h
	return b.nextSub
}

// SubscribeAll registers a handler for every attempt's changes (audit log,
// webhook bridge).
func (b *Bus) SubscribeAll(h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	b.global[b.nextSub] = h
	return b.nextSub
}

// Unsubscribe removes a per-attempt handler.
func (b *Bus) Unsubscribe(attemptID uuid.UUID, sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.byAttempt[attemptID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.byAttempt, attemptID)
		}
	}
}

// UnsubscribeAll removes a global handler.
func (b *Bus) UnsubscribeAll(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.global, sub)
}

// Publish fans the change out to global and per-attempt handlers. A second
// terminal change for the same attempt is dropped.
func (b *Bus) Publish(change PhaseChange) {
	b.mu.Lock()
	if _, done := b.terminated[change.AttemptID]; done {
		b.mu.Unlock()
		return
	}
	if change.Terminal {
		b.terminated[change.AttemptID] = change.Phase
	}
	handlers := make([]Handler, 0, len(b.global)+len(b.byAttempt[change.AttemptID]))
	for _, h := range b.global {
		handlers = append(handlers, h)
	}
	for _, h := range b.byAttempt[change.AttemptID] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(change)
	}
}

// Forget releases the terminal-dedupe record and per-attempt handlers for an
// attempt, once consumers no longer care about it.
func (b *Bus) Forget(attemptID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.terminated, attemptID)
	delete(b.byAttempt, attemptID)
}
