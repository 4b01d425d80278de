package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler runs one deferred callback per attempt. Scheduling again for the
// same attempt replaces the pending callback, so an attempt never has two
// polls in flight.
type Scheduler interface {
	Schedule(id uuid.UUID, delay time.Duration, fn func())
	Cancel(id uuid.UUID)
	Stop()
}

// TimerScheduler is the production Scheduler, backed by time.AfterFunc.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	stopped bool
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[uuid.UUID]*time.Timer)}
}

func (s *TimerScheduler) Schedule(id uuid.UUID, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		fn()
	})
}

func (s *TimerScheduler) Cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Stop cancels every pending callback and rejects new ones.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
