// Package debounce delays propagation of a rapidly changing value until it
// settles.
package debounce

import (
	"sync"
	"time"
)

// Scheduler delivers the most recently scheduled value once no new value
// arrived for the configured delay. Instances are independent of each other.
type Scheduler[T any] struct {
	delay  time.Duration
	onFire func(T)

	mu      sync.Mutex
	timer   *time.Timer
	value   T
	gen     uint64 // incremented on every schedule, stale timers compare against it
	pending bool
	stopped bool
}

// New creates a scheduler calling onFire after delay of quiescence.
func New[T any](delay time.Duration, onFire func(T)) *Scheduler[T] {
	if delay < 0 {
		delay = 0
	}
	return &Scheduler[T]{delay: delay, onFire: onFire}
}

// Delay returns configured quiet period.
func (s *Scheduler[T]) Delay() time.Duration {
	return s.delay
}

// Schedule cancels any pending fire and arms a new one for v.
func (s *Scheduler[T]) Schedule(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	s.value = v
	s.pending = true

	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

// Pending reports whether a fire is armed.
func (s *Scheduler[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Flush fires pending value immediately. Returns false if nothing was pending.
func (s *Scheduler[T]) Flush() bool {
	s.mu.Lock()
	if s.stopped || !s.pending {
		s.mu.Unlock()
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	v := s.take()
	s.mu.Unlock()

	s.onFire(v)
	return true
}

// Stop cancels pending fire without invoking callback. Scheduler cannot be
// used after that.
func (s *Scheduler[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.stopped = true
	s.pending = false
	var zero T
	s.value = zero
}

func (s *Scheduler[T]) fire(gen uint64) {
	s.mu.Lock()
	// timer.Stop cannot recall callback which already started
	if s.stopped || gen != s.gen || !s.pending {
		s.mu.Unlock()
		return
	}
	v := s.take()
	s.mu.Unlock()

	s.onFire(v)
}

// take must be called with lock held.
func (s *Scheduler[T]) take() T {
	v := s.value
	var zero T
	s.value = zero
	s.pending = false
	s.timer = nil
	return v
}
