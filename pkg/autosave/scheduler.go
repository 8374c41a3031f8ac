// Package autosave coalesces bursts of edits into a single delayed write.
package autosave

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period after the last edit before a write fires.
const DefaultDelay = time.Second

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc starts a timer that calls f once d has elapsed.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type pending struct {
	timer Timer
	write func()
	gen   uint64
}

// Scheduler keeps at most one pending write per key. Scheduling a key again
// before its quiet period is over replaces the pending write and restarts
// the timer, so only the latest write for a key ever runs.
type Scheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	after   AfterFunc
	pending map[string]*pending
	gen     uint64
}

func NewScheduler(delay time.Duration) *Scheduler {
	return NewSchedulerWithTimer(delay, realAfterFunc)
}

// NewSchedulerWithTimer lets tests drive time by hand.
func NewSchedulerWithTimer(delay time.Duration, after AfterFunc) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		delay:   delay,
		after:   after,
		pending: make(map[string]*pending),
	}
}

// Schedule (re)starts the quiet period for key with write as its payload.
func (s *Scheduler) Schedule(key string, write func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
	}
	s.gen++
	gen := s.gen
	p := &pending{write: write, gen: gen}
	p.timer = s.after(s.delay, func() { s.fire(key, gen) })
	s.pending[key] = p
}

// fire runs the write for key if it is still the one that was scheduled
// with gen. A superseded timer that could not be stopped in time is a no-op.
func (s *Scheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	p, ok := s.pending[key]
	if !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	p.write()
}

// Pending reports whether key has a write waiting.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Cancel drops the pending write for key, if any.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
}

// Flush runs every pending write now, in no particular order.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	writes := make([]func(), 0, len(s.pending))
	for key, p := range s.pending {
		p.timer.Stop()
		writes = append(writes, p.write)
		delete(s.pending, key)
	}
	s.mu.Unlock()

	for _, w := range writes {
		w()
	}
}

// Stop drops every pending write without running it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
	}
}
