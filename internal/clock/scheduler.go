package clock

import (
	"sync"
	"time"

	clk "github.com/benbjohnson/clock"
)

// Scheduler runs single-shot deferred callbacks that can all be cancelled
// at once
type Scheduler struct {
	clock clk.Clock

	mu      sync.Mutex
	epoch   uint64
	nextID  uint64
	pending map[uint64]*clk.Timer
}

// NewScheduler creates a scheduler on the given clock
func NewScheduler(c clk.Clock) *Scheduler {
	if c == nil {
		c = clk.New()
	}
	return &Scheduler{
		clock:   c,
		pending: make(map[uint64]*clk.Timer),
	}
}

// After calls fn once d has elapsed, unless Cancel is called first. The
// callback receives the epoch it was scheduled under.
func (s *Scheduler) After(d time.Duration, fn func(epoch uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	epoch := s.epoch

	s.pending[id] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.pending[id]
		delete(s.pending, id)
		current := s.epoch
		s.mu.Unlock()

		if !live || current != epoch {
			return
		}
		fn(epoch)
	})
}

// Cancel stops every pending callback and invalidates any already firing
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	s.epoch++
}

// Pending returns the number of callbacks waiting to fire
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Epoch returns the current generation
func (s *Scheduler) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}
