// Package clock drives session ticks and deferred callbacks.
//
// Every tick source and every scheduled callback carries the epoch it was
// created under. Stopping or cancelling bumps the epoch, so a callback that
// was already in flight can tell it is stale and do nothing.
package clock

import (
	"sync"
	"time"

	clk "github.com/benbjohnson/clock"
)

// Real returns the wall clock
func Real() clk.Clock {
	return clk.New()
}

// SessionClock runs at most one periodic tick source at a time
type SessionClock struct {
	clock    clk.Clock
	interval time.Duration

	mu      sync.Mutex
	epoch   uint64
	ticker  *clk.Ticker
	stop    chan struct{}
	running bool
}

// NewSessionClock creates a stopped clock ticking every interval
func NewSessionClock(c clk.Clock, interval time.Duration) *SessionClock {
	if c == nil {
		c = clk.New()
	}
	return &SessionClock{
		clock:    c,
		interval: interval,
	}
}

// Start begins ticking, calling fn with the epoch of this run. A clock that
// is already running is stopped first, so only one tick source ever exists.
func (c *SessionClock) Start(fn func(epoch uint64)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	c.epoch++
	c.ticker = c.clock.Ticker(c.interval)
	c.stop = make(chan struct{})
	c.running = true

	go run(c.ticker, c.stop, c.epoch, fn)

	return c.epoch
}

// Stop halts ticking. It is safe to call on a stopped clock.
func (c *SessionClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *SessionClock) stopLocked() {
	if !c.running {
		return
	}
	c.ticker.Stop()
	close(c.stop)
	c.ticker = nil
	c.stop = nil
	c.running = false
	c.epoch++
}

// Running reports whether a tick source is active
func (c *SessionClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Epoch returns the current generation; ticks from other epochs are stale
func (c *SessionClock) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Interval returns the tick period
func (c *SessionClock) Interval() time.Duration {
	return c.interval
}

func run(t *clk.Ticker, stop <-chan struct{}, epoch uint64, fn func(uint64)) {
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			// A tick and a stop may be ready together
			select {
			case <-stop:
				return
			default:
			}
			fn(epoch)
		}
	}
}
