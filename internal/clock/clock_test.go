package clock

import (
	"sync/atomic"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const interval = 100 * time.Millisecond

func recv(t *testing.T, ch <-chan uint64) uint64 {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no tick delivered")
		return 0
	}
}

func TestSessionClockTicks(t *testing.T) {
	mock := clk.NewMock()
	c := NewSessionClock(mock, interval)
	ticks := make(chan uint64, 16)

	epoch := c.Start(func(e uint64) { ticks <- e })
	assert.True(t, c.Running())
	assert.Equal(t, epoch, c.Epoch())

	for i := 0; i < 3; i++ {
		mock.Add(interval)
		assert.Equal(t, epoch, recv(t, ticks))
	}
}

func TestSessionClockStop(t *testing.T) {
	mock := clk.NewMock()
	c := NewSessionClock(mock, interval)
	ticks := make(chan uint64, 16)

	epoch := c.Start(func(e uint64) { ticks <- e })
	c.Stop()
	c.Stop()

	assert.False(t, c.Running())
	assert.NotEqual(t, epoch, c.Epoch())

	mock.Add(5 * interval)
	assert.Never(t, func() bool { return len(ticks) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSessionClockRestartKeepsOneSource(t *testing.T) {
	mock := clk.NewMock()
	c := NewSessionClock(mock, interval)
	var count atomic.Int32
	ticks := make(chan uint64, 16)

	first := c.Start(func(e uint64) { count.Add(1); ticks <- e })
	second := c.Start(func(e uint64) { count.Add(1); ticks <- e })
	require.NotEqual(t, first, second)

	mock.Add(interval)
	assert.Equal(t, second, recv(t, ticks))
	assert.Never(t, func() bool { return count.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSchedulerFires(t *testing.T) {
	mock := clk.NewMock()
	s := NewScheduler(mock)
	fired := make(chan uint64, 1)

	s.After(time.Second, func(e uint64) { fired <- e })
	assert.Equal(t, 1, s.Pending())

	mock.Add(999 * time.Millisecond)
	assert.Empty(t, fired)

	mock.Add(time.Millisecond)
	assert.Equal(t, s.Epoch(), recv(t, fired))
	require.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerCancel(t *testing.T) {
	mock := clk.NewMock()
	s := NewScheduler(mock)
	var calls atomic.Int32

	s.After(time.Second, func(uint64) { calls.Add(1) })
	s.After(2*time.Second, func(uint64) { calls.Add(1) })
	before := s.Epoch()

	s.Cancel()
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, before+1, s.Epoch())

	mock.Add(3 * time.Second)
	assert.Never(t, func() bool { return calls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	// Scheduling keeps working after a cancel
	fired := make(chan uint64, 1)
	s.After(time.Second, func(e uint64) { fired <- e })
	mock.Add(time.Second)
	assert.Equal(t, before+1, recv(t, fired))
}
