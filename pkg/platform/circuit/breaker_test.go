package circuit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("ledger", WithFailureThreshold(3))

	assert.False(t, b.Failure())
	assert.False(t, b.Failure())
	assert.True(t, b.Failure())
	assert.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())
	assert.False(t, b.Allow())

	assert.False(t, b.Failure(), "already open")
}

func TestSuccessBreaksTheFailureRun(t *testing.T) {
	b := New("ledger", WithFailureThreshold(2))
	b.Failure()
	assert.False(t, b.Success())
	b.Failure()
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenAdmitsOneProbe(t *testing.T) {
	clock := newClock()
	b := New("ledger", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(clock.now))

	require.True(t, b.Failure())
	clock.advance(9 * time.Second)
	assert.False(t, b.Allow(), "still cooling down")

	clock.advance(time.Second)
	assert.True(t, b.Allow(), "first probe")
	assert.Equal(t, HalfOpen, b.State())
	assert.False(t, b.Allow(), "probe already in flight")

	assert.True(t, b.Success())
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())
}

func TestFailedProbeReopens(t *testing.T) {
	clock := newClock()
	b := New("ledger", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(clock.now))

	b.Failure()
	clock.advance(10 * time.Second)
	require.True(t, b.Allow())
	assert.True(t, b.Failure())
	assert.True(t, b.IsOpen())

	clock.advance(5 * time.Second)
	assert.False(t, b.Allow(), "cooldown restarts from the failed probe")
	clock.advance(5 * time.Second)
	assert.True(t, b.Allow())
}

func TestSuccessThresholdNeedsSeveralProbes(t *testing.T) {
	clock := newClock()
	b := New("ledger", WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Second), WithClock(clock.now))

	b.Failure()
	clock.advance(time.Second)
	require.True(t, b.Allow())
	assert.False(t, b.Success())
	assert.Equal(t, HalfOpen, b.State())

	require.True(t, b.Allow())
	assert.True(t, b.Success())
	assert.Equal(t, Closed, b.State())
}

func TestConcurrentProbeIsExclusive(t *testing.T) {
	clock := newClock()
	b := New("ledger", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(clock.now))
	b.Failure()
	clock.advance(time.Second)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestReset(t *testing.T) {
	b := New("ledger", WithFailureThreshold(1))
	b.Failure()
	b.Reset()
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())
}
