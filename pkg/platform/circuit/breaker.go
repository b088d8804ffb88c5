// Package circuit provides a small circuit breaker for calls to remote
// dependencies that have a local fallback.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker's position.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open refuses calls until the cooldown has passed.
	Open
	// HalfOpen lets a single probe through at a time.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 1
	defaultCooldown         = 30 * time.Second
)

// Breaker opens after a run of consecutive failures. Once the cooldown has
// passed it moves to half-open and admits one probe at a time; enough
// successful probes close it, a failed probe opens it again.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many successful probes close the circuit.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long an open circuit refuses calls.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New returns a closed breaker. Defaults: 5 failures, 1 success, 30s cooldown.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		cooldown:         defaultCooldown,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether calls are currently being refused outright.
func (b *Breaker) IsOpen() bool {
	return b.State() == Open
}

// Allow reports whether the caller may make the remote call. Every true
// answer must be followed by exactly one Success or Failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = HalfOpen
		b.successes = 0
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// Failure records a failed call and reports whether it opened the circuit.
func (b *Breaker) Failure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures < b.failureThreshold {
			return false
		}
	case HalfOpen:
		b.probing = false
	default:
		return false
	}
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
	return true
}

// Success records a successful call and reports whether it closed the
// circuit.
func (b *Breaker) Success() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
		return false
	case HalfOpen:
		b.probing = false
		b.successes++
		if b.successes < b.successThreshold {
			return false
		}
		b.state = Closed
		b.failures = 0
		b.successes = 0
		return true
	default:
		return false
	}
}

// Reset closes the circuit and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.successes = 0
	b.probing = false
	b.openedAt = time.Time{}
}
