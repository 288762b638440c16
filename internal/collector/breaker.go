package collector

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of a provider circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while a provider's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker skips a provider after maxFailures consecutive failures until
// resetTimeout has passed, then lets one probe call through.
type Breaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	openedAt     time.Time
	now          func() time.Time

	OnStateChange func(from, to BreakerState)
}

func NewBreaker(maxFailures int, resetTimeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// Allow reports whether a call may proceed, moving Open to HalfOpen once
// the reset timeout has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.transition(BreakerHalfOpen)
	}
	return nil
}

// Record feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != BreakerClosed {
			b.transition(BreakerClosed)
		}
		b.failures = 0
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.transition(BreakerOpen)
		}
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
