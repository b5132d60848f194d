package apiclient

import (
	"sync"
	"time"
)

// BreakerState is the state of the upstream circuit breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // requests pass through
	BreakerOpen                         // requests fail fast
	BreakerHalfOpen                     // a limited number of trial requests pass
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker trips after a run of consecutive transient upstream failures and
// makes every worker fail fast until the reset timeout elapses. One breaker
// is shared by all workers of a Client.
type Breaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	successes    int
	threshold    int
	resetTimeout time.Duration
	halfOpenMax  int
	trials       int // half-open requests in flight
	openedAt     time.Time
	now          func() time.Time
}

// NewBreaker returns a closed breaker. threshold <= 0 disables tripping.
func NewBreaker(threshold int, resetTimeout time.Duration, now func() time.Time) *Breaker {
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		halfOpenMax:  1,
		now:          now,
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

// Allow reports whether a request may be sent. In half-open at most
// halfOpenMax requests are admitted until one of them reports back through
// Success, Failure or Release.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	switch b.state {
	case BreakerOpen:
		return false
	case BreakerHalfOpen:
		if b.trials >= b.halfOpenMax {
			return false
		}
		b.trials++
	}
	return true
}

// Release returns an admitted request's slot without a verdict, for
// requests abandoned before the upstream answered.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseTrial()
}

// Success records an answered request. Permanent rejections (4xx, parse
// errors) count as answered: the upstream is reachable.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseTrial()
	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.halfOpenMax {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	case BreakerClosed:
		b.failures = 0
	}
}

// Failure records a transient failure.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseTrial()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.threshold > 0 && b.failures >= b.threshold {
			b.state = BreakerOpen
			b.openedAt = b.now()
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.successes = 0
	}
}

// must hold mu
func (b *Breaker) maybeHalfOpen() {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		b.state = BreakerHalfOpen
		b.successes = 0
		b.trials = 0
	}
}

// must hold mu
func (b *Breaker) releaseTrial() {
	if b.state == BreakerHalfOpen && b.trials > 0 {
		b.trials--
	}
}
