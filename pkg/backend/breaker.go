// Package backend talks to an Ollama-compatible completion service over
// HTTP. Every call is bounded by a hard timeout and accounted against one
// shared circuit breaker, so a dead or slow backend degrades to "no AI
// suggestions" instead of stalling the shell.
package backend

import (
	"sync"
	"time"
)

// Breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// Breaker is a consecutive-failure circuit breaker. Closed until threshold
// consecutive failures, then open: calls short-circuit until the cooldown
// elapses, after which exactly one probe is allowed. The probe's success
// closes the breaker; its failure reopens it and restarts the cooldown.
type Breaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	halfOpen    bool

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed, transitioning open to
// half-open when the cooldown has elapsed. While a half-open probe is in
// flight every other caller is refused.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.halfOpen {
		return false
	}
	if b.now().Sub(b.lastFailure) >= b.cooldown {
		b.halfOpen = true
		return true
	}
	return false
}

// Success records a successful call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.halfOpen = false
}

// Failure records a failed call. A failing half-open probe reopens the
// breaker and resets the cooldown clock.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	b.halfOpen = false
}

// State returns the current breaker state name for stats and logs.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.failures < b.threshold:
		return StateClosed
	case b.halfOpen:
		return StateHalfOpen
	default:
		return StateOpen
	}
}
