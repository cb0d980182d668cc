// Package circuitbreaker gates repeated calls against a single
// failing endpoint, such as the cluster's control plane.
//
// The breaker counts consecutive failures. Once the count reaches the
// threshold the circuit opens and callers should stop calling; after
// the cooldown one trial call is let through, and its outcome decides
// whether the circuit closes again or reopens for another cooldown.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the circuit's current disposition.
type State int

const (
	Closed   State = iota // calls flow normally
	Open                  // endpoint presumed down, calls blocked
	HalfOpen              // cooldown elapsed, one trial call in flight
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config tunes a breaker. The zero value uses the defaults the
// heartbeat loop runs with.
type Config struct {
	Threshold int           // consecutive failures before the circuit opens (default: 5)
	Cooldown  time.Duration // how long the circuit stays open before a trial call (default: 30s)
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Breaker guards one endpoint. Safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	config   Config
	state    State
	failures int       // consecutive failures so far
	openedAt time.Time // when the circuit last opened
}

// New creates a closed breaker. Zero config fields use defaults.
func New(cfg Config) *Breaker {
	return &Breaker{config: cfg.withDefaults()}
}

// Allow reports whether a call should be attempted now. While open it
// returns false until the cooldown has elapsed, then moves to
// half-open and lets the trial call through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if time.Since(b.openedAt) <= b.config.Cooldown {
			return false
		}
		b.state = HalfOpen
	}
	return true
}

// RecordSuccess closes the circuit and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failures = 0
}

// RecordFailure counts one failed call. A failure during the
// half-open trial reopens immediately; in the closed state the
// circuit opens once the consecutive-failure threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == HalfOpen || b.failures >= b.config.Threshold {
		b.state = Open
		b.openedAt = time.Now()
	}
}

// State returns the circuit's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset force-closes the circuit, forgetting past failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
}
