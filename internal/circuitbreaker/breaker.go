// Package circuitbreaker guards calls to flaky upstream data services. After
// a run of consecutive failures the breaker opens and callers skip the
// upstream entirely until a cooldown passes, then a half-open probe decides
// whether to close again.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripped, calls are skipped
	StateHalfOpen              // probing for recovery
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Options configure trip and recovery behavior.
type Options struct {
	// Name labels the guarded upstream in log output.
	Name string

	// FailureThreshold is the run of consecutive failures that opens the
	// breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// SuccessThreshold is the run of half-open successes needed to close.
	SuccessThreshold int

	// OnTrip is called once per trip, outside the breaker's lock.
	OnTrip func(name string)
}

// CircuitBreaker tracks consecutive outcomes of an upstream call site.
type CircuitBreaker struct {
	opts Options

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	lastTrip  time.Time
}

// New creates a CircuitBreaker, filling unset options with defaults.
func New(opts Options) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 2 * time.Minute
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 2
	}
	return &CircuitBreaker{opts: opts}
}

// Allow reports whether the caller should attempt the upstream call. While
// open it returns false until the cooldown elapses, then admits a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return true
	}
	if time.Since(cb.lastTrip) <= cb.opts.Cooldown {
		return false
	}
	cb.state = StateHalfOpen
	cb.successes = 0
	logrus.Infof("Circuit breaker %s half-open: probing recovery", cb.opts.Name)
	return true
}

// Success records a successful call, closing the breaker after enough
// half-open probes succeed.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.opts.SuccessThreshold {
			cb.state = StateClosed
			cb.successes = 0
			logrus.Infof("Circuit breaker %s closed: upstream recovered", cb.opts.Name)
		}
	}
}

// Failure records a failed call, tripping the breaker when the consecutive
// failure threshold is reached or immediately from half-open.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	trip := false
	if cb.state == StateHalfOpen {
		trip = true
	} else if cb.state == StateClosed {
		cb.failures++
		if cb.failures >= cb.opts.FailureThreshold {
			trip = true
		}
	}
	if trip {
		cb.state = StateOpen
		cb.failures = 0
		cb.successes = 0
		cb.lastTrip = time.Now()
	}
	cb.mu.Unlock()

	if trip {
		logrus.Warnf("Circuit breaker %s tripped", cb.opts.Name)
		if cb.opts.OnTrip != nil {
			go cb.opts.OnTrip(cb.opts.Name)
		}
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
}
