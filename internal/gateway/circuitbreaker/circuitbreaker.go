// Package circuitbreaker tracks the health of each remote endpoint the gateway
// talks to and short-circuits calls to an endpoint that keeps failing.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of the circuit for one endpoint.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold         = 3
	defaultResetTimeout             = 30 * time.Second
	defaultHalfOpenSuccessThreshold = 1
)

// Config configures a CircuitBreaker. Zero values select the defaults.
type Config struct {
	FailureThreshold         int           // consecutive failures that open the circuit
	ResetTimeout             time.Duration // time spent Open before probing in HalfOpen
	HalfOpenSuccessThreshold int           // successes in HalfOpen that close the circuit
}

type endpointState struct {
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openUntil            time.Time
}

// CircuitBreaker is an in-memory breaker keyed by endpoint name.
// Safe for concurrent use.
type CircuitBreaker struct {
	mu        sync.Mutex
	endpoints map[string]*endpointState
	cfg       Config
	now       func() time.Time
}

// NewCircuitBreaker creates a CircuitBreaker, filling zero config fields with defaults.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.HalfOpenSuccessThreshold <= 0 {
		cfg.HalfOpenSuccessThreshold = defaultHalfOpenSuccessThreshold
	}
	return &CircuitBreaker{
		endpoints: make(map[string]*endpointState),
		cfg:       cfg,
		now:       time.Now,
	}
}

// getEndpointState must be called with mu held.
func (cb *CircuitBreaker) getEndpointState(endpoint string) *endpointState {
	es, ok := cb.endpoints[endpoint]
	if !ok {
		es = &endpointState{state: StateClosed}
		cb.endpoints[endpoint] = es
	}
	return es
}

// AllowRequest reports whether a call to endpoint may proceed.
// An Open circuit whose reset timeout has elapsed moves to HalfOpen.
func (cb *CircuitBreaker) AllowRequest(endpoint string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case StateOpen:
		if cb.now().After(es.openUntil) {
			es.state = StateHalfOpen
			es.consecutiveFailures = 0
			es.consecutiveSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordFailure records a failed call to endpoint.
func (cb *CircuitBreaker) RecordFailure(endpoint string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case StateClosed:
		es.consecutiveFailures++
		if es.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.open(es)
		}
	case StateHalfOpen:
		cb.open(es)
	case StateOpen:
		// already open; the reset deadline is not extended
	}
}

func (cb *CircuitBreaker) open(es *endpointState) {
	es.state = StateOpen
	es.consecutiveFailures = cb.cfg.FailureThreshold
	es.consecutiveSuccesses = 0
	es.openUntil = cb.now().Add(cb.cfg.ResetTimeout)
}

// RecordSuccess records a successful call to endpoint.
func (cb *CircuitBreaker) RecordSuccess(endpoint string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case StateClosed:
		es.consecutiveFailures = 0
	case StateHalfOpen:
		es.consecutiveSuccesses++
		if es.consecutiveSuccesses >= cb.cfg.HalfOpenSuccessThreshold {
			es.state = StateClosed
			es.consecutiveFailures = 0
			es.consecutiveSuccesses = 0
		}
	case StateOpen:
		// AllowRequest gating means this should not happen; ignore.
	}
}

// GetEndpointStatus returns the state and consecutive failure count of an
// endpoint without triggering the Open to HalfOpen transition.
func (cb *CircuitBreaker) GetEndpointStatus(endpoint string) (State, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	es, ok := cb.endpoints[endpoint]
	if !ok {
		return StateClosed, 0
	}
	return es.state, es.consecutiveFailures
}
