// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package breaker guards route dispatch: a route whose handler keeps
// failing trips open and fails fast with 503 instead of burning a
// request's full timeout on every call.
package breaker

import (
	"sync"
	"time"

	"github.com/foxwire/emberhttp/pkg/emberrors"
)

// ErrCircuitOpen is returned when the circuit breaker is open. It wraps
// emberrors.ErrCircuitOpen so conn.synthesize can map it to a 503 response
// without this package needing to know about HTTP status codes.
var ErrCircuitOpen = emberrors.ErrCircuitOpen

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration. A request's own dispatch
// deadline already bounds how long fn may run; Config has no timeout of
// its own.
type Config struct {
	// MaxFailures is the number of failures before opening the circuit.
	MaxFailures int
	// ResetTimeout is how long to wait in Open state before transitioning to HalfOpen.
	ResetTimeout time.Duration
	// SuccessThreshold is the number of consecutive successes in HalfOpen before closing.
	SuccessThreshold int
}

// CircuitBreaker guards a single route's dispatch calls.
type CircuitBreaker struct {
	mu              sync.RWMutex
	config          Config
	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time
	onStateChange   func(from, to State)
}

// New creates a new circuit breaker.
func New(config Config) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}

	return &CircuitBreaker{
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Call runs fn as one route dispatch attempt if the circuit is closed
// or half-open, recording the outcome against the failure/success
// counters that drive its state transitions.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()

	cb.afterCall(err)
	return err
}

// beforeCall checks if the call is allowed.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		// Check if we should transition to HalfOpen
		if time.Since(cb.lastStateChange) > cb.config.ResetTimeout {
			cb.setState(StateHalfOpen)
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		// HalfOpen admits every call; SuccessThreshold consecutive
		// successes close the circuit and any failure reopens it.
		return nil

	case StateClosed:
		return nil

	default:
		return ErrCircuitOpen
	}
}

// afterCall records the result of the call.
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

// onFailure handles a failed call.
func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.successes = 0
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}

	case StateHalfOpen:
		// Any failure in HalfOpen immediately opens the circuit
		cb.setState(StateOpen)
	}
}

// onSuccess handles a successful call.
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

// setState changes the circuit breaker state.
func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = time.Now()

	// Reset counters on state change
	if newState == StateClosed {
		cb.failures = 0
		cb.successes = 0
	} else if newState == StateHalfOpen {
		cb.successes = 0
	}

	// Notify state change
	if cb.onStateChange != nil {
		go cb.onStateChange(oldState, newState)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// OnStateChange registers a callback for state changes.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() (state State, failures, successes int) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state, cb.failures, cb.successes
}

// PerRoute lazily creates one CircuitBreaker per route pattern, so a
// failing route trips independently of its neighbors.
type PerRoute struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]*CircuitBreaker
	onTrip   func(route string, from, to State)
}

// NewPerRoute returns a PerRoute that builds breakers with config on
// first use.
func NewPerRoute(config Config) *PerRoute {
	return &PerRoute{config: config, breakers: make(map[string]*CircuitBreaker)}
}

// OnTrip registers fn to be called, from CircuitBreaker's own
// state-change goroutine, whenever any route's breaker changes state.
// The supervisor wires this to its metrics collectors when both a
// PerRoute and a Metrics are configured. Only one callback is kept;
// calling OnTrip again replaces it.
func (p *PerRoute) OnTrip(fn func(route string, from, to State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrip = fn
}

// For returns the breaker for route, creating it on first access and
// hooking it to the PerRoute's OnTrip callback. The callback is looked up
// at each state change, so one registered after the breaker was created
// is still called.
func (p *PerRoute) For(route string) *CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb, ok := p.breakers[route]
	if !ok {
		cb = New(p.config)
		cb.OnStateChange(func(from, to State) {
			p.mu.Lock()
			onTrip := p.onTrip
			p.mu.Unlock()
			if onTrip != nil {
				onTrip(route, from, to)
			}
		})
		p.breakers[route] = cb
	}
	return cb
}
