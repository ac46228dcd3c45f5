// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package emberrors provides structured error handling for the server
// lifecycle, connection loop, and dispatch path.
package emberrors

import (
	"errors"
	"fmt"
)

// Sentinel error kinds the server's lifecycle and dispatch path return.
var (
	// ErrAlreadyListening is returned by Start when the supervisor is
	// already serving.
	ErrAlreadyListening = errors.New("server is already listening")

	// ErrDisconnected marks a graceful listener close: the accept loop
	// should drain in-flight connections and return, not propagate a
	// fatal error.
	ErrDisconnected = errors.New("listening socket disconnected")

	// ErrUnhandled indicates no route matched a request. The connection
	// loop maps this to HTTP 404.
	ErrUnhandled = errors.New("no route matched the request")

	// ErrHandlerTimeout indicates a handler exceeded its deadline. The
	// connection loop maps this to HTTP 500.
	ErrHandlerTimeout = errors.New("handler exceeded its deadline")

	// ErrCircuitOpen indicates a route's circuit breaker is open. The
	// connection loop maps this to HTTP 503.
	ErrCircuitOpen = errors.New("circuit breaker is open for this route")

	// ErrWaitCancelled is returned to a WaitUntilListening waiter whose
	// context was cancelled before the readiness gate opened.
	ErrWaitCancelled = errors.New("wait for listening cancelled")

	// ErrWaitTimeout is returned to a WaitUntilListening waiter whose
	// timeout elapsed before the readiness gate opened.
	ErrWaitTimeout = errors.New("wait for listening timed out")
)

// ServerError wraps an error with the operation and stage it occurred in,
// so logs can distinguish a bind failure from an in-flight connection
// error without string-matching messages.
type ServerError struct {
	Op    string // operation that failed, e.g. "bind", "accept", "dispatch"
	Stage string // lifecycle stage, e.g. "start", "connection", "upgrade"
	Err   error
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is/As see through it.
func (e *ServerError) Unwrap() error {
	return e.Err
}

// Wrap builds a ServerError, returning nil if err is nil.
func Wrap(stage, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ServerError{Op: op, Stage: stage, Err: err}
}
