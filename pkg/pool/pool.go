// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package pool is the server's socket pool: a long-lived task (Run) plus
// the ability to turn a raw listener into a stream of accepted
// connections (Accept). The supervisor treats this package purely
// through that contract and never reaches into its internals, running
// Run and the accept loop as the two concurrent children of Start.
//
// The pool drives inbound accept readiness: a ticking housekeeping loop
// plus a channel-based accept stream, with a Config carrying sane
// defaults, a Stats method, and a Close that is safe to call repeatedly.
package pool

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxwire/emberhttp/pkg/emberrors"
)

// Config configures the pool's polling cadence. The default is a
// polling pool with a 100ms poll interval.
type Config struct {
	// PollInterval is how often Run's housekeeping tick fires.
	PollInterval time.Duration
}

// DefaultConfig returns the pool's default configuration.
func DefaultConfig() Config {
	return Config{PollInterval: 100 * time.Millisecond}
}

// Pool is the async I/O driver. The zero value is not usable; use New.
type Pool struct {
	cfg Config

	mu        sync.Mutex
	closed    bool
	accepting int64 // atomic count of in-flight Accept streams, for Stats
}

// New creates a Pool with cfg; zero-value fields are filled from
// DefaultConfig.
func New(cfg Config) *Pool {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Pool{cfg: cfg}
}

// Run is the long-lived task the supervisor drives as one of Start's two
// children: a readiness loop that ticks at PollInterval until ctx is
// cancelled. In a reactor built over epoll/kqueue this is where readiness
// notifications would be multiplexed into wake-ups; the portable net
// package already does that multiplexing inside net.Listener.Accept and
// net.Conn.Read/Write, so here Run's job is bookkeeping and giving the
// supervisor a task to hold the "pool is alive" invariant on.
func (p *Pool) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Housekeeping tick: nothing to compact for a portable
			// driver, but this is the hook a future epoll/io_uring
			// backend would use to drain its readiness queue.
		}
	}
}

// Accepted is one value from the channel Accept returns: either a freshly
// accepted connection, or a terminal error. ErrDisconnected marks a
// graceful listener close; any other error is fatal, and is always the
// last value sent before the channel closes.
type Accepted struct {
	Conn net.Conn
	Err  error
}

// Accept wraps ln as an async socket, yielding a stream of accepted
// connections on the returned channel until ctx is cancelled, ln is
// closed, or Accept returns a non-ErrDisconnected error. The channel is
// closed after the final Accepted value is sent.
func (p *Pool) Accept(ctx context.Context, ln net.Listener) <-chan Accepted {
	atomic.AddInt64(&p.accepting, 1)
	out := make(chan Accepted)

	go func() {
		defer atomic.AddInt64(&p.accepting, -1)
		defer close(out)

		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if isClosedListenerError(err) {
					select {
					case out <- Accepted{Err: emberrors.ErrDisconnected}:
					case <-ctx.Done():
					}
					return
				}
				// Any other accept error is fatal: report it once and
				// stop, rather than spinning on a socket that may be
				// permanently broken.
				select {
				case out <- Accepted{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- Accepted{Conn: conn}:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	return out
}

// isClosedListenerError reports whether err is the error net.Listener.Accept
// returns after Close, across Go versions that spell it differently.
func isClosedListenerError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err != nil && opErr.Err.Error() == "use of closed network connection"
	}
	return false
}

// Stats reports the number of live Accept streams.
func (p *Pool) Stats() (acceptStreams int) {
	return int(atomic.LoadInt64(&p.accepting))
}

// Close marks the pool closed. It does not need to close any listener —
// ownership of the listening socket stays with the supervisor — but
// gives callers a single idempotent lifecycle hook to rely on.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
