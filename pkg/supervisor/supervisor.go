// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package supervisor implements the server's single logical control
// point: it owns the router, the listening socket, and the readiness
// gate, and supervises the pool's housekeeping loop and the accept loop
// as two concurrent children of Start.
package supervisor

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foxwire/emberhttp/pkg/breaker"
	"github.com/foxwire/emberhttp/pkg/conn"
	"github.com/foxwire/emberhttp/pkg/emberrors"
	"github.com/foxwire/emberhttp/pkg/endpoint"
	"github.com/foxwire/emberhttp/pkg/handler"
	"github.com/foxwire/emberhttp/pkg/logging"
	"github.com/foxwire/emberhttp/pkg/metrics"
	"github.com/foxwire/emberhttp/pkg/pool"
	"github.com/foxwire/emberhttp/pkg/ratelimit"
	"github.com/foxwire/emberhttp/pkg/router"
	"github.com/foxwire/emberhttp/pkg/tracing"
)

// Server is the supervisor: a single logical control point owning the
// router, the listening socket, and the readiness gate. All fields that
// change after construction are only ever mutated from Start/Stop/
// AppendRoute, which the caller is expected to serialize (not called
// concurrently with each other); that is the "single-threaded logical
// entity" contract, kept here as a documented calling convention rather
// than enforced with internal locks, so the accept path stays lock-free
// within its own task.
type Server struct {
	Endpoint   endpoint.Endpoint
	Logger     logging.Logger
	Timeout    time.Duration
	PoolConfig pool.Config

	// Limiter, when set, bounds new-connection admission per peer
	// address.
	Limiter *ratelimit.Limiter

	// Breakers, when set, trips a per-route circuit open after repeated
	// dispatch failures.
	Breakers *breaker.PerRoute

	// Metrics, when set, records connection and request counters and
	// durations, rate-limited connections, and (with Breakers set)
	// per-route breaker state and trips. WebSocketFrames is not updated by
	// the server.
	Metrics *metrics.Metrics

	// Tracer, when set, wraps each dispatch in a span. A nil Tracer
	// dispatches untraced.
	Tracer *tracing.Tracer

	router *router.Router

	mu          sync.Mutex
	isListening bool
	listener    net.Listener
	waiters     map[*waiter]struct{}
	activeConns sync.WaitGroup

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// waiter is one pending WaitUntilListening call's release channel.
type waiter struct {
	ch chan struct{}
}

// New builds a Server bound to e, logging through logger (a line-buffered
// stderr printer if nil).
func New(e endpoint.Endpoint, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLinePrinter(nil)
	}
	return &Server{
		Endpoint:   e,
		Logger:     logger,
		Timeout:    15 * time.Second,
		PoolConfig: pool.DefaultConfig(),
		router:     router.New(),
		waiters:    make(map[*waiter]struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// AppendRoute appends a route to the ordered table. Safe to call before
// or during serving.
func (s *Server) AppendRoute(pattern string, h handler.Handler) {
	s.router.Append(pattern, h)
}

// IsListening reports whether the readiness gate is currently open.
func (s *Server) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isListening
}

// Start binds the endpoint, opens the readiness gate, and runs the pool's
// housekeeping loop and the accept loop as errgroup children, plus the
// Limiter's sweep loop when a Limiter is set. The first child to return
// an error cancels the others through the errgroup's context, and Start
// returns once all of them have finished.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isListening {
		s.mu.Unlock()
		return emberrors.Wrap("start", "listen", emberrors.ErrAlreadyListening)
	}
	ln, err := endpoint.Bind(s.Endpoint)
	if err != nil {
		s.mu.Unlock()
		return emberrors.Wrap("start", "bind", err)
	}
	s.listener = ln
	s.isListening = true
	s.releaseWaitersLocked()
	s.mu.Unlock()

	s.Logger.LogInfo(logging.StartupLine(s.Endpoint))

	if s.Breakers != nil && s.Metrics != nil {
		s.Breakers.OnTrip(func(route string, _, to breaker.State) {
			s.Metrics.CircuitBreakerState.WithLabelValues(route).Set(float64(to))
			if to == breaker.StateOpen {
				s.Metrics.CircuitBreakerTrips.WithLabelValues(route).Inc()
			}
		})
	}

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New(s.PoolConfig)
	g, gctx := errgroup.WithContext(gctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return s.acceptLoop(gctx, p, ln) })
	if s.Limiter != nil {
		g.Go(func() error { return s.Limiter.Run(gctx) })
	}

	err = g.Wait()
	s.mu.Lock()
	s.isListening = false
	s.mu.Unlock()

	if err != nil && !errors.Is(err, emberrors.ErrDisconnected) && !errors.Is(err, context.Canceled) {
		return emberrors.Wrap("start", "serve", err)
	}
	return nil
}

// acceptLoop drives pool.Accept, admits connections past the rate limiter
// if configured, and spawns one conn.Conn.Run task per accepted socket.
//
// Two distinct shutdown paths meet here, and they behave differently:
// a graceful Stop() closes the listener, which surfaces as
// emberrors.ErrDisconnected — in-flight connections are left to finish
// the request they're serving and are only waited on. Cancelling ctx
// (the context passed to Start) or a fatal accept error both mean the
// server task itself is being torn down: every registered connection's
// raw socket is force-closed so a task blocked in a socket read notices
// immediately, and only then does acceptLoop wait for those tasks to
// actually exit.
func (s *Server) acceptLoop(ctx context.Context, p *pool.Pool, ln net.Listener) error {
	accepted := p.Accept(ctx, ln)
	for {
		select {
		case <-ctx.Done():
			s.closeActiveConns()
			s.activeConns.Wait()
			return ctx.Err()
		case a, ok := <-accepted:
			if !ok {
				s.activeConns.Wait()
				return nil
			}
			if a.Err != nil {
				if errors.Is(a.Err, emberrors.ErrDisconnected) {
					// graceful stop(): let in-flight connections drain, then return.
					s.activeConns.Wait()
					return a.Err
				}
				// Any other accept error is fatal: cancel in-flight
				// connections rather than continuing to accept on a
				// socket that may be permanently broken.
				s.Logger.LogError(logging.ErrorLine("accept", a.Err.Error()))
				s.closeActiveConns()
				s.activeConns.Wait()
				return a.Err
			}
			if s.Limiter != nil && !s.Limiter.Allow(a.Conn.RemoteAddr()) {
				a.Conn.Close()
				if s.Metrics != nil {
					s.Metrics.RateLimitedConns.Inc()
				}
				continue
			}
			s.registerConn(a.Conn)
			s.activeConns.Add(1)
			go func() {
				defer s.activeConns.Done()
				defer s.unregisterConn(a.Conn)
				c := conn.New(a.Conn, s.Logger)
				c.Timeout = s.Timeout
				run := func() { c.Run(ctx, s.dispatcher()) }
				if s.Metrics != nil {
					s.Metrics.ObserveConnection(run)
					s.Metrics.ConnectionsTotal.WithLabelValues("closed").Inc()
				} else {
					run()
				}
			}()
		}
	}
}

// registerConn and unregisterConn track the raw sockets of connections
// currently being served, so closeActiveConns can force them closed on
// cancellation without knowing anything about conn.Conn internals.
func (s *Server) registerConn(c net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) unregisterConn(c net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, c)
}

// closeActiveConns force-closes every currently registered connection.
func (s *Server) closeActiveConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// Stop is idempotent: if listening, it clears the readiness gate and
// closes the listening socket, which unblocks the accept loop with a
// disconnected error. In-flight connections are left to drain to
// completion rather than being force-closed.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isListening {
		return nil
	}
	s.isListening = false
	ln := s.listener
	s.listener = nil
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// WaitUntilListening returns when the readiness gate opens, or fails with
// a cancellation/timeout indication.
func (s *Server) WaitUntilListening(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.isListening {
		s.mu.Unlock()
		return nil
	}
	w := &waiter{ch: make(chan struct{})}
	s.waiters[w] = struct{}{}
	s.mu.Unlock()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		s.removeWaiter(w)
		return emberrors.ErrWaitCancelled
	case <-timeoutCh:
		s.removeWaiter(w)
		return emberrors.ErrWaitTimeout
	}
}

func (s *Server) removeWaiter(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, w)
}

// releaseWaitersLocked signals and clears every pending waiter. Must be
// called with s.mu held.
func (s *Server) releaseWaitersLocked() {
	for w := range s.waiters {
		close(w.ch)
	}
	s.waiters = make(map[*waiter]struct{})
}
