// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package conn implements the per-connection state machine: repeatedly
// read a request, dispatch it with a deadline, write the response, and
// either loop (keep-alive), hand off (upgrade), or close.
package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/foxwire/emberhttp/pkg/emberrors"
	"github.com/foxwire/emberhttp/pkg/httpcodec"
	"github.com/foxwire/emberhttp/pkg/httpmodel"
	"github.com/foxwire/emberhttp/pkg/logging"
)

// Dispatcher resolves one request to one response. Implementations decide
// route matching, per-request timeout, circuit breaking, and metrics;
// Conn only needs the outcome. A nil error with a non-nil response is the
// happy path; emberrors.ErrUnhandled/ErrHandlerTimeout/ErrCircuitOpen (or
// any other error) are mapped to 404/500/503/500 respectively by Conn.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error)
}

// Conn wraps one accepted socket: a unique id, the raw connection, and a
// logger reference. Exactly one task reads from and writes to it.
type Conn struct {
	ID     string
	Raw    net.Conn
	Logger logging.Logger

	// Timeout is the per-request handler deadline, defaulting to 15s if
	// zero.
	Timeout time.Duration
}

// New wraps raw as a Conn, assigning it a fresh id. The peer's network
// address is already the socket's RemoteAddr and doesn't need
// duplicating into ID; a generated id stays stable and unique even for
// unix-socket peers, which share one address across every connection.
func New(raw net.Conn, logger logging.Logger) *Conn {
	return &Conn{ID: uuid.NewString(), Raw: raw, Logger: logger, Timeout: 15 * time.Second}
}

// Run drives the state machine until the connection reaches Done, then
// closes the socket. ctx governs the whole connection task: it is checked
// before each request is read and bounds each dispatch. A read already
// blocked on the socket does not observe cancellation; it ends only when
// the socket is closed or data arrives.
func (c *Conn) Run(ctx context.Context, d Dispatcher) {
	defer c.Raw.Close()

	c.Logger.LogInfo(logging.OpenConnectionLine(c.ID))
	defer c.Logger.LogInfo(logging.CloseConnectionLine(c.ID))

	r := bufio.NewReader(c.Raw)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := httpcodec.ReadRequest(r)
		if err != nil {
			if !isCleanClose(err) {
				c.Logger.LogError(logging.ErrorLine(c.ID, err.Error()))
			}
			return
		}

		c.Logger.LogInfo(logging.RequestLine(c.ID, req.Method, req.Path))

		res, dispatchErr := c.dispatchWithDeadline(ctx, d, req)
		if dispatchErr != nil {
			c.Logger.LogError(logging.ErrorLine(c.ID, dispatchErr.Error()))
		}

		if req.ShouldKeepAlive && res.Headers != nil {
			res.Headers.Set("Connection", req.Headers.Get("Connection"))
		}

		if err := httpcodec.WriteResponse(c.Raw, res); err != nil {
			c.Logger.LogError(logging.ErrorLine(c.ID, err.Error()))
			return
		}

		if res.Upgrade != nil {
			if err := res.Upgrade(c.Raw); err != nil && !isCleanClose(err) {
				c.Logger.LogError(logging.ErrorLine(c.ID, err.Error()))
			}
			return
		}

		if !req.ShouldKeepAlive {
			return
		}
		// loop: read the next pipelined/keep-alive request on the same socket
	}
}

// dispatchWithDeadline runs d.Dispatch under a per-request timeout and
// converts its outcome to a synthesized response: ErrUnhandled -> 404,
// ErrHandlerTimeout or deadline exceeded -> 500, ErrCircuitOpen -> 503,
// any other error -> 500.
func (c *Conn) dispatchWithDeadline(ctx context.Context, d Dispatcher, req *httpmodel.Request) (*httpmodel.Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		res *httpmodel.Response
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := d.Dispatch(dctx, req)
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.res, nil
		}
		return synthesize(r.err), r.err
	case <-dctx.Done():
		return synthesize(emberrors.ErrHandlerTimeout), emberrors.ErrHandlerTimeout
	}
}

func synthesize(err error) *httpmodel.Response {
	switch {
	case errors.Is(err, emberrors.ErrUnhandled):
		return httpmodel.NewResponse(404, nil)
	case errors.Is(err, emberrors.ErrCircuitOpen):
		return httpmodel.NewResponse(503, nil)
	default:
		return httpmodel.NewResponse(500, nil)
	}
}

// isCleanClose reports whether err represents an ordinary peer
// disconnect rather than a genuine parse or I/O failure worth logging as
// an error.
func isCleanClose(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return fmt.Sprintf("%v", err) == "EOF"
}
