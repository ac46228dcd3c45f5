// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"strconv"

	"github.com/foxwire/emberhttp/pkg/emberrors"
	"github.com/foxwire/emberhttp/pkg/handler"
	"github.com/foxwire/emberhttp/pkg/httpmodel"
	"github.com/foxwire/emberhttp/pkg/tracing"
)

// serverDispatcher implements conn.Dispatcher by matching req against the
// supervisor's router and running the optional breaker/metrics/tracing
// wiring around the matched handler's Serve call.
type serverDispatcher struct {
	s *Server
}

func (s *Server) dispatcher() *serverDispatcher { return &serverDispatcher{s: s} }

func (d *serverDispatcher) Dispatch(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error) {
	s := d.s
	route, ok := s.router.MatchRoute(req)
	if !ok {
		return nil, emberrors.ErrUnhandled
	}

	if s.Breakers == nil {
		return d.serve(ctx, route.Pattern, req, route.Handler)
	}

	cb := s.Breakers.For(route.Pattern)
	var res *httpmodel.Response
	err := cb.Call(func() error {
		var serveErr error
		res, serveErr = d.serve(ctx, route.Pattern, req, route.Handler)
		return serveErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *serverDispatcher) serve(ctx context.Context, routeKey string, req *httpmodel.Request, h handler.Handler) (*httpmodel.Response, error) {
	s := d.s

	var span *tracing.Span
	if s.Tracer != nil {
		var spanCtx context.Context
		spanCtx, span = s.Tracer.StartDispatch(ctx, req.Method, routeKey)
		ctx = spanCtx
	}

	var res *httpmodel.Response
	var err error
	if s.Metrics != nil {
		s.Metrics.ObserveRequest(req.Method, func() string {
			res, err = h.Serve(ctx, req)
			return statusLabel(res, err)
		})
	} else {
		res, err = h.Serve(ctx, req)
	}

	if span != nil {
		status := 0
		if res != nil {
			status = res.StatusCode
		}
		span.End(status, err)
	}

	return res, err
}

func statusLabel(res *httpmodel.Response, err error) string {
	if err != nil {
		return "error"
	}
	if res == nil {
		return "unknown"
	}
	return strconv.Itoa(res.StatusCode)
}
