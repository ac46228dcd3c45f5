// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handler defines the request/response contract connecting the
// router to application code.
package handler

import (
	"context"

	"github.com/foxwire/emberhttp/pkg/httpmodel"
)

// Handler is the server's request/response contract: a request in, a
// response (or error) out. It may suspend via ctx; it must not retain
// the underlying socket except by returning a Response with a non-nil
// Upgrade field.
type Handler interface {
	Serve(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error)
}

// Func adapts a plain function to Handler.
type Func func(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error)

// Serve implements Handler.
func (f Func) Serve(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error) {
	return f(ctx, req)
}

// StatusHandler is a trivial Handler that always returns status with an
// empty body, useful for tests and demos.
func StatusHandler(status int) Handler {
	return Func(func(_ context.Context, _ *httpmodel.Request) (*httpmodel.Response, error) {
		return httpmodel.NewResponse(status, nil), nil
	})
}
