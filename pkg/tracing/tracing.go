// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package tracing wraps dispatch in an OpenTelemetry span carrying
// route, method, and status attributes.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "emberhttp"

// Tracer wraps one otel trace.Tracer. The zero value is not usable; use
// New. With no exporter configured on the process-wide TracerProvider,
// otel.Tracer returns a no-op tracer, so an unconfigured Tracer costs
// nothing at dispatch time.
type Tracer struct {
	tracer trace.Tracer
}

// New resolves a Tracer named name (defaultTracerName if empty) from the
// global TracerProvider.
func New(name string) *Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return &Tracer{tracer: otel.Tracer(name)}
}

// StartDispatch opens a span named "emberhttp.dispatch <pattern>" for one
// request, tagged with method and route. The caller must call End on the
// returned Span once dispatch completes.
func (t *Tracer) StartDispatch(ctx context.Context, method, route string) (context.Context, *Span) {
	spanCtx, span := t.tracer.Start(ctx, fmt.Sprintf("emberhttp.dispatch %s", route),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("emberhttp.method", method),
			attribute.String("emberhttp.route", route),
		),
	)
	return spanCtx, &Span{span: span}
}

// Span wraps one open otel span for the lifetime of one dispatch call.
type Span struct {
	span trace.Span
}

// End records the dispatch outcome and closes the span. err, if non-nil,
// marks the span as errored; status is recorded as a response-status
// attribute regardless.
func (s *Span) End(status int, err error) {
	s.span.SetAttributes(attribute.Int("emberhttp.status", status))
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
