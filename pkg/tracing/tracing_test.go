// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestStartDispatchAndEndDoNotPanicWithoutAnExporter(t *testing.T) {
	tr := New("")

	ctx, span := tr.StartDispatch(context.Background(), "GET", "/x")
	if ctx == nil {
		t.Fatal("expected a non-nil context from StartDispatch")
	}
	span.End(200, nil)
}

func TestEndRecordsErrorWithoutPanicking(t *testing.T) {
	tr := New("custom")

	_, span := tr.StartDispatch(context.Background(), "POST", "/y")
	span.End(500, errors.New("boom"))
}
