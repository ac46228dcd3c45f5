// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxwire/emberhttp/pkg/httpmodel"
)

func serve(t *testing.T, h interface {
	Serve(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error)
}) *httpmodel.Response {
	t.Helper()
	res, err := h.Serve(context.Background(), &httpmodel.Request{})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	return res
}

func TestLivenessHandlerAlwaysReports200(t *testing.T) {
	res := serve(t, LivenessHandler())
	if res.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
}

func TestHealthHandlerReports503WhenACheckFails(t *testing.T) {
	c := NewChecker(time.Hour)
	c.Register("db", func(context.Context) error { return errors.New("down") })

	res := serve(t, c.HealthHandler())
	if res.StatusCode != 503 {
		t.Fatalf("status = %d, want 503", res.StatusCode)
	}
}

func TestHealthHandlerReports200WhenChecksPass(t *testing.T) {
	c := NewChecker(time.Hour)
	c.Register("db", func(context.Context) error { return nil })

	res := serve(t, c.HealthHandler())
	if res.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
}

func TestHealthCachesResultsWithinTTL(t *testing.T) {
	c := NewChecker(time.Hour)
	var calls int
	c.Register("counted", func(context.Context) error {
		calls++
		return nil
	})

	c.Health(context.Background())
	c.Health(context.Background())

	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (second Health call should hit the cache)", calls)
	}
}

func TestReadinessHandlerReports503UntilListening(t *testing.T) {
	c := NewChecker(time.Hour)
	listening := false
	c.Listening = func() bool { return listening }

	res := serve(t, c.ReadinessHandler())
	if res.StatusCode != 503 {
		t.Fatalf("status before listening = %d, want 503", res.StatusCode)
	}

	listening = true
	res = serve(t, c.ReadinessHandler())
	if res.StatusCode != 200 {
		t.Fatalf("status after listening = %d, want 200", res.StatusCode)
	}
}
