// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package health provides health/readiness checks exposed as ordinary
// route handlers, so the supervisor's readiness gate can be queried over
// the same HTTP/1.1 connections it serves.
package health

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/foxwire/emberhttp/pkg/handler"
	"github.com/foxwire/emberhttp/pkg/httpmodel"
)

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the cached result of one registered CheckFunc.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
}

// CheckFunc performs one health check, returning an error if unhealthy.
type CheckFunc func(ctx context.Context) error

// Checker manages named health checks with a short-lived result cache so
// that a busy readiness poller cannot re-run expensive checks every call.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	cache  map[string]*Check
	ttl    time.Duration

	// Listening reports whether the supervisor has bound its listener.
	// When set, /ready reports unhealthy until this returns true.
	Listening func() bool
}

// NewChecker creates a checker whose cache entries live for cacheTTL
// (10s if zero).
func NewChecker(cacheTTL time.Duration) *Checker {
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Second
	}
	return &Checker{
		checks: make(map[string]CheckFunc),
		cache:  make(map[string]*Check),
		ttl:    cacheTTL,
	}
}

// Register adds a named check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Health runs (or serves cached results for) every registered check and
// returns the worst status observed.
func (c *Checker) Health(ctx context.Context) (Status, []Check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var checks []Check
	overall := StatusHealthy

	for name, checkFunc := range c.checks {
		if cached, ok := c.cache[name]; ok && time.Since(cached.LastChecked) < c.ttl {
			checks = append(checks, *cached)
			if cached.Status != StatusHealthy {
				overall = StatusUnhealthy
			}
			continue
		}

		start := time.Now()
		err := checkFunc(ctx)

		check := &Check{Name: name, LastChecked: time.Now(), Duration: time.Since(start)}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			overall = StatusUnhealthy
		} else {
			check.Status = StatusHealthy
		}

		c.cache[name] = check
		checks = append(checks, *check)
	}

	return overall, checks
}

func jsonResponse(status int, payload any) *httpmodel.Response {
	body, _ := json.Marshal(payload)
	res := httpmodel.NewResponse(status, body)
	res.Headers.Set("Content-Type", "application/json")
	return res
}

// LivenessHandler always returns 200: the process is up and scheduling
// goroutines, independent of backend health.
func LivenessHandler() handler.Handler {
	return handler.Func(func(_ context.Context, _ *httpmodel.Request) (*httpmodel.Response, error) {
		return jsonResponse(200, map[string]string{"status": "alive"}), nil
	})
}

// HealthHandler runs registered checks and reports 200 or 503 according to
// the worst result.
func (c *Checker) HealthHandler() handler.Handler {
	return handler.Func(func(ctx context.Context, _ *httpmodel.Request) (*httpmodel.Response, error) {
		status, checks := c.Health(ctx)
		code := 200
		if status == StatusUnhealthy {
			code = 503
		}
		return jsonResponse(code, map[string]any{"status": status, "checks": checks}), nil
	})
}

// ReadinessHandler reports 503 until the supervisor is listening, then
// defers to the same checks as HealthHandler.
func (c *Checker) ReadinessHandler() handler.Handler {
	return handler.Func(func(ctx context.Context, _ *httpmodel.Request) (*httpmodel.Response, error) {
		if c.Listening != nil && !c.Listening() {
			return jsonResponse(503, map[string]string{"status": "not_listening"}), nil
		}
		status, checks := c.Health(ctx)
		code := 200
		if status != StatusHealthy {
			code = 503
		}
		return jsonResponse(code, map[string]any{"status": status, "checks": checks}), nil
	})
}
