// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package router holds the ordered route table and first-match-wins
// dispatch.
package router

import (
	"strings"

	"github.com/foxwire/emberhttp/pkg/handler"
	"github.com/foxwire/emberhttp/pkg/httpmodel"
)

// Route is one (method-pattern, path-pattern, handler) entry. Routes are
// immutable once appended; only the Router's slice is mutated, and only
// from the supervisor's single-threaded context.
type Route struct {
	Pattern string // original "[METHOD] path" pattern, kept for diagnostics
	method  string // uppercased, or "" for any method
	segs    []string
	Handler handler.Handler
}

// Router is the ordered sequence of routes the supervisor dispatches
// against.
type Router struct {
	routes []Route
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// Append adds a route to the end of the table. A pattern has the form
// "METHOD path" or just "path" (method defaults to any). Path segments may
// be literal (case-sensitive), "*" (matches exactly one segment), or "**"
// /a trailing "*" (matches the remainder of the path, one or more
// segments). A path pattern that is only "*" or "**" is a catch-all and
// also matches the root path "/". Method matching is case-insensitive.
func (rt *Router) Append(pattern string, h handler.Handler) {
	method, path := splitPattern(pattern)
	rt.routes = append(rt.routes, Route{
		Pattern: pattern,
		method:  strings.ToUpper(method),
		segs:    splitPath(path),
		Handler: h,
	})
}

// Snapshot returns the routes appended so far. Dispatch callers should take
// a snapshot once per request so that a concurrent Append (only valid from
// the supervisor's own context, never concurrently with a live dispatch by
// contract) cannot be observed mid-iteration.
func (rt *Router) Snapshot() []Route {
	out := make([]Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

// Match finds the first route whose method and path both match req,
// returning its handler. ok is false if no route matches.
func (rt *Router) Match(req *httpmodel.Request) (handler.Handler, bool) {
	route, ok := rt.MatchRoute(req)
	if !ok {
		return nil, false
	}
	return route.Handler, true
}

// MatchRoute is Match plus the matched Route itself, so callers (the
// supervisor's dispatcher) can key per-route resilience and metrics state
// off Route.Pattern without re-running the match.
func (rt *Router) MatchRoute(req *httpmodel.Request) (Route, bool) {
	segs := splitPath(req.Path)
	for _, route := range rt.routes {
		if route.method != "" && route.method != req.Method {
			continue
		}
		if matchSegs(route.segs, segs) {
			return route, true
		}
	}
	return Route{}, false
}

// splitPattern separates an optional leading "METHOD " from the path.
func splitPattern(pattern string) (method, path string) {
	pattern = strings.TrimSpace(pattern)
	if sp := strings.IndexByte(pattern, ' '); sp >= 0 {
		candidate := pattern[:sp]
		if looksLikeMethod(candidate) {
			return candidate, strings.TrimSpace(pattern[sp+1:])
		}
	}
	return "", pattern
}

// looksLikeMethod reports whether token is a bare method name rather than
// the start of a path (paths always start with "/" or are "*").
func looksLikeMethod(token string) bool {
	if token == "" {
		return false
	}
	return token[0] != '/' && token != "*" && token != "**"
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// matchSegs matches a pattern's segments against a path's segments. A
// literal segment matches itself exactly (case-sensitive). "*" matches
// exactly one segment UNLESS it is the pattern's final segment, in which
// case — like an explicit "**" — it matches the remainder of the path
// (one or more segments). When that wildcard is the pattern's first
// segment it matches every path, including the zero-segment root path.
func matchSegs(pattern, path []string) bool {
	for i, p := range pattern {
		last := i == len(pattern)-1
		if p == "**" || (p == "*" && last) {
			return i == 0 || len(path) >= i+1
		}
		if i >= len(path) {
			return false
		}
		if p == "*" {
			continue
		}
		if p != path[i] {
			return false
		}
	}
	return len(pattern) == len(path)
}
