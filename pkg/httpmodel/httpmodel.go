// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package httpmodel defines the request/response value types shared by the
// codec, router, connection loop, and handlers.
package httpmodel

import (
	"net"
	"strings"
)

// Header is a mapping of header-name to values. Names are matched
// case-insensitively; insertion order of distinct names is preserved so
// that multi-value headers reproduce in the order they arrived.
type Header struct {
	order []string
	data  map[string][]string
}

// NewHeader returns an empty Header ready to use.
func NewHeader() *Header {
	return &Header{data: make(map[string][]string)}
}

func canon(name string) string { return strings.ToLower(name) }

// Add appends a value for name, preserving any existing values.
func (h *Header) Add(name, value string) {
	if h.data == nil {
		h.data = make(map[string][]string)
	}
	key := canon(name)
	if _, ok := h.data[key]; !ok {
		h.order = append(h.order, key)
	}
	h.data[key] = append(h.data[key], value)
}

// Set replaces all values for name with value.
func (h *Header) Set(name, value string) {
	if h.data == nil {
		h.data = make(map[string][]string)
	}
	key := canon(name)
	if _, ok := h.data[key]; !ok {
		h.order = append(h.order, key)
	}
	h.data[key] = []string{value}
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	if h == nil {
		return ""
	}
	vs := h.data[canon(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for name in insertion order.
func (h *Header) Values(name string) []string {
	if h == nil {
		return nil
	}
	return h.data[canon(name)]
}

// Has reports whether name has at least one value.
func (h *Header) Has(name string) bool {
	if h == nil {
		return false
	}
	_, ok := h.data[canon(name)]
	return ok
}

// Names returns header names in first-insertion order, using the
// originally supplied casing is not preserved (names are stored
// lower-cased); callers that must echo client casing should retain the
// original request header for that name instead.
func (h *Header) Names() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Request is one parsed HTTP request.
type Request struct {
	Method          string
	Path            string
	Query           string
	Version         string // "HTTP/1.0" or "HTTP/1.1"
	Headers         *Header
	Body            []byte
	ShouldKeepAlive bool
}

// Response is produced by a handler and serialized by the codec.
type Response struct {
	StatusCode int
	StatusText string
	Headers    *Header
	Body       []byte

	// Upgrade, when non-nil, is run by the connection loop after the
	// response bytes are flushed: it takes ownership of the raw
	// connection and runs an indefinite protocol loop.
	Upgrade func(raw net.Conn) error
}

// NewResponse builds a Response with an initialized Header map and a
// default status text looked up from StatusText.
func NewResponse(status int, body []byte) *Response {
	return &Response{
		StatusCode: status,
		StatusText: StatusText(status),
		Headers:    NewHeader(),
		Body:       body,
	}
}

// StatusText maps the subset of status codes this server synthesizes or
// commonly returns to their RFC 7231/6455 reason phrases.
func StatusText(code int) string {
	switch code {
	case 101:
		return "Switching Protocols"
	case 200:
		return "OK"
	case 202:
		return "Accepted"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 410:
		return "Gone"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}

// ComputeShouldKeepAlive implements the HTTP/1.x keep-alive formula:
// (HTTP/1.1 AND no "Connection: close") OR (HTTP/1.0 AND "Connection: keep-alive").
func ComputeShouldKeepAlive(version string, connectionHeader string) bool {
	v := strings.ToLower(connectionHeader)
	switch version {
	case "HTTP/1.1":
		return !strings.Contains(v, "close")
	case "HTTP/1.0":
		return strings.Contains(v, "keep-alive")
	default:
		return false
	}
}
