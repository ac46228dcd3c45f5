// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"testing"

	"github.com/foxwire/emberhttp/pkg/endpoint"
)

func TestStartupLine(t *testing.T) {
	tests := []struct {
		name string
		ep   endpoint.Endpoint
		want string
	}{
		{"ipv4 wildcard port 1234", endpoint.IPv4("", 1234), "starting server port: 1234"},
		{"ipv4 specific", endpoint.IPv4("8.8.8.8", 1234), "starting server 8.8.8.8:1234"},
		{"unix path", endpoint.Unix("/var/fox/xyz"), "starting server path: /var/fox/xyz"},
		{"unknown family", endpoint.Endpoint{}, "starting server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StartupLine(tt.ep); got != tt.want {
				t.Errorf("StartupLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectionLines(t *testing.T) {
	if got, want := OpenConnectionLine("10.0.0.1:5555"), "<10.0.0.1:5555> open connection"; got != want {
		t.Errorf("OpenConnectionLine() = %q, want %q", got, want)
	}
	if got, want := CloseConnectionLine("10.0.0.1:5555"), "<10.0.0.1:5555> close connection"; got != want {
		t.Errorf("CloseConnectionLine() = %q, want %q", got, want)
	}
	if got, want := RequestLine("id", "GET", "/x"), "<id> request: GET /x"; got != want {
		t.Errorf("RequestLine() = %q, want %q", got, want)
	}
	if got, want := ErrorLine("id", "boom"), "<id> error: boom"; got != want {
		t.Errorf("ErrorLine() = %q, want %q", got, want)
	}
}
