// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package endpoint

import "testing"

func TestIsWildcard(t *testing.T) {
	tests := []struct {
		name string
		ep   Endpoint
		want bool
	}{
		{"ipv4 wildcard address", IPv4("", 1234), true},
		{"ipv4 wildcard explicit", IPv4("0.0.0.0", 1234), true},
		{"ipv4 specific", IPv4("8.8.8.8", 1234), false},
		{"ipv6 wildcard", IPv6("::", 1234), true},
		{"unix never wildcard", Unix("/var/fox/xyz"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ep.IsWildcard(); got != tt.want {
				t.Errorf("IsWildcard() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBindUnixAndClose(t *testing.T) {
	path := t.TempDir() + "/emberhttp-test.sock"
	ln, err := Bind(Unix(path))
	if err != nil {
		t.Fatalf("Bind unix: %v", err)
	}
	defer ln.Close()

	if ln.Addr().Network() != "unix" {
		t.Errorf("Addr().Network() = %q, want unix", ln.Addr().Network())
	}
}

func TestBindIPv4WildcardPort(t *testing.T) {
	ln, err := Bind(IPv4("127.0.0.1", 0))
	if err != nil {
		t.Fatalf("Bind ipv4: %v", err)
	}
	defer ln.Close()
}
