// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package endpoint is the address/socket abstraction the supervisor binds
// to. It supports IPv4, IPv6, and unix-domain (filesystem) endpoints with a
// uniform bind/listen/close contract, hiding the family-specific net.Listen
// network string from the rest of the server.
package endpoint

import (
	"context"
	"fmt"
	"net"
)

// Family identifies the address family of an Endpoint.
type Family int

const (
	// FamilyUnknown is the zero value; Bind fails for it.
	FamilyUnknown Family = iota
	// FamilyIPv4 binds a sockaddr_in.
	FamilyIPv4
	// FamilyIPv6 binds a sockaddr_in6 with scope zero.
	FamilyIPv6
	// FamilyUnix binds a filesystem path. Callers are responsible for
	// unlinking a stale path before Bind.
	FamilyUnix
)

// Endpoint is a value type describing where to listen. Construct one with
// IPv4, IPv6, Unix, or FromPort.
type Endpoint struct {
	Family  Family
	Address string // IP literal for FamilyIPv4/FamilyIPv6, empty for wildcard
	Port    int    // for FamilyIPv4/FamilyIPv6
	Path    string // for FamilyUnix
}

// IPv4 builds a wildcard-or-specific IPv4 endpoint.
func IPv4(address string, port int) Endpoint {
	return Endpoint{Family: FamilyIPv4, Address: address, Port: port}
}

// IPv6 builds a wildcard-or-specific IPv6 endpoint.
func IPv6(address string, port int) Endpoint {
	return Endpoint{Family: FamilyIPv6, Address: address, Port: port}
}

// Unix builds a filesystem-socket endpoint.
func Unix(path string) Endpoint {
	return Endpoint{Family: FamilyUnix, Path: path}
}

// FromPort is a convenience constructor: binds the wildcard address on
// the most capable family for the host, preferring IPv6 and falling
// back to IPv4.
func FromPort(port int) Endpoint {
	if ipv6Capable() {
		return IPv6("", port)
	}
	return IPv4("0.0.0.0", port)
}

// ipv6Capable does a cheap probe: can we bind an IPv6 wildcard listener at
// all. Failure to probe is treated as "not capable" rather than panicking.
func ipv6Capable() bool {
	ln, err := net.Listen("tcp6", "[::]:0")
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// networkAndAddress returns the net.Listen arguments for this endpoint.
func (e Endpoint) networkAndAddress() (network, address string, err error) {
	switch e.Family {
	case FamilyIPv4:
		return "tcp4", fmt.Sprintf("%s:%d", e.Address, e.Port), nil
	case FamilyIPv6:
		return "tcp6", fmt.Sprintf("[%s]:%d", e.Address, e.Port), nil
	case FamilyUnix:
		return "unix", e.Path, nil
	default:
		return "", "", fmt.Errorf("endpoint: unknown address family")
	}
}

// IsWildcard reports whether the endpoint binds to the unspecified address,
// used by the logger to decide between "port: <p>" and "<addr>:<port>".
func (e Endpoint) IsWildcard() bool {
	switch e.Family {
	case FamilyIPv4, FamilyIPv6:
		return e.Address == "" || e.Address == "0.0.0.0" || e.Address == "::"
	default:
		return false
	}
}

// Bind creates a socket matching the endpoint's family, enables address
// reuse so rapid restart succeeds, and binds+listens. No error is logged
// here; all errors are returned to the caller of Start.
func Bind(e Endpoint) (net.Listener, error) {
	network, address, err := e.networkAndAddress()
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{
		Control: setReuseAddr,
	}
	ln, err := lc.Listen(context.Background(), network, address)
	if err != nil {
		return nil, fmt.Errorf("bind %s %s: %w", network, address, err)
	}
	return ln, nil
}
