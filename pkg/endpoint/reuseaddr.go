// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package endpoint

import "syscall"

// setReuseAddr enables SO_REUSEADDR on the raw socket before bind, so that
// a restarted server can rebind a recently-closed address immediately
// instead of hitting EADDRINUSE during the OS's linger period.
//
// Go delivers a write to a closed socket as an error return rather than
// a SIGPIPE signal, so there is nothing to suppress here; checking write
// errors, which the connection loop already does, covers it.
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = setSockOptReuseAddr(fd)
	})
	if err != nil {
		return err
	}
	return sockErr
}
