// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package endpoint

import "syscall"

func setSockOptReuseAddr(fd uintptr) error {
	return syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
}
