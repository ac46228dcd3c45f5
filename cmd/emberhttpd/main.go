// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "emberhttpd",
		Short: "An embeddable HTTP/1.1 server",
		Long: `emberhttpd runs the emberhttp server standalone, for local
testing and for the cases where embedding it in another process isn't
worth the trouble.

It terminates HTTP/1.1 connections itself, dispatches requests through a
path-pattern route table, and upgrades WebSocket connections in-process —
no reverse proxy, no backend to dial.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
