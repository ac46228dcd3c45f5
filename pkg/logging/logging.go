// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package logging provides the server's logger contract and its
// startup/connection line formats. Two sinks are provided: NewSlog adapts
// a *slog.Logger, and NewLinePrinter is a line-buffered printer over
// stderr or any io.Writer. There is no OS system logger (syslog) sink and
// no automatic choice between sinks.
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/foxwire/emberhttp/pkg/endpoint"
)

// Logger is the server's external logging contract.
type Logger interface {
	LogInfo(msg string, args ...any)
	LogError(msg string, args ...any)
	LogCritical(msg string, args ...any)
}

// slogLogger adapts log/slog.Logger to the Logger contract. It is used
// only where a caller builds one with NewSlog.
type slogLogger struct {
	l *slog.Logger
}

// NewSlog wraps an existing *slog.Logger, or slog.Default() if nil.
func NewSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) LogInfo(msg string, args ...any)     { s.l.Info(msg, args...) }
func (s *slogLogger) LogError(msg string, args ...any)    { s.l.Error(msg, args...) }
func (s *slogLogger) LogCritical(msg string, args ...any) {
	s.l.Log(context.Background(), slog.LevelError+4, msg, args...)
}

// linePrinter is the line-buffered stderr logger that supervisor.New
// uses when it is given no logger. It writes exactly one plain-text line
// per call.
type linePrinter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewLinePrinter builds a line-buffered writer over w (os.Stderr if nil).
func NewLinePrinter(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &linePrinter{w: bufio.NewWriter(w)}
}

func (p *linePrinter) write(level, msg string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s", level, fmt.Sprintf(msg, args...))
	p.w.WriteByte('\n')
	p.w.Flush()
}

func (p *linePrinter) LogInfo(msg string, args ...any)     { p.write("INFO", msg, args...) }
func (p *linePrinter) LogError(msg string, args ...any)    { p.write("ERROR", msg, args...) }
func (p *linePrinter) LogCritical(msg string, args ...any) { p.write("CRITICAL", msg, args...) }

// StartupLine renders the "starting server ..." line.
//
//   - wildcard IPv4/IPv6: "starting server port: <p>"
//   - specific IP:        "starting server <addr>:<port>"
//   - unix:                "starting server path: <p>"
//   - unknown family:      "starting server"
func StartupLine(e endpoint.Endpoint) string {
	switch e.Family {
	case endpoint.FamilyIPv4, endpoint.FamilyIPv6:
		if e.IsWildcard() {
			return fmt.Sprintf("starting server port: %d", e.Port)
		}
		return fmt.Sprintf("starting server %s:%d", e.Address, e.Port)
	case endpoint.FamilyUnix:
		return fmt.Sprintf("starting server path: %s", e.Path)
	default:
		return "starting server"
	}
}

// OpenConnectionLine renders "<<id>> open connection".
func OpenConnectionLine(id string) string { return fmt.Sprintf("<%s> open connection", id) }

// CloseConnectionLine renders "<<id>> close connection".
func CloseConnectionLine(id string) string { return fmt.Sprintf("<%s> close connection", id) }

// RequestLine renders "<<id>> request: <METHOD> <path>".
func RequestLine(id, method, path string) string {
	return fmt.Sprintf("<%s> request: %s %s", id, method, path)
}

// ErrorLine renders "<<id>> error: <description>".
func ErrorLine(id, description string) string {
	return fmt.Sprintf("<%s> error: %s", id, description)
}
