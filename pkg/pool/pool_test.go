// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/foxwire/emberhttp/pkg/emberrors"
)

func TestAcceptYieldsConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	p := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted := p.Accept(ctx, ln)

	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			c.Close()
		}
	}()

	select {
	case a := <-accepted:
		if a.Err != nil {
			t.Fatalf("unexpected error: %v", a.Err)
		}
		a.Conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
}

func TestAcceptSignalsDisconnectedOnClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	p := New(Config{})
	accepted := p.Accept(context.Background(), ln)

	ln.Close()

	select {
	case a := <-accepted:
		if !errors.Is(a.Err, emberrors.ErrDisconnected) {
			t.Fatalf("err = %v, want ErrDisconnected", a.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect signal")
	}
}

type failingListener struct {
	net.Listener
	err error
}

func (f *failingListener) Accept() (net.Conn, error) { return nil, f.err }

func TestAcceptEndsStreamOnFatalError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	boom := errors.New("boom")
	p := New(Config{})
	accepted := p.Accept(context.Background(), &failingListener{Listener: ln, err: boom})

	select {
	case a, ok := <-accepted:
		if !ok {
			t.Fatal("channel closed before delivering the fatal error")
		}
		if !errors.Is(a.Err, boom) {
			t.Fatalf("err = %v, want %v", a.Err, boom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fatal accept error")
	}

	select {
	case _, ok := <-accepted:
		if ok {
			t.Fatal("expected channel to close after the fatal error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	p := New(Config{PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
