// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/foxwire/emberhttp/pkg/emberrors"
	"github.com/foxwire/emberhttp/pkg/httpmodel"
	"github.com/foxwire/emberhttp/pkg/logging"
)

type fakeDispatcher func(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error)

func (f fakeDispatcher) Dispatch(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error) {
	return f(ctx, req)
}

func pipe() (server, client net.Conn) {
	return net.Pipe()
}

func TestRunWritesResponseAndCloses(t *testing.T) {
	server, client := pipe()
	defer client.Close()

	c := New(server, logging.NewLinePrinter(discard{}))
	d := fakeDispatcher(func(_ context.Context, req *httpmodel.Request) (*httpmodel.Response, error) {
		return httpmodel.NewResponse(202, nil), nil
	})

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), d)
		close(done)
	}()

	client.Write([]byte("GET /accepted HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))

	r := bufio.NewReader(client)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if !strings.Contains(line, "202") {
		t.Fatalf("status line = %q, want 202", line)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Connection: close")
	}
}

func TestRunUnhandledMapsTo404(t *testing.T) {
	server, client := pipe()
	defer client.Close()

	c := New(server, logging.NewLinePrinter(discard{}))
	d := fakeDispatcher(func(_ context.Context, _ *httpmodel.Request) (*httpmodel.Response, error) {
		return nil, emberrors.ErrUnhandled
	})

	go c.Run(context.Background(), d)

	client.Write([]byte("GET /missing HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))

	r := bufio.NewReader(client)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if !strings.Contains(line, "404") {
		t.Fatalf("status line = %q, want 404", line)
	}
}

func TestRunKeepAliveLoopsForSecondRequest(t *testing.T) {
	server, client := pipe()
	defer client.Close()

	c := New(server, logging.NewLinePrinter(discard{}))
	var calls int
	d := fakeDispatcher(func(_ context.Context, req *httpmodel.Request) (*httpmodel.Response, error) {
		calls++
		if req.Path == "/second" {
			res := httpmodel.NewResponse(200, nil)
			res.Headers.Set("Connection", "close")
			return res, nil
		}
		return httpmodel.NewResponse(200, nil), nil
	})

	go c.Run(context.Background(), d)

	r := bufio.NewReader(client)
	requests := []string{
		"GET /first HTTP/1.1\r\nHost: x\r\n\r\n",
		"GET /second HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n",
	}
	for i, raw := range requests {
		// net.Pipe is synchronous, so each response is read in full before
		// the next request is written, as the server serves one at a time.
		client.Write([]byte(raw))
		status, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString %d: %v", i, err)
		}
		if !strings.Contains(status, "200") {
			t.Fatalf("status line %d = %q, want 200", i, status)
		}
		for {
			l, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("drain headers %d: %v", i, err)
			}
			if l == "\r\n" {
				break
			}
		}
	}

	if calls != 2 {
		t.Fatalf("dispatch calls = %d, want 2", calls)
	}
}

func TestDispatchWithDeadlineTimesOut(t *testing.T) {
	server, client := pipe()
	defer client.Close()
	defer server.Close()

	c := &Conn{ID: "t", Raw: server, Logger: logging.NewLinePrinter(discard{}), Timeout: 10 * time.Millisecond}
	d := fakeDispatcher(func(ctx context.Context, _ *httpmodel.Request) (*httpmodel.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := c.dispatchWithDeadline(context.Background(), d, &httpmodel.Request{})
	if !errors.Is(err, emberrors.ErrHandlerTimeout) {
		t.Fatalf("err = %v, want ErrHandlerTimeout", err)
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
