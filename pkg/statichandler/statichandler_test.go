// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package statichandler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/foxwire/emberhttp/pkg/httpmodel"
)

func TestServeFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := New(dir)
	res, err := h.Serve(context.Background(), &httpmodel.Request{Path: "/hello.txt"})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if res.StatusCode != 200 || string(res.Body) != "hi" {
		t.Errorf("got status=%d body=%q", res.StatusCode, res.Body)
	}
}

func TestServeIndexForDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := New(dir)
	res, _ := h.Serve(context.Background(), &httpmodel.Request{Path: "/"})
	if res.StatusCode != 200 {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
}

func TestServeRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	h := New(dir)
	res, _ := h.Serve(context.Background(), &httpmodel.Request{Path: "/../../etc/passwd"})
	if res.StatusCode != 404 {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
}

func TestServeMissingFile(t *testing.T) {
	h := New(t.TempDir())
	res, _ := h.Serve(context.Background(), &httpmodel.Request{Path: "/missing.txt"})
	if res.StatusCode != 404 {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
}
