// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package statichandler serves a local directory as an ordinary
// handler.Handler. It is stdlib-only: os/io are sufficient for filesystem
// traversal and no available library offers a framework-agnostic
// directory handler built around this server's own request/response
// types (see DESIGN.md).
package statichandler

import (
	"context"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/foxwire/emberhttp/pkg/handler"
	"github.com/foxwire/emberhttp/pkg/httpmodel"
)

// Handler serves files rooted at Dir. Requests resolving outside Dir
// (via "..") are rejected with 404 rather than traversing out of it.
type Handler struct {
	Dir   string
	Index string // filename served for a directory request, e.g. "index.html"
}

// New builds a Handler rooted at dir.
func New(dir string) *Handler {
	return &Handler{Dir: dir, Index: "index.html"}
}

var _ handler.Handler = (*Handler)(nil)

func (h *Handler) Serve(_ context.Context, req *httpmodel.Request) (*httpmodel.Response, error) {
	clean := path.Clean("/" + req.Path)
	full := filepath.Join(h.Dir, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, filepath.Clean(h.Dir)) {
		return httpmodel.NewResponse(404, nil), nil
	}

	info, err := os.Stat(full)
	if err != nil {
		return httpmodel.NewResponse(404, nil), nil
	}
	if info.IsDir() {
		full = filepath.Join(full, h.Index)
		info, err = os.Stat(full)
		if err != nil {
			return httpmodel.NewResponse(404, nil), nil
		}
	}

	body, err := os.ReadFile(full)
	if err != nil {
		return httpmodel.NewResponse(404, nil), nil
	}

	res := httpmodel.NewResponse(200, body)
	if ct := mime.TypeByExtension(filepath.Ext(full)); ct != "" {
		res.Headers.Set("Content-Type", ct)
	}
	_ = info
	return res, nil
}
