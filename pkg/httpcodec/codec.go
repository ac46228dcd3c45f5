// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package httpcodec implements the wire-level request reader and response
// writer for HTTP/1.0 and HTTP/1.1. It does the minimum RFC 7230 parsing
// the connection loop needs (start-line, headers, Content-Length bodies)
// and leaves chunked transfer-encoding unimplemented (see DESIGN.md).
package httpcodec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/foxwire/emberhttp/pkg/httpmodel"
)

// ErrMalformedRequest is returned for any start-line or header that does
// not parse as HTTP/1.x.
var ErrMalformedRequest = fmt.Errorf("httpcodec: malformed request")

// ReadRequest produces one httpmodel.Request from r per call. It returns
// io.EOF (unwrapped) on a clean peer close before any bytes of a new
// request arrive, and ErrMalformedRequest on a parse failure mid-request.
func ReadRequest(r *bufio.Reader) (*httpmodel.Request, error) {
	startLine, err := readLine(r)
	if err != nil {
		return nil, err // io.EOF on clean close propagates as-is
	}
	if startLine == "" {
		// Tolerate a leading blank line some clients send between
		// pipelined requests.
		startLine, err = readLine(r)
		if err != nil {
			return nil, err
		}
	}

	parts := strings.SplitN(startLine, " ", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: bad start line %q", ErrMalformedRequest, startLine)
	}
	method, target, version := parts[0], parts[1], strings.TrimSpace(parts[2])
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedRequest, version)
	}

	path, query := target, ""
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		path, query = target[:idx], target[idx+1:]
	}

	headers := httpmodel.NewHeader()
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad header %q", ErrMalformedRequest, line)
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	var body []byte
	if cl := headers.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad Content-Length %q", ErrMalformedRequest, cl)
		}
		body = make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("%w: short body: %v", ErrMalformedRequest, err)
		}
	}

	req := &httpmodel.Request{
		Method:  strings.ToUpper(method),
		Path:    path,
		Query:   query,
		Version: version,
		Headers: headers,
		Body:    body,
	}
	req.ShouldKeepAlive = httpmodel.ComputeShouldKeepAlive(version, headers.Get("Connection"))
	return req, nil
}

// readLine reads one CRLF- or LF-terminated line with the terminator
// stripped. A request line of exactly "\r\n" comes back as "".
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteResponse serializes one httpmodel.Response to w. Content-Length is
// set from len(Body) unless the caller already set it or the status is
// 101, which is written with no Content-Length header at all.
func WriteResponse(w io.Writer, res *httpmodel.Response) error {
	bw := bufio.NewWriter(w)

	statusText := res.StatusText
	if statusText == "" {
		statusText = httpmodel.StatusText(res.StatusCode)
	}
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", res.StatusCode, statusText); err != nil {
		return err
	}

	wroteContentLength := res.Headers != nil && res.Headers.Has("Content-Length")
	if res.Headers != nil {
		for _, name := range res.Headers.Names() {
			for _, v := range res.Headers.Values(name) {
				if _, err := fmt.Fprintf(bw, "%s: %s\r\n", headerCase(name), v); err != nil {
					return err
				}
			}
		}
	}
	if !wroteContentLength && res.StatusCode != 101 {
		if _, err := fmt.Fprintf(bw, "Content-Length: %d\r\n", len(res.Body)); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	if len(res.Body) > 0 {
		if _, err := bw.Write(res.Body); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// headerCase renders a lower-cased header name in conventional
// Title-Case-With-Hyphens form for wire output; header matching elsewhere
// stays case-insensitive regardless of this cosmetic choice.
func headerCase(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}
