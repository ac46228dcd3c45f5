// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package wsupgrade implements the WebSocket handshake: validating the
// upgrade request, computing Sec-WebSocket-Accept, and returning a 101
// response carrying an Upgrade payload the connection loop runs after
// flushing the response bytes.
package wsupgrade

import (
	"crypto/sha1" //nolint:gosec // required by RFC 6455, not used for security
	"encoding/base64"
	"fmt"
	"net"
	"strings"

	"github.com/foxwire/emberhttp/pkg/httpmodel"
	"github.com/foxwire/emberhttp/pkg/wsframe"
)

// websocketGUID is the magic string from RFC 6455 §1.3.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// FrameHandler is invoked once per fully-read frame on an upgraded
// connection. When shouldReply is true, a frame with respOpcode and
// respPayload is written back to the peer; shouldReply false with a nil
// error keeps the loop going without replying (e.g. after consuming a
// pong). A non-nil err ends the loop.
type FrameHandler func(f *wsframe.Frame) (respOpcode wsframe.Opcode, respPayload []byte, shouldReply bool, err error)

// ErrNotAnUpgradeRequest is returned by Validate when required upgrade
// headers are absent or wrong.
type ErrNotAnUpgradeRequest struct{ Reason string }

func (e *ErrNotAnUpgradeRequest) Error() string { return "wsupgrade: " + e.Reason }

// Validate checks the four RFC 6455 preconditions for an upgrade request:
// Upgrade: websocket, Connection containing "upgrade", Sec-WebSocket-Version:
// 13, and presence of Sec-WebSocket-Key.
func Validate(req *httpmodel.Request) (key string, err error) {
	if !strings.EqualFold(req.Headers.Get("Upgrade"), "websocket") {
		return "", &ErrNotAnUpgradeRequest{Reason: "missing or wrong Upgrade header"}
	}
	if !strings.Contains(strings.ToLower(req.Headers.Get("Connection")), "upgrade") {
		return "", &ErrNotAnUpgradeRequest{Reason: "Connection header does not contain upgrade"}
	}
	if req.Headers.Get("Sec-WebSocket-Version") != "13" {
		return "", &ErrNotAnUpgradeRequest{Reason: "unsupported Sec-WebSocket-Version"}
	}
	key = req.Headers.Get("Sec-WebSocket-Key")
	if key == "" {
		return "", &ErrNotAnUpgradeRequest{Reason: "missing Sec-WebSocket-Key"}
	}
	return key, nil
}

// AcceptKey computes base64(SHA1(key + GUID)), the Sec-WebSocket-Accept
// value per RFC 6455 §1.3.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID)) //nolint:gosec
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Handle validates req and, on success, returns a 101 Response whose
// Upgrade field runs the frame-exchange loop using onFrame to decide
// replies. On validation failure it returns a 400 Response and a non-nil
// error the caller may log.
func Handle(req *httpmodel.Request, onFrame FrameHandler, maxFramePayload int64) (*httpmodel.Response, error) {
	key, err := Validate(req)
	if err != nil {
		res := httpmodel.NewResponse(400, []byte(err.Error()))
		return res, err
	}

	res := httpmodel.NewResponse(101, nil)
	res.Headers.Set("Upgrade", "websocket")
	res.Headers.Set("Connection", "upgrade")
	res.Headers.Set("Sec-WebSocket-Accept", AcceptKey(key))
	res.Upgrade = func(raw net.Conn) error {
		return RunFrameLoop(raw, onFrame, maxFramePayload)
	}
	return res, nil
}

// RunFrameLoop repeatedly reads one frame from raw, hands it to onFrame,
// and writes back whatever onFrame decides, until a close frame, I/O
// error, or onFrame error ends the loop.
func RunFrameLoop(raw net.Conn, onFrame FrameHandler, maxFramePayload int64) error {
	for {
		f, err := wsframe.ReadFrame(raw, maxFramePayload)
		if err != nil {
			return err
		}

		if f.Opcode == wsframe.OpClose {
			_ = wsframe.WriteFrame(raw, wsframe.OpClose, nil, true)
			return nil
		}

		opcode, payload, shouldReply, err := onFrame(f)
		if err != nil {
			return fmt.Errorf("wsupgrade: frame handler: %w", err)
		}
		if shouldReply {
			if err := wsframe.WriteFrame(raw, opcode, payload, true); err != nil {
				return err
			}
		}
	}
}

// EchoHandler echoes every frame back with the mask cleared, replying to
// pings with pongs and dropping pongs, unchanged otherwise.
func EchoHandler(f *wsframe.Frame) (wsframe.Opcode, []byte, bool, error) {
	switch f.Opcode {
	case wsframe.OpPing:
		return wsframe.OpPong, f.Payload, true, nil
	case wsframe.OpPong:
		return 0, nil, false, nil
	default:
		return f.Opcode, f.Payload, true, nil
	}
}
