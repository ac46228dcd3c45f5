// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package wsframe

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildMaskedClientFrame constructs a masked client->server text frame the
// way a real client would, for use as test input to ReadFrame.
func buildMaskedClientFrame(payload []byte, mask [4]byte) []byte {
	masked := make([]byte, len(payload))
	copy(masked, payload)
	for i := range masked {
		masked[i] ^= mask[i%4]
	}

	var buf bytes.Buffer
	buf.WriteByte(0x80 | byte(OpText)) // fin + text
	switch n := len(masked); {
	case n <= 125:
		buf.WriteByte(0x80 | byte(n))
	case n <= 0xFFFF:
		buf.WriteByte(0x80 | 126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(n))
		buf.Write(ext[:])
	default:
		buf.WriteByte(0x80 | 127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(n))
		buf.Write(ext[:])
	}
	buf.Write(mask[:])
	buf.Write(masked)
	return buf.Bytes()
}

func TestReadFrameUnmasksClientPayload(t *testing.T) {
	mask := [4]byte{0x12, 0x34, 0x56, 0x78}
	raw := buildMaskedClientFrame([]byte("FlyingFox"), mask)

	f, err := ReadFrame(bytes.NewReader(raw), 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !f.Fin || f.Opcode != OpText || !f.Masked {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if string(f.Payload) != "FlyingFox" {
		t.Errorf("payload = %q, want FlyingFox", f.Payload)
	}
}

func TestEchoRoundTripUnmasked(t *testing.T) {
	mask := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}
	raw := buildMaskedClientFrame([]byte("FlyingFox"), mask)

	f, err := ReadFrame(bytes.NewReader(raw), 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	var out bytes.Buffer
	if err := WriteFrame(&out, f.Opcode, f.Payload, f.Fin); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	echoed, err := ReadFrame(bytes.NewReader(out.Bytes()), 0)
	if err != nil {
		t.Fatalf("ReadFrame(echoed): %v", err)
	}
	if echoed.Masked {
		t.Errorf("echoed frame must be unmasked")
	}
	if string(echoed.Payload) != "FlyingFox" {
		t.Errorf("echoed payload = %q, want FlyingFox", echoed.Payload)
	}
}

func TestWriteFrameLongPayloadUses16BitLength(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 1000)
	var out bytes.Buffer
	if err := WriteFrame(&out, OpBinary, payload, true); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if out.Bytes()[1] != 126 {
		t.Fatalf("expected 16-bit length marker, got %d", out.Bytes()[1])
	}
	f, err := ReadFrame(bytes.NewReader(out.Bytes()), 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(f.Payload) != len(payload) {
		t.Errorf("payload length = %d, want %d", len(f.Payload), len(payload))
	}
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	mask := [4]byte{1, 2, 3, 4}
	raw := buildMaskedClientFrame(bytes.Repeat([]byte("y"), 200), mask)
	if _, err := ReadFrame(bytes.NewReader(raw), 100); err != ErrFrameTooLarge {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}
