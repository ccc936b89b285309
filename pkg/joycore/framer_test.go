// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"bytes"
	"errors"
	"testing"
)

func patternPayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}

// ============================================================
// BuildRequest Tests
// ============================================================

func TestBuildRequest_FrameCounts(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		frames     int
		lastLength uint16
	}{
		{"empty payload", 0, 1, 0},
		{"single byte", 1, 1, 1},
		{"exactly one frame", 56, 1, 56},
		{"one byte over", 57, 2, 1},
		{"status sized", 20, 1, 20},
		{"fixed document", FixedSize, 4, 56},
		{"max frames", 255 * 56, 255, 56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := patternPayload(tt.size)
			frames, err := BuildRequest(MsgSetConfig, payload)
			if err != nil {
				t.Fatalf("BuildRequest failed: %v", err)
			}
			if len(frames) != tt.frames {
				t.Fatalf("got %d frames, want %d", len(frames), tt.frames)
			}
			for i, f := range frames {
				if f.Type != MsgSetConfig || int(f.Sequence) != i || int(f.Total) != tt.frames {
					t.Errorf("frame %d header %s", i, f.String())
				}
				if i < len(frames)-1 && f.DataLength != FramePayload {
					t.Errorf("frame %d length %d, want full", i, f.DataLength)
				}
			}
			if last := frames[len(frames)-1].DataLength; last != tt.lastLength {
				t.Errorf("last length %d, want %d", last, tt.lastLength)
			}

			joined, err := Reassemble(frames)
			if err != nil {
				t.Fatalf("Reassemble failed: %v", err)
			}
			if !bytes.Equal(joined, payload) {
				t.Error("reassembled payload differs")
			}
		})
	}
}

func TestBuildRequest_Rejects(t *testing.T) {
	if _, err := BuildRequest(MsgSetConfig, make([]byte, 255*56+1)); !errors.Is(err, ErrProtocol) {
		t.Errorf("oversized payload: expected ErrProtocol, got %v", err)
	}
	if _, err := BuildRequest(0x09, nil); !errors.Is(err, ErrProtocol) {
		t.Errorf("invalid type: expected ErrProtocol, got %v", err)
	}
}

// ============================================================
// Frame Encoding Tests
// ============================================================

func TestFrame_MarshalLayout(t *testing.T) {
	f := Frame{Type: MsgGetStatus, Sequence: 1, Total: 3, DataLength: 5, Status: StatusBusy}
	copy(f.Data[:], "hello")

	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	want := []byte{0x02, 0x05, 0x01, 0x03, 0x05, 0x00, 0x05, 0x00, 'h', 'e', 'l', 'l', 'o'}
	if len(b) != FrameSize || !bytes.Equal(b[:len(want)], want) {
		t.Errorf("frame bytes % X", b[:16])
	}

	parsed, err := ParseFrame(b)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if parsed.Type != f.Type || parsed.Sequence != 1 || parsed.Total != 3 || parsed.Status != StatusBusy {
		t.Errorf("parsed %s", parsed.String())
	}
	if string(parsed.Payload()) != "hello" {
		t.Errorf("payload %q", parsed.Payload())
	}

	var g Frame
	if err := g.UnmarshalBinary(b); err != nil || g != *parsed {
		t.Errorf("UnmarshalBinary mismatch: %v", err)
	}
}

func TestParseFrame_Errors(t *testing.T) {
	valid := func() []byte {
		f := Frame{Type: MsgGetConfig, Sequence: 0, Total: 1, DataLength: 4}
		b, _ := f.MarshalBinary()
		return b
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:63] }},
		{"long", func(b []byte) []byte { return append(b, 0) }},
		{"wrong report id", func(b []byte) []byte { b[0] = 0x01; return b }},
		{"data length 57", func(b []byte) []byte { b[4] = 57; return b }},
		{"zero total", func(b []byte) []byte { b[3] = 0; return b }},
		{"sequence equals total", func(b []byte) []byte { b[2] = 1; return b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(tt.mutate(valid()))
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProtocolError, got %v", err)
			}
			if !errors.Is(err, ErrProtocol) {
				t.Error("ProtocolError should match ErrProtocol")
			}
		})
	}
}

// ============================================================
// Reassembler Tests
// ============================================================

func TestReassembler_States(t *testing.T) {
	frames, err := BuildRequest(MsgGetConfig, patternPayload(120))
	if err != nil {
		t.Fatal(err)
	}

	r := NewReassembler()
	r.Expect(MsgGetConfig)
	if r.State() != StateAwaiting {
		t.Errorf("state after Expect = %s", r.State())
	}

	done, err := r.Add(&frames[0])
	if err != nil || done {
		t.Fatalf("first frame: done=%v err=%v", done, err)
	}
	if r.State() != StateReassembling || r.Received() != 1 || r.Total() != 3 {
		t.Errorf("state %s received %d total %d", r.State(), r.Received(), r.Total())
	}
	if _, err := r.Bytes(); err == nil {
		t.Error("Bytes should fail before completion")
	}

	for i := 1; i < len(frames); i++ {
		done, err = r.Add(&frames[i])
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if !done || r.State() != StateComplete {
		t.Fatalf("expected complete, state %s", r.State())
	}
	data, err := r.Bytes()
	if err != nil || !bytes.Equal(data, patternPayload(120)) {
		t.Errorf("Bytes mismatch: %v", err)
	}

	if _, err := r.Add(&frames[0]); err == nil {
		t.Error("frame after completion should fail")
	}

	r.Reset()
	if r.State() != StateIdle || r.Received() != 0 {
		t.Errorf("Reset left state %s received %d", r.State(), r.Received())
	}
}

func TestReassembler_Violations(t *testing.T) {
	build := func() []Frame {
		frames, err := BuildRequest(MsgGetConfig, patternPayload(150))
		if err != nil {
			t.Fatal(err)
		}
		return frames
	}

	tests := []struct {
		name   string
		order  func([]Frame) []Frame
		status Status
	}{
		{"first sequence not zero", func(f []Frame) []Frame { return f[1:] }, StatusOK},
		{"gap", func(f []Frame) []Frame { return []Frame{f[0], f[2]} }, StatusOK},
		{"duplicate", func(f []Frame) []Frame { return []Frame{f[0], f[0]} }, StatusOK},
		{"out of order", func(f []Frame) []Frame { return []Frame{f[0], f[2], f[1]} }, StatusOK},
		{"total changes", func(f []Frame) []Frame { f[1].Total = 4; return f }, StatusOK},
		{"type changes", func(f []Frame) []Frame { f[1].Type = MsgGetStatus; return f }, StatusOK},
		{"device status", func(f []Frame) []Frame { f[1].Status = StatusChecksum; return f }, StatusChecksum},
		{"oversized data length", func(f []Frame) []Frame { f[2].DataLength = 60; return f }, StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reassemble(tt.order(build()))
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProtocolError, got %v", err)
			}
			if perr.Status != tt.status {
				t.Errorf("status = 0x%02X, want 0x%02X", uint8(perr.Status), uint8(tt.status))
			}
		})
	}
}

func TestReassembler_ExpectedType(t *testing.T) {
	frames, _ := BuildRequest(MsgGetStatus, patternPayload(20))

	r := NewReassembler()
	r.Expect(MsgGetConfig)
	if _, err := r.Add(&frames[0]); !errors.Is(err, ErrProtocol) {
		t.Errorf("expected type mismatch error, got %v", err)
	}
	if r.State() != StateFailed || r.Err() == nil {
		t.Errorf("state %s err %v", r.State(), r.Err())
	}
	if _, err := r.Add(&frames[0]); err == nil {
		t.Error("failed reassembler should keep failing until Reset")
	}
}

func TestReassemble_SingleFrameFastPath(t *testing.T) {
	f := Frame{Type: MsgGetStatus, Sequence: 0, Total: 1, DataLength: 3}
	copy(f.Data[:], []byte{1, 2, 3})

	data, err := Reassemble([]Frame{f})
	if err != nil || !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("got % X, %v", data, err)
	}

	f.Total = 2
	if _, err := Reassemble([]Frame{f}); err == nil {
		t.Error("incomplete single frame should fail")
	}

	if _, err := Reassemble(nil); err == nil {
		t.Error("no frames should fail")
	}
}

func TestStatusText(t *testing.T) {
	if StatusText(StatusOK) != "success" {
		t.Errorf("StatusText(0) = %q", StatusText(StatusOK))
	}
	if StatusText(StatusBusy) == StatusText(StatusStorage) {
		t.Error("distinct codes should have distinct text")
	}
	if StatusText(0x42) != "error 0x42" {
		t.Errorf("unknown code text %q", StatusText(0x42))
	}
}
