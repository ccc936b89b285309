// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"errors"
	"testing"
)

func TestReadPrimitives(t *testing.T) {
	buf := []byte{0x01, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12}

	if v, err := ReadUint8(buf, 0); err != nil || v != 0x01 {
		t.Errorf("ReadUint8 = %d, %v", v, err)
	}
	if v, err := ReadUint16(buf, 1); err != nil || v != 0x1234 {
		t.Errorf("ReadUint16 = 0x%04X, %v", v, err)
	}
	if v, err := ReadUint32(buf, 3); err != nil || v != 0x12345678 {
		t.Errorf("ReadUint32 = 0x%08X, %v", v, err)
	}

	b, err := ReadBytes(buf, 1, 2)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	b[0] = 0xFF
	if buf[1] != 0x34 {
		t.Error("ReadBytes must return a copy")
	}
}

func TestReadPrimitives_Bounds(t *testing.T) {
	buf := make([]byte, 4)

	tests := []struct {
		name string
		read func() error
		need int
		have int
	}{
		{"u8 past end", func() error { _, err := ReadUint8(buf, 4); return err }, 1, 0},
		{"u16 straddling end", func() error { _, err := ReadUint16(buf, 3); return err }, 2, 1},
		{"u32 straddling end", func() error { _, err := ReadUint32(buf, 1); return err }, 4, 3},
		{"bytes too long", func() error { _, err := ReadBytes(buf, 0, 5); return err }, 5, 4},
		{"string too long", func() error { _, err := ReadString(buf, 2, 8); return err }, 8, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read()
			var trunc *TruncatedError
			if !errors.As(err, &trunc) {
				t.Fatalf("expected TruncatedError, got %v", err)
			}
			if trunc.Need != tt.need || trunc.Have != tt.have {
				t.Errorf("need=%d have=%d, want need=%d have=%d", trunc.Need, trunc.Have, tt.need, tt.have)
			}
			if !errors.Is(err, ErrTruncatedBuffer) {
				t.Error("TruncatedError should match ErrTruncatedBuffer")
			}
		})
	}

	if _, err := ReadUint8(buf, -1); err == nil {
		t.Error("negative offset should fail")
	}
}

func TestReadString(t *testing.T) {
	tests := []struct {
		name string
		slot []byte
		want string
	}{
		{"zero padded", []byte{'J', 'o', 'y', 0, 0, 0, 0, 0}, "Joy"},
		{"full slot", []byte("ABCDEFGH"), "ABCDEFGH"},
		{"stops at first NUL", []byte{'A', 0, 'B', 0}, "A"},
		{"empty", make([]byte, 8), ""},
		{"invalid UTF-8 replaced", []byte{'A', 0xFF, 'B', 0}, "A�B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadString(tt.slot, 0, len(tt.slot))
			if err != nil {
				t.Fatalf("ReadString failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPutPrimitives(t *testing.T) {
	buf := make([]byte, 8)

	if err := PutUint16(buf, 0, 0x2E8A); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x8A || buf[1] != 0x2E {
		t.Errorf("PutUint16 wrote % X", buf[:2])
	}
	if err := PutUint32(buf, 4, 0x4A4F5943); err != nil {
		t.Fatal(err)
	}
	if string(buf[4:]) != "CYOJ" {
		t.Errorf("PutUint32 wrote % X", buf[4:])
	}
	if err := PutUint32(buf, 5, 1); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("expected ErrTruncatedBuffer, got %v", err)
	}
	if err := PutUint8(buf, 8, 1); err == nil {
		t.Error("PutUint8 past end should fail")
	}
}

func TestPutString(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}

	if err := PutString(buf, 1, 4, "ABCDEFG"); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 'A', 'B', 'C', 0, 6, 7, 8, 9}
	if string(buf) != string(want) {
		t.Errorf("PutString wrote % X, want % X", buf, want)
	}

	if err := PutString(buf, 1, 4, "Z"); err != nil {
		t.Fatal(err)
	}
	if buf[1] != 'Z' || buf[2] != 0 || buf[3] != 0 {
		t.Errorf("shorter string should zero pad, got % X", buf)
	}
}

func TestCursor_StickyError(t *testing.T) {
	c := &cursor{buf: []byte{1, 2, 3}}
	_ = c.u16()
	_ = c.u16()
	if c.err == nil {
		t.Fatal("expected error after reading past end")
	}
	if v := c.u8(); v != 0 {
		t.Errorf("reads after error should return zero, got %d", v)
	}
	if c.off != 2 {
		t.Errorf("offset advanced after error: %d", c.off)
	}
}
