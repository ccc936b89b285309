// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"bytes"
	"encoding/binary"
	"strings"
)

func checkBounds(buf []byte, off, n int) error {
	if off < 0 || n < 0 || off+n > len(buf) {
		return &TruncatedError{Offset: off, Need: n, Have: max(len(buf)-off, 0)}
	}
	return nil
}

// ReadUint8 reads one byte at off.
func ReadUint8(buf []byte, off int) (uint8, error) {
	if err := checkBounds(buf, off, 1); err != nil {
		return 0, err
	}
	return buf[off], nil
}

// ReadUint16 reads a little-endian uint16 at off.
func ReadUint16(buf []byte, off int) (uint16, error) {
	if err := checkBounds(buf, off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[off:]), nil
}

// ReadUint32 reads a little-endian uint32 at off.
func ReadUint32(buf []byte, off int) (uint32, error) {
	if err := checkBounds(buf, off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[off:]), nil
}

// ReadBytes returns a copy of n bytes at off.
func ReadBytes(buf []byte, off, n int) ([]byte, error) {
	if err := checkBounds(buf, off, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, buf[off:off+n])
	return out, nil
}

// ReadString decodes a fixed-width zero-padded string slot. Text ends at the
// first NUL; invalid UTF-8 is replaced with U+FFFD.
func ReadString(buf []byte, off, n int) (string, error) {
	if err := checkBounds(buf, off, n); err != nil {
		return "", err
	}
	return slotString(buf[off : off+n]), nil
}

func slotString(slot []byte) string {
	if i := bytes.IndexByte(slot, 0); i >= 0 {
		slot = slot[:i]
	}
	return strings.ToValidUTF8(string(slot), "�")
}

// PutUint8 writes v at off.
func PutUint8(buf []byte, off int, v uint8) error {
	if err := checkBounds(buf, off, 1); err != nil {
		return err
	}
	buf[off] = v
	return nil
}

// PutUint16 writes v little-endian at off.
func PutUint16(buf []byte, off int, v uint16) error {
	if err := checkBounds(buf, off, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(buf[off:], v)
	return nil
}

// PutUint32 writes v little-endian at off.
func PutUint32(buf []byte, off int, v uint32) error {
	if err := checkBounds(buf, off, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[off:], v)
	return nil
}

// PutString writes s into an n-byte slot, truncating to n-1 bytes so the
// slot always ends with at least one NUL.
func PutString(buf []byte, off, n int, s string) error {
	if err := checkBounds(buf, off, n); err != nil {
		return err
	}
	slot := buf[off : off+n]
	clear(slot)
	if n == 0 {
		return nil
	}
	copy(slot[:n-1], s)
	return nil
}

// cursor decodes sequential fields and remembers the first failure so a
// record can be read without checking every field.
type cursor struct {
	buf []byte
	off int
	err error
}

func (c *cursor) u8() uint8 {
	if c.err != nil {
		return 0
	}
	v, err := ReadUint8(c.buf, c.off)
	c.advance(1, err)
	return v
}

func (c *cursor) u16() uint16 {
	if c.err != nil {
		return 0
	}
	v, err := ReadUint16(c.buf, c.off)
	c.advance(2, err)
	return v
}

func (c *cursor) u32() uint32 {
	if c.err != nil {
		return 0
	}
	v, err := ReadUint32(c.buf, c.off)
	c.advance(4, err)
	return v
}

func (c *cursor) str(n int) string {
	if c.err != nil {
		return ""
	}
	v, err := ReadString(c.buf, c.off, n)
	c.advance(n, err)
	return v
}

func (c *cursor) skip(n int) {
	if c.err != nil {
		return
	}
	c.advance(n, checkBounds(c.buf, c.off, n))
}

func (c *cursor) advance(n int, err error) {
	if err != nil {
		c.err = err
		return
	}
	c.off += n
}

// remaining reports whether at least n bytes are left.
func (c *cursor) remaining(n int) bool {
	return c.err == nil && c.off+n <= len(c.buf)
}
