// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below wrap one of these so callers can
// match with errors.Is.
var (
	ErrTruncatedBuffer  = errors.New("truncated buffer")
	ErrIncompleteTable  = errors.New("incomplete table")
	ErrInvalidMagic     = errors.New("invalid magic")
	ErrInvalidSize      = errors.New("invalid size")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrProtocol         = errors.New("protocol error")
	ErrNotConfigured    = errors.New("not configured")
	ErrMalformedLine    = errors.New("malformed line")
)

// TruncatedError reports a read past the end of a buffer.
type TruncatedError struct {
	Offset int
	Need   int
	Have   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated buffer: need %d bytes at offset %d, have %d", e.Need, e.Offset, e.Have)
}

func (e *TruncatedError) Unwrap() error { return ErrTruncatedBuffer }

// IncompleteTableError reports a variable-length table that ended before
// its declared count.
type IncompleteTableError struct {
	Table    string
	Declared int
	Decoded  int
}

func (e *IncompleteTableError) Error() string {
	return fmt.Sprintf("incomplete %s table: declared %d entries, decoded %d", e.Table, e.Declared, e.Decoded)
}

func (e *IncompleteTableError) Unwrap() error { return ErrIncompleteTable }

// ChecksumMismatchError reports a stored checksum that does not match the
// document contents.
type ChecksumMismatchError struct {
	Stored   uint32
	Computed uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: stored 0x%08X, computed 0x%08X", e.Stored, e.Computed)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// ProtocolError reports a framing violation or a non-zero device status.
type ProtocolError struct {
	Op     string
	Status Status
	Reason string
}

func (e *ProtocolError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = StatusText(e.Status)
	}
	if e.Status != StatusOK {
		msg = fmt.Sprintf("%s (status 0x%02X)", msg, uint8(e.Status))
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// IsConfigAbsent reports whether err means the device or file holds no
// usable configuration, so the caller should fall back to defaults.
func IsConfigAbsent(err error) bool {
	return errors.Is(err, ErrInvalidMagic) || errors.Is(err, ErrChecksumMismatch)
}
