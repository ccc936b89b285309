// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport moves JoyCore protocol traffic over HID feature reports
// and line-oriented serial or WebSocket streams.
package transport

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout means no reply arrived within the read window. The
	// operation may be retried.
	ErrTimeout = errors.New("transport timeout")

	// ErrTransport marks device disconnects and I/O failures.
	ErrTransport = errors.New("transport failure")

	// ErrMonitoring is returned by Request while the line channel is in
	// monitor mode.
	ErrMonitoring = errors.New("line transport is monitoring")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport closed")
)

// Error wraps an underlying I/O failure. It matches both ErrTransport and
// the wrapped error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// DeviceError is an "ERROR:" reply from the firmware.
type DeviceError struct {
	Command string
	Reason  string
	Detail  string
}

func (e *DeviceError) Error() string {
	var b strings.Builder
	b.WriteString("device error")
	if e.Command != "" {
		b.WriteString(" for " + e.Command)
	}
	b.WriteString(": " + e.Reason)
	if e.Detail != "" {
		b.WriteString(" (" + e.Detail + ")")
	}
	return b.String()
}
