// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"encoding/binary"
	"fmt"
)

// Frame is one 64-byte feature report of the configuration protocol.
//
//	[REPORT_ID:1][TYPE:1][SEQ:1][TOTAL:1][LEN:2][STATUS:1][RSVD:1][DATA:56]
type Frame struct {
	Type       MessageType
	Sequence   uint8
	Total      uint8
	DataLength uint16
	Status     Status
	Data       [FramePayload]byte
}

// Payload returns the meaningful prefix of Data.
func (f *Frame) Payload() []byte {
	n := int(f.DataLength)
	if n > FramePayload {
		n = FramePayload
	}
	return f.Data[:n]
}

// MarshalBinary encodes the frame into a 64-byte buffer.
func (f *Frame) MarshalBinary() ([]byte, error) {
	if f.DataLength > FramePayload {
		return nil, &ProtocolError{Op: "marshal frame", Reason: fmt.Sprintf("data length %d exceeds %d", f.DataLength, FramePayload)}
	}
	buf := make([]byte, FrameSize)
	buf[0] = ReportID
	buf[1] = uint8(f.Type)
	buf[2] = f.Sequence
	buf[3] = f.Total
	binary.LittleEndian.PutUint16(buf[4:], f.DataLength)
	buf[6] = uint8(f.Status)
	copy(buf[FrameHeaderLen:], f.Data[:])
	return buf, nil
}

// UnmarshalBinary decodes b into f, see ParseFrame.
func (f *Frame) UnmarshalBinary(b []byte) error {
	parsed, err := ParseFrame(b)
	if err != nil {
		return err
	}
	*f = *parsed
	return nil
}

// ParseFrame decodes and validates a 64-byte feature report.
func ParseFrame(b []byte) (*Frame, error) {
	if len(b) != FrameSize {
		return nil, &ProtocolError{Op: "parse frame", Reason: fmt.Sprintf("frame length %d, expected %d", len(b), FrameSize)}
	}
	if b[0] != ReportID {
		return nil, &ProtocolError{Op: "parse frame", Reason: fmt.Sprintf("report ID 0x%02X, expected 0x%02X", b[0], ReportID)}
	}

	f := &Frame{
		Type:       MessageType(b[1]),
		Sequence:   b[2],
		Total:      b[3],
		DataLength: binary.LittleEndian.Uint16(b[4:]),
		Status:     Status(b[6]),
	}
	copy(f.Data[:], b[FrameHeaderLen:])

	if f.DataLength > FramePayload {
		return nil, &ProtocolError{Op: "parse frame", Status: f.Status, Reason: fmt.Sprintf("data length %d exceeds %d", f.DataLength, FramePayload)}
	}
	if f.Total == 0 {
		return nil, &ProtocolError{Op: "parse frame", Status: f.Status, Reason: "total packets is zero"}
	}
	if f.Sequence >= f.Total {
		return nil, &ProtocolError{Op: "parse frame", Status: f.Status, Reason: fmt.Sprintf("sequence %d not below total %d", f.Sequence, f.Total)}
	}
	return f, nil
}

// String returns a one-line summary of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("%s seq=%d/%d len=%d status=0x%02X", f.Type, f.Sequence, f.Total, f.DataLength, uint8(f.Status))
}
