// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import "fmt"

// StatusSize is the full length of an encoded ConfigStatus.
const StatusSize = 20

// ConfigStatus is the device's storage and configuration summary.
type ConfigStatus struct {
	StorageInitialized bool
	ConfigLoaded       bool
	UsingDefaults      bool
	Mode               ConfigMode
	StorageUsed        uint32
	StorageAvailable   uint32
	ConfigVersion      uint16
}

// DecodeStatus parses a status block. At least 16 bytes are required.
func DecodeStatus(b []byte) (*ConfigStatus, error) {
	if err := checkBounds(b, 0, 16); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	cur := &cursor{buf: b}
	s := &ConfigStatus{
		StorageInitialized: cur.u8() != 0,
		ConfigLoaded:       cur.u8() != 0,
		UsingDefaults:      cur.u8() != 0,
		Mode:               ConfigMode(cur.u8()),
		StorageUsed:        cur.u32(),
		StorageAvailable:   cur.u32(),
		ConfigVersion:      cur.u16(),
	}
	if cur.err != nil {
		return nil, fmt.Errorf("decode status: %w", cur.err)
	}
	return s, nil
}

// EncodeStatus serializes s into its 20-byte form.
func EncodeStatus(s *ConfigStatus) []byte {
	buf := make([]byte, StatusSize)
	buf[0] = boolByte(s.StorageInitialized)
	buf[1] = boolByte(s.ConfigLoaded)
	buf[2] = boolByte(s.UsingDefaults)
	buf[3] = uint8(s.Mode)
	_ = PutUint32(buf, 4, s.StorageUsed)
	_ = PutUint32(buf, 8, s.StorageAvailable)
	_ = PutUint16(buf, 12, s.ConfigVersion)
	return buf
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// ValidationReportSize is the length of a VALIDATE_CONFIG reply payload.
const ValidationReportSize = 36

// ValidationReport is the device's verdict on a VALIDATE_CONFIG request.
type ValidationReport struct {
	Valid        bool
	ErrorCount   uint8
	WarningCount uint8
	FirstError   string
}

// DecodeValidationReport parses a VALIDATE_CONFIG reply payload.
func DecodeValidationReport(b []byte) (*ValidationReport, error) {
	cur := &cursor{buf: b}
	r := &ValidationReport{
		Valid:        cur.u8() != 0,
		ErrorCount:   cur.u8(),
		WarningCount: cur.u8(),
	}
	cur.skip(1)
	r.FirstError = cur.str(ValidationReportSize - 4)
	if cur.err != nil {
		return nil, fmt.Errorf("decode validation report: %w", cur.err)
	}
	return r, nil
}
