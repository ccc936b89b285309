// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Serial commands understood by the firmware.
const (
	CmdIdentify        = "IDENTIFY"
	CmdStatus          = "STATUS"
	CmdStorageInfo     = "STORAGE_INFO"
	CmdListFiles       = "LIST_FILES"
	CmdReadFile        = "READ_FILE"
	CmdFormatStorage   = "FORMAT_STORAGE"
	CmdReadGPIOStates  = "READ_GPIO_STATES"
	CmdReadMatrixState = "READ_MATRIX_STATE"
	CmdReadShiftReg    = "READ_SHIFT_REG"
	CmdStartRawMonitor = "START_RAW_MONITOR"
	CmdStopRawMonitor  = "STOP_RAW_MONITOR"
	CmdSaveConfig      = "SAVE_CONFIG"
	CmdForceDefaults   = "FORCE_DEFAULT_CONFIG"
)

// Response prefixes and markers.
const (
	PrefixIdentify    = "JOYCORE_ID:"
	PrefixGPIO        = "GPIO_STATES:"
	PrefixMatrix      = "MATRIX_STATE:"
	PrefixShiftReg    = "SHIFT_REG:"
	PrefixFileData    = "FILE_DATA:"
	PrefixError       = "ERROR:"
	PrefixOK          = "OK:"
	PrefixStorageUsed = "STORAGE_USED:"
	PrefixStorageFree = "STORAGE_AVAILABLE:"
	PrefixStorageInit = "STORAGE_INITIALIZED:"
	MarkerFiles       = "FILES:"
	MarkerEndFiles    = "END_FILES"
	AckMonitorStarted = "OK:RAW_MONITOR_STARTED"
	AckMonitorStopped = "OK:RAW_MONITOR_STOPPED"

	DeviceSignature = "JOYCORE-FW"
	ConfigFileName  = "/config.bin"
)

func malformed(kind, line string) error {
	return fmt.Errorf("%w: %s: %q", ErrMalformedLine, kind, line)
}

// Identity is a parsed IDENTIFY response.
type Identity struct {
	Signature string
	Magic     uint32
	Firmware  string
}

// ParseIdentify parses "JOYCORE_ID:JOYCORE-FW:<8 hex>:<version>".
func ParseIdentify(line string) (*Identity, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), PrefixIdentify)
	if !ok {
		return nil, malformed("identify", line)
	}
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 || len(parts[1]) != 8 {
		return nil, malformed("identify", line)
	}
	if parts[0] != DeviceSignature {
		return nil, fmt.Errorf("%w: unexpected signature %q", ErrMalformedLine, parts[0])
	}
	magic, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return nil, malformed("identify", line)
	}
	if uint32(magic) != DeviceMagic {
		return nil, fmt.Errorf("%w: device magic %08X", ErrInvalidMagic, magic)
	}
	return &Identity{Signature: parts[0], Magic: uint32(magic), Firmware: parts[2]}, nil
}

// RawEvent is one raw input telemetry line.
type RawEvent interface {
	Millis() uint64
}

// GPIOState is a snapshot of all GPIO input levels.
type GPIOState struct {
	Mask      uint32
	Timestamp uint64
}

// High reports whether pin reads high.
func (g GPIOState) High(pin int) bool {
	if pin < 0 || pin > 31 {
		return false
	}
	return g.Mask&(1<<uint(pin)) != 0
}

// Millis returns the device timestamp in milliseconds.
func (g GPIOState) Millis() uint64 { return g.Timestamp }

// MatrixState is the connection state of one matrix intersection.
type MatrixState struct {
	Row       uint8
	Col       uint8
	Connected bool
	Timestamp uint64
}

// Millis returns the device timestamp in milliseconds.
func (m MatrixState) Millis() uint64 { return m.Timestamp }

// ShiftRegState is the latched byte of one shift register.
type ShiftRegState struct {
	Register  uint8
	Value     uint8
	Timestamp uint64
}

// Millis returns the device timestamp in milliseconds.
func (s ShiftRegState) Millis() uint64 { return s.Timestamp }

// Bit reports whether bit n of the register is set.
func (s ShiftRegState) Bit(n int) bool {
	if n < 0 || n > 7 {
		return false
	}
	return s.Value&(1<<uint(n)) != 0
}

func parseHexField(field string, bits int) (uint64, bool) {
	digits, ok := strings.CutPrefix(field, "0x")
	if !ok {
		digits, ok = strings.CutPrefix(field, "0X")
	}
	if !ok || digits == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(digits, 16, bits)
	return v, err == nil
}

// ParseGPIOStates parses "GPIO_STATES:0x<hex>:<timestamp>".
func ParseGPIOStates(line string) (*GPIOState, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), PrefixGPIO)
	if !ok {
		return nil, malformed("gpio", line)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return nil, malformed("gpio", line)
	}
	mask, ok := parseHexField(parts[0], 32)
	if !ok {
		return nil, malformed("gpio", line)
	}
	ts, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, malformed("gpio", line)
	}
	return &GPIOState{Mask: uint32(mask), Timestamp: ts}, nil
}

// ParseMatrixState parses "MATRIX_STATE:<row>:<col>:<0|1>:<timestamp>".
// The NO_MATRIX_CONFIGURED and NO_MATRIX_PINS_CONFIGURED forms return
// ErrNotConfigured.
func ParseMatrixState(line string) (*MatrixState, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), PrefixMatrix)
	if !ok {
		return nil, malformed("matrix", line)
	}
	if strings.HasPrefix(rest, "NO_MATRIX") {
		return nil, fmt.Errorf("matrix: %w (%s)", ErrNotConfigured, rest)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 4 {
		return nil, malformed("matrix", line)
	}
	row, err1 := strconv.ParseUint(parts[0], 10, 8)
	col, err2 := strconv.ParseUint(parts[1], 10, 8)
	ts, err3 := strconv.ParseUint(parts[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || (parts[2] != "0" && parts[2] != "1") {
		return nil, malformed("matrix", line)
	}
	return &MatrixState{Row: uint8(row), Col: uint8(col), Connected: parts[2] == "1", Timestamp: ts}, nil
}

// ParseShiftReg parses "SHIFT_REG:<id>:0x<hex>:<timestamp>". The
// NO_SHIFT_REG_CONFIGURED form returns ErrNotConfigured.
func ParseShiftReg(line string) (*ShiftRegState, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), PrefixShiftReg)
	if !ok {
		return nil, malformed("shift register", line)
	}
	if strings.HasPrefix(rest, "NO_SHIFT_REG") {
		return nil, fmt.Errorf("shift register: %w (%s)", ErrNotConfigured, rest)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return nil, malformed("shift register", line)
	}
	id, err1 := strconv.ParseUint(parts[0], 10, 8)
	value, ok := parseHexField(parts[1], 8)
	ts, err3 := strconv.ParseUint(parts[2], 10, 64)
	if err1 != nil || !ok || err3 != nil {
		return nil, malformed("shift register", line)
	}
	return &ShiftRegState{Register: uint8(id), Value: uint8(value), Timestamp: ts}, nil
}

// ParseRawLine dispatches a telemetry line to the matching parser.
func ParseRawLine(line string) (RawEvent, error) {
	line = strings.TrimSpace(line)
	var (
		event RawEvent
		err   error
	)
	switch {
	case strings.HasPrefix(line, PrefixGPIO):
		event, err = ParseGPIOStates(line)
	case strings.HasPrefix(line, PrefixMatrix):
		event, err = ParseMatrixState(line)
	case strings.HasPrefix(line, PrefixShiftReg):
		event, err = ParseShiftReg(line)
	default:
		return nil, malformed("raw state", line)
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// FileData is a parsed READ_FILE response.
type FileData struct {
	Name string
	Data []byte
}

// ParseFileData parses "FILE_DATA:<name>:<size>:<hex>". The declared size
// must match the decoded byte count.
func ParseFileData(line string) (*FileData, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), PrefixFileData)
	if !ok {
		return nil, malformed("file data", line)
	}
	hexStart := strings.LastIndexByte(rest, ':')
	if hexStart < 0 {
		return nil, malformed("file data", line)
	}
	sizeStart := strings.LastIndexByte(rest[:hexStart], ':')
	if sizeStart < 0 {
		return nil, malformed("file data", line)
	}
	name := rest[:sizeStart]
	size, err := strconv.Atoi(rest[sizeStart+1 : hexStart])
	if err != nil || size < 0 {
		return nil, malformed("file data", line)
	}
	data, err := hex.DecodeString(rest[hexStart+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: file data hex: %v", ErrMalformedLine, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: %s declared %d bytes, got %d", ErrMalformedLine, name, size, len(data))
	}
	return &FileData{Name: name, Data: data}, nil
}

// StorageInfo is a parsed STORAGE_INFO response.
type StorageInfo struct {
	Used        uint32
	Available   uint32
	Initialized bool
}

// ParseStorageInfo collects the three STORAGE_* lines. Unrelated lines are
// ignored; every field must be present.
func ParseStorageInfo(lines []string) (*StorageInfo, error) {
	var info StorageInfo
	var seen int
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if v, ok := strings.CutPrefix(line, PrefixStorageUsed); ok {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, malformed("storage used", line)
			}
			info.Used = uint32(n)
			seen |= 1
		} else if v, ok := strings.CutPrefix(line, PrefixStorageFree); ok {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, malformed("storage available", line)
			}
			info.Available = uint32(n)
			seen |= 2
		} else if v, ok := strings.CutPrefix(line, PrefixStorageInit); ok {
			switch v {
			case "YES":
				info.Initialized = true
			case "NO":
			default:
				return nil, malformed("storage initialized", line)
			}
			seen |= 4
		}
	}
	if seen != 7 {
		return nil, fmt.Errorf("%w: incomplete storage info", ErrMalformedLine)
	}
	return &info, nil
}

// ParseFileList extracts names between the FILES: and END_FILES markers.
func ParseFileList(lines []string) ([]string, error) {
	var names []string
	inList := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == MarkerFiles:
			inList = true
		case line == MarkerEndFiles:
			if !inList {
				return nil, malformed("file list", line)
			}
			return names, nil
		case inList && line != "":
			names = append(names, line)
		}
	}
	return nil, fmt.Errorf("%w: file list missing %s", ErrMalformedLine, MarkerEndFiles)
}

// ErrorLine is a parsed "ERROR:<reason>[:<detail>]" response.
type ErrorLine struct {
	Reason string
	Detail string
}

// ParseError parses an error line. ok is false when line is not one.
func ParseError(line string) (ErrorLine, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), PrefixError)
	if !found {
		return ErrorLine{}, false
	}
	reason, detail, _ := strings.Cut(rest, ":")
	return ErrorLine{Reason: reason, Detail: detail}, true
}

// FormatResult is a parsed FORMAT_STORAGE response.
type FormatResult struct {
	Code int
	// Available is set only when the format succeeded.
	Available    uint32
	HasAvailable bool
}

// OK reports whether the firmware returned a success code.
func (r *FormatResult) OK() bool { return r.Code == 0 }

// ParseFormatResult reads "Format result: <n>" and the optional
// "Available space: <n>" line.
func ParseFormatResult(lines []string) (*FormatResult, error) {
	var res FormatResult
	found := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if v, ok := strings.CutPrefix(line, "Format result:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, malformed("format result", line)
			}
			res.Code = n
			found = true
		} else if v, ok := strings.CutPrefix(line, "Available space:"); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
			if err != nil {
				return nil, malformed("available space", line)
			}
			res.Available = uint32(n)
			res.HasAvailable = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no format result", ErrMalformedLine)
	}
	return &res, nil
}
