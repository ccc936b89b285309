// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package joycore provides a host-side Go implementation of the JoyCore
// configuration protocol.
//
// JoyCore firmware persists its configuration as a packed little-endian
// structure (StoredConfig). This package decodes and encodes that structure,
// frames it into 64-byte HID feature reports with multi-packet reassembly,
// and parses the line-oriented serial command grammar the firmware speaks on
// its CDC port.
package joycore

// Magic identifies a configuration document ("JOYC").
var Magic = [4]byte{'J', 'O', 'Y', 'C'}

// FirmwareMagic is the byte order the firmware produces when it stores the
// magic as a little-endian uint32 (0x4A4F5943).
var FirmwareMagic = [4]byte{0x43, 0x59, 0x4F, 0x4A}

// DeviceMagic is the magic as reported by the IDENTIFY command.
const DeviceMagic uint32 = 0x4A4F5943

// Document structure sizes
const (
	HeaderSize       = 16
	USBIdentitySize  = 76
	CountsSize       = 4
	AxisEntrySize    = 16
	AxisCount        = 8
	PinMapEntrySize  = 10
	LogicalInputSize = 10

	// FixedSize is the length of everything preceding the variable tables.
	FixedSize = HeaderSize + USBIdentitySize + CountsSize + AxisCount*AxisEntrySize

	// MinDocumentSize is the smallest size a header may declare.
	MinDocumentSize = HeaderSize + USBIdentitySize

	StringSlotSize  = 32
	PinNameSlotSize = 8
)

// Field offsets within the header
const (
	offMagic    = 0
	offVersion  = 4
	offSize     = 6
	offChecksum = 8
	offHdrRsvd  = 12
)

// Firmware limits (ConfigStructs.h)
const (
	MaxPinMapEntries  = 32
	MaxLogicalInputs  = 64
	MaxShiftRegisters = 8
	ConfigVersion     = 3
)

// Feature report framing
const (
	ReportID       = 0x02
	FrameSize      = 64
	FrameHeaderLen = 8
	FramePayload   = FrameSize - FrameHeaderLen
	MaxFrames      = 255
)

// Default USB identity of a JoyCore board
const (
	DefaultVendorID  = 0x2E8A // Raspberry Pi Foundation
	DefaultProductID = 0xA02F
)

// MessageType is the command carried in byte 1 of a feature frame.
type MessageType uint8

// Message types (0x01-0x07)
const (
	MsgGetConfig      MessageType = 0x01
	MsgSetConfig      MessageType = 0x02
	MsgResetConfig    MessageType = 0x03
	MsgValidateConfig MessageType = 0x04
	MsgGetStatus      MessageType = 0x05
	MsgSaveConfig     MessageType = 0x06
	MsgLoadConfig     MessageType = 0x07
)

// Valid reports whether t is one of the defined message types.
func (t MessageType) Valid() bool {
	return t >= MsgGetConfig && t <= MsgLoadConfig
}

// Status is the status byte of a feature frame. Zero means success.
type Status uint8

// Status codes
const (
	StatusOK            Status = 0x00
	StatusInvalidType   Status = 0x01
	StatusInvalidLength Status = 0x02
	StatusChecksum      Status = 0x03
	StatusStorage       Status = 0x04
	StatusBusy          Status = 0x05
	StatusSequence      Status = 0x06
	StatusUnknown       Status = 0xFF
)

// ConfigMode is the firmware configuration source (ConfigMode.h).
type ConfigMode uint8

// Configuration modes
const (
	ModeStatic  ConfigMode = 0
	ModeStorage ConfigMode = 1
	ModeHybrid  ConfigMode = 2
)

// Axis identifies an entry in the fixed axis table.
type Axis int

// Canonical axis order
const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisRX
	AxisRY
	AxisRZ
	AxisS1
	AxisS2
)

// FilterLevel is the axis input filter strength.
type FilterLevel uint8

// Filter levels
const (
	FilterOff FilterLevel = iota
	FilterLow
	FilterMedium
	FilterHigh
)

// Curve is the axis response curve.
type Curve uint8

// Response curves
const (
	CurveLinear Curve = iota
	CurveSCurve
	CurveExponential
	CurveCustom
)

// PinType classifies a pin map entry.
type PinType uint8

// Pin types
const (
	PinUnused      PinType = 0
	PinButton      PinType = 1
	PinButtonRow   PinType = 2
	PinButtonCol   PinType = 3
	PinShiftRegPL  PinType = 4
	PinShiftRegCLK PinType = 5
	PinShiftRegQH  PinType = 6
)

// InputKind is the discriminant of a logical input record.
type InputKind uint8

// Input kinds
const (
	InputPin      InputKind = 0
	InputMatrix   InputKind = 1
	InputShiftReg InputKind = 2
)

// Behavior is the button behavior of a logical input.
type Behavior uint8

// Button behaviors
const (
	BehaviorNormal    Behavior = 0
	BehaviorMomentary Behavior = 1
	BehaviorEncA      Behavior = 2
	BehaviorEncB      Behavior = 3
)

// LatchMode is the quadrature latch mode of an encoder input.
// Zero means no latch mode was configured.
type LatchMode uint8

// Latch modes
const (
	LatchNone  LatchMode = 0
	LatchFour3 LatchMode = 1
	LatchFour0 LatchMode = 2
	LatchTwo03 LatchMode = 3
)
