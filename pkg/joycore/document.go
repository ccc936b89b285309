// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"strconv"
	"strings"
)

// Header is the 16-byte document header.
type Header struct {
	Magic    [4]byte
	Version  uint16
	Size     uint16
	Checksum uint32
	Reserved [4]byte
}

// MagicString returns the magic bytes as text.
func (h Header) MagicString() string {
	return string(h.Magic[:])
}

// USBIdentity is the USB descriptor block of a document.
type USBIdentity struct {
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
}

// AxisEntry configures one analog axis.
type AxisEntry struct {
	Enabled     bool
	Pin         uint8
	MinValue    uint16
	MaxValue    uint16
	FilterLevel FilterLevel
	Smoothing   uint16
	Deadband    uint16
	Curve       Curve
}

// PinMapEntry assigns a role to a named GPIO pin.
type PinMapEntry struct {
	Name string
	Type PinType
}

// Pin parses the GPIO number out of names like "GP12" or "12".
func (p PinMapEntry) Pin() (int, bool) {
	name := strings.TrimPrefix(strings.ToUpper(p.Name), "GP")
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsButton reports whether the pin feeds a direct or matrix button.
func (t PinType) IsButton() bool {
	return t == PinButton || t == PinButtonRow || t == PinButtonCol
}

// IsShiftReg reports whether the pin drives a shift register line.
func (t PinType) IsShiftReg() bool {
	return t == PinShiftRegPL || t == PinShiftRegCLK || t == PinShiftRegQH
}

// Valid reports whether t is a known pin type.
func (t PinType) Valid() bool {
	return t <= PinShiftRegQH
}

// IsEncoder reports whether the behavior is one half of a quadrature encoder.
func (b Behavior) IsEncoder() bool {
	return b == BehaviorEncA || b == BehaviorEncB
}

// Valid reports whether b is a known behavior.
func (b Behavior) Valid() bool {
	return b <= BehaviorEncB
}

// Valid reports whether m is unset or a known latch mode.
func (m LatchMode) Valid() bool {
	return m <= LatchTwo03
}

// Valid reports whether f is a known filter level.
func (f FilterLevel) Valid() bool {
	return f <= FilterHigh
}

// Valid reports whether c is a known curve.
func (c Curve) Valid() bool {
	return c <= CurveCustom
}

// Source is the physical origin of a logical input.
type Source interface {
	Kind() InputKind
	put(b *[2]byte)
}

// PinSource is a button wired directly to a GPIO pin.
type PinSource struct {
	Pin uint8
}

// MatrixSource is a button at a row/column intersection.
type MatrixSource struct {
	Row uint8
	Col uint8
}

// ShiftRegSource is one bit of a daisy-chained shift register.
type ShiftRegSource struct {
	Register uint8
	Bit      uint8
}

// UnknownSource keeps an unrecognized discriminant and its raw payload.
type UnknownSource struct {
	Type InputKind
	Raw  [2]byte
}

func (PinSource) Kind() InputKind      { return InputPin }
func (MatrixSource) Kind() InputKind   { return InputMatrix }
func (ShiftRegSource) Kind() InputKind { return InputShiftReg }
func (u UnknownSource) Kind() InputKind {
	return u.Type
}

func (s PinSource) put(b *[2]byte)      { b[0], b[1] = s.Pin, 0 }
func (s MatrixSource) put(b *[2]byte)   { b[0], b[1] = s.Row, s.Col }
func (s ShiftRegSource) put(b *[2]byte) { b[0], b[1] = s.Register, s.Bit }
func (s UnknownSource) put(b *[2]byte)  { *b = s.Raw }

func decodeSource(kind InputKind, raw [2]byte) Source {
	switch kind {
	case InputPin:
		return PinSource{Pin: raw[0]}
	case InputMatrix:
		return MatrixSource{Row: raw[0], Col: raw[1]}
	case InputShiftReg:
		return ShiftRegSource{Register: raw[0], Bit: raw[1]}
	default:
		return UnknownSource{Type: kind, Raw: raw}
	}
}

// LogicalInput maps a physical source to a joystick button.
type LogicalInput struct {
	Source      Source
	Behavior    Behavior
	JoyButtonID uint8
	Reversed    bool
	LatchMode   LatchMode
}

// Kind returns the source discriminant, or InputPin when unset.
func (in LogicalInput) Kind() InputKind {
	if in.Source == nil {
		return InputPin
	}
	return in.Source.Kind()
}

// Document is a decoded configuration.
type Document struct {
	Header        Header
	USB           USBIdentity
	ShiftRegCount uint8
	Axes          [AxisCount]AxisEntry
	PinMap        []PinMapEntry
	Inputs        []LogicalInput
}

// NewDocument returns an empty document at the current version with the
// default JoyCore USB identity.
func NewDocument() Document {
	return Document{
		Header: Header{Magic: Magic, Version: ConfigVersion},
		USB: USBIdentity{
			VendorID:     DefaultVendorID,
			ProductID:    DefaultProductID,
			Manufacturer: "JoyCore",
			Product:      "JoyCore Controller",
		},
	}
}

// EnabledAxes returns the positions of the enabled axes in table order.
func (d Document) EnabledAxes() []Axis {
	var out []Axis
	for i, a := range d.Axes {
		if a.Enabled {
			out = append(out, Axis(i))
		}
	}
	return out
}

// WithAxis returns a copy of d with axis a replaced.
func (d Document) WithAxis(a Axis, e AxisEntry) Document {
	d.Axes[a] = e
	return d
}

// WithUSB returns a copy of d with a new USB identity.
func (d Document) WithUSB(u USBIdentity) Document {
	d.USB = u
	return d
}

// WithPinMap returns a copy of d with the pin map replaced.
func (d Document) WithPinMap(entries []PinMapEntry) Document {
	d.PinMap = append([]PinMapEntry(nil), entries...)
	return d
}

// WithInputs returns a copy of d with the logical inputs replaced.
func (d Document) WithInputs(inputs []LogicalInput) Document {
	d.Inputs = append([]LogicalInput(nil), inputs...)
	return d
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	d.PinMap = append([]PinMapEntry(nil), d.PinMap...)
	d.Inputs = append([]LogicalInput(nil), d.Inputs...)
	return d
}
