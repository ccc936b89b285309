// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package docfile

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/joylink/pkg/joycore"
)

// File is the editable form of a configuration document. Enumerations are
// written by name.
type File struct {
	Magic          string      `json:"magic" yaml:"magic" toml:"magic"`
	Version        uint16      `json:"version" yaml:"version" toml:"version"`
	USB            USBFile     `json:"usb" yaml:"usb" toml:"usb"`
	ShiftRegisters uint8       `json:"shift_registers" yaml:"shift_registers" toml:"shift_registers"`
	Axes           []AxisFile  `json:"axes" yaml:"axes" toml:"axes"`
	Pins           []PinFile   `json:"pins" yaml:"pins" toml:"pins"`
	Inputs         []InputFile `json:"inputs" yaml:"inputs" toml:"inputs"`
}

// USBFile is the USB identity section.
type USBFile struct {
	VendorID     uint16 `json:"vendor_id" yaml:"vendor_id" toml:"vendor_id"`
	ProductID    uint16 `json:"product_id" yaml:"product_id" toml:"product_id"`
	Manufacturer string `json:"manufacturer" yaml:"manufacturer" toml:"manufacturer"`
	Product      string `json:"product" yaml:"product" toml:"product"`
}

// AxisFile is one analog axis. Axes missing from a file are disabled.
type AxisFile struct {
	Axis      string `json:"axis" yaml:"axis" toml:"axis"`
	Enabled   bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Pin       uint8  `json:"pin" yaml:"pin" toml:"pin"`
	Min       uint16 `json:"min" yaml:"min" toml:"min"`
	Max       uint16 `json:"max" yaml:"max" toml:"max"`
	Filter    string `json:"filter" yaml:"filter" toml:"filter"`
	Smoothing uint16 `json:"smoothing" yaml:"smoothing" toml:"smoothing"`
	Deadband  uint16 `json:"deadband" yaml:"deadband" toml:"deadband"`
	Curve     string `json:"curve" yaml:"curve" toml:"curve"`
}

// PinFile is one pin map entry.
type PinFile struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	Type string `json:"type" yaml:"type" toml:"type"`
}

// InputFile is one logical input. Only the coordinates of its source kind
// are used; unknown kinds keep their two raw bytes.
type InputFile struct {
	Source   string `json:"source" yaml:"source" toml:"source"`
	Pin      uint8  `json:"pin,omitempty" yaml:"pin,omitempty" toml:"pin,omitempty"`
	Row      uint8  `json:"row,omitempty" yaml:"row,omitempty" toml:"row,omitempty"`
	Col      uint8  `json:"col,omitempty" yaml:"col,omitempty" toml:"col,omitempty"`
	Register uint8  `json:"register,omitempty" yaml:"register,omitempty" toml:"register,omitempty"`
	Bit      uint8  `json:"bit,omitempty" yaml:"bit,omitempty" toml:"bit,omitempty"`
	Raw      []int  `json:"raw,omitempty" yaml:"raw,omitempty" toml:"raw,omitempty"`
	Behavior string `json:"behavior" yaml:"behavior" toml:"behavior"`
	Button   uint8  `json:"button" yaml:"button" toml:"button"`
	Reversed bool   `json:"reversed,omitempty" yaml:"reversed,omitempty" toml:"reversed,omitempty"`
	Latch    string `json:"latch,omitempty" yaml:"latch,omitempty" toml:"latch,omitempty"`
}

// FromDocument converts doc to its editable form.
func FromDocument(doc *joycore.Document) *File {
	f := &File{
		Magic:   string(doc.Header.Magic[:]),
		Version: doc.Header.Version,
		USB: USBFile{
			VendorID:     doc.USB.VendorID,
			ProductID:    doc.USB.ProductID,
			Manufacturer: doc.USB.Manufacturer,
			Product:      doc.USB.Product,
		},
		ShiftRegisters: doc.ShiftRegCount,
	}

	for i, a := range doc.Axes {
		f.Axes = append(f.Axes, AxisFile{
			Axis:      joycore.Axis(i).String(),
			Enabled:   a.Enabled,
			Pin:       a.Pin,
			Min:       a.MinValue,
			Max:       a.MaxValue,
			Filter:    a.FilterLevel.String(),
			Smoothing: a.Smoothing,
			Deadband:  a.Deadband,
			Curve:     a.Curve.String(),
		})
	}

	for _, p := range doc.PinMap {
		f.Pins = append(f.Pins, PinFile{Name: p.Name, Type: p.Type.String()})
	}

	for _, in := range doc.Inputs {
		entry := InputFile{
			Source:   in.Kind().String(),
			Behavior: in.Behavior.String(),
			Button:   in.JoyButtonID,
			Reversed: in.Reversed,
		}
		if in.LatchMode != joycore.LatchNone {
			entry.Latch = in.LatchMode.String()
		}
		switch src := in.Source.(type) {
		case joycore.PinSource:
			entry.Pin = src.Pin
		case joycore.MatrixSource:
			entry.Row, entry.Col = src.Row, src.Col
		case joycore.ShiftRegSource:
			entry.Register, entry.Bit = src.Register, src.Bit
		case joycore.UnknownSource:
			entry.Raw = []int{int(src.Raw[0]), int(src.Raw[1])}
		}
		f.Inputs = append(f.Inputs, entry)
	}

	return f
}

// Document converts f back to a configuration document. The header
// checksum and size are recomputed on encode.
func (f *File) Document() (*joycore.Document, error) {
	doc := joycore.NewDocument()

	if f.Magic != "" {
		if len(f.Magic) != len(doc.Header.Magic) {
			return nil, fmt.Errorf("magic %q must be %d bytes", f.Magic, len(doc.Header.Magic))
		}
		copy(doc.Header.Magic[:], f.Magic)
	}
	doc.Header.Version = f.Version
	doc.USB = joycore.USBIdentity{
		VendorID:     f.USB.VendorID,
		ProductID:    f.USB.ProductID,
		Manufacturer: f.USB.Manufacturer,
		Product:      f.USB.Product,
	}
	doc.ShiftRegCount = f.ShiftRegisters

	seen := map[joycore.Axis]bool{}
	for i, a := range f.Axes {
		axis, err := parseAxis(a.Axis)
		if err != nil {
			return nil, fmt.Errorf("axes[%d]: %w", i, err)
		}
		if seen[axis] {
			return nil, fmt.Errorf("axes[%d]: axis %s listed twice", i, axis)
		}
		seen[axis] = true

		filter, err := parseUint8[joycore.FilterLevel]("filter", a.Filter, "OFF")
		if err != nil {
			return nil, fmt.Errorf("axes[%d]: %w", i, err)
		}
		curve, err := parseUint8[joycore.Curve]("curve", a.Curve, "LINEAR")
		if err != nil {
			return nil, fmt.Errorf("axes[%d]: %w", i, err)
		}
		doc.Axes[axis] = joycore.AxisEntry{
			Enabled:     a.Enabled,
			Pin:         a.Pin,
			MinValue:    a.Min,
			MaxValue:    a.Max,
			FilterLevel: filter,
			Smoothing:   a.Smoothing,
			Deadband:    a.Deadband,
			Curve:       curve,
		}
	}

	for i, p := range f.Pins {
		t, err := parseUint8[joycore.PinType]("pin type", p.Type, "")
		if err != nil {
			return nil, fmt.Errorf("pins[%d]: %w", i, err)
		}
		doc.PinMap = append(doc.PinMap, joycore.PinMapEntry{Name: p.Name, Type: t})
	}

	for i, in := range f.Inputs {
		li, err := in.logicalInput()
		if err != nil {
			return nil, fmt.Errorf("inputs[%d]: %w", i, err)
		}
		doc.Inputs = append(doc.Inputs, li)
	}

	return &doc, nil
}

func (in InputFile) logicalInput() (joycore.LogicalInput, error) {
	kind, err := parseUint8[joycore.InputKind]("source", in.Source, "")
	if err != nil {
		return joycore.LogicalInput{}, err
	}
	behavior, err := parseUint8[joycore.Behavior]("behavior", in.Behavior, "NORMAL")
	if err != nil {
		return joycore.LogicalInput{}, err
	}
	latch, err := parseUint8[joycore.LatchMode]("latch", in.Latch, "NONE")
	if err != nil {
		return joycore.LogicalInput{}, err
	}

	var src joycore.Source
	switch kind {
	case joycore.InputPin:
		src = joycore.PinSource{Pin: in.Pin}
	case joycore.InputMatrix:
		src = joycore.MatrixSource{Row: in.Row, Col: in.Col}
	case joycore.InputShiftReg:
		src = joycore.ShiftRegSource{Register: in.Register, Bit: in.Bit}
	default:
		u := joycore.UnknownSource{Type: kind}
		if len(in.Raw) > 2 {
			return joycore.LogicalInput{}, fmt.Errorf("raw source holds at most 2 bytes, got %d", len(in.Raw))
		}
		for j, v := range in.Raw {
			if v < 0 || v > 0xFF {
				return joycore.LogicalInput{}, fmt.Errorf("raw byte %d out of range", v)
			}
			u.Raw[j] = byte(v)
		}
		src = u
	}

	return joycore.LogicalInput{
		Source:      src,
		Behavior:    behavior,
		JoyButtonID: in.Button,
		Reversed:    in.Reversed,
		LatchMode:   latch,
	}, nil
}

func parseAxis(name string) (joycore.Axis, error) {
	for a := joycore.Axis(0); a < joycore.AxisCount; a++ {
		if strings.EqualFold(a.String(), name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", name)
}

type namedUint8 interface {
	~uint8
	String() string
}

// parseUint8 maps a name back to its value by scanning the type's names,
// which include the numbered forms of undefined values. An empty name
// takes def.
func parseUint8[T namedUint8](field, name, def string) (T, error) {
	if name == "" {
		name = def
	}
	for v := 0; v <= 0xFF; v++ {
		if strings.EqualFold(T(v).String(), name) {
			return T(v), nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", field, name)
}
