// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"bytes"
	"fmt"
)

// AxisLayout selects the field layout inside each 16-byte axis entry.
type AxisLayout int

const (
	// AxisLayoutCompact stores smoothing as one byte:
	// smoothing u8 @7, deadband u16 @8, curve u8 @10.
	AxisLayoutCompact AxisLayout = iota

	// AxisLayoutWide stores smoothing as a 16-bit EWMA alpha:
	// smoothing u16 @7, deadband u16 @9, curve u8 @11.
	AxisLayoutWide
)

func (l AxisLayout) String() string {
	switch l {
	case AxisLayoutCompact:
		return "compact"
	case AxisLayoutWide:
		return "wide"
	default:
		return fmt.Sprintf("AxisLayout(%d)", int(l))
	}
}

// ParseAxisLayout converts a layout name back to its value.
func ParseAxisLayout(name string) (AxisLayout, error) {
	switch name {
	case "compact", "":
		return AxisLayoutCompact, nil
	case "wide":
		return AxisLayoutWide, nil
	}
	return 0, fmt.Errorf("unknown axis layout %q", name)
}

// Profile bundles magic byte order, axis layout and checksum scope.
type Profile int

const (
	// ProfileHost matches documents produced by the host tooling.
	ProfileHost Profile = iota
	// ProfileFirmware matches documents written by the firmware itself.
	ProfileFirmware
)

func (p Profile) String() string {
	if p == ProfileFirmware {
		return "firmware"
	}
	return "host"
}

// ParseProfile converts a profile name back to its value.
func ParseProfile(name string) (Profile, error) {
	switch name {
	case "host", "":
		return ProfileHost, nil
	case "firmware":
		return ProfileFirmware, nil
	}
	return 0, fmt.Errorf("unknown codec profile %q", name)
}

// Codec decodes and encodes configuration documents.
type Codec struct {
	magic  [4]byte
	layout AxisLayout
	scope  ChecksumScope
	logger Logger
}

type codecConfig struct {
	profile Profile
	layout  *AxisLayout
	scope   *ChecksumScope
	logger  Logger
}

// Option configures a Codec.
type Option func(*codecConfig)

// WithProfile selects a preset. Explicit layout and scope options win over
// the preset regardless of order.
func WithProfile(p Profile) Option {
	return func(c *codecConfig) {
		c.profile = p
	}
}

// WithAxisLayout overrides the axis entry layout.
func WithAxisLayout(l AxisLayout) Option {
	return func(c *codecConfig) {
		c.layout = &l
	}
}

// WithChecksumScope overrides the checksum coverage.
func WithChecksumScope(s ChecksumScope) Option {
	return func(c *codecConfig) {
		c.scope = &s
	}
}

// WithLogger sets a logger for decode warnings.
func WithLogger(l Logger) Option {
	return func(c *codecConfig) {
		c.logger = l
	}
}

var defaultCodec = NewCodec()

// NewCodec returns a codec configured by opts. With no options it uses
// ProfileHost.
func NewCodec(opts ...Option) *Codec {
	cfg := codecConfig{profile: ProfileHost}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Codec{
		magic:  Magic,
		layout: AxisLayoutCompact,
		scope:  ChecksumScopeTail,
		logger: cfg.logger,
	}
	if cfg.profile == ProfileFirmware {
		c.magic = FirmwareMagic
		c.layout = AxisLayoutWide
		c.scope = ChecksumScopeFirmware
	}
	if cfg.layout != nil {
		c.layout = *cfg.layout
	}
	if cfg.scope != nil {
		c.scope = *cfg.scope
	}
	if c.logger == nil {
		c.logger = NopLogger{}
	}
	return c
}

// AxisLayout returns the layout the codec uses.
func (c *Codec) AxisLayout() AxisLayout { return c.layout }

// ChecksumScope returns the checksum coverage the codec uses.
func (c *Codec) ChecksumScope() ChecksumScope { return c.scope }

// Decode parses a document using the default codec.
func Decode(b []byte) (*Document, error) {
	return defaultCodec.Decode(b)
}

// Encode serializes a document using the default codec.
func Encode(doc *Document) ([]byte, error) {
	return defaultCodec.Encode(doc)
}

// Decode parses b into a Document. The buffer may be longer than the
// declared size (frame padding) but tables are only read up to that size.
// The checksum is not verified here.
func (c *Codec) Decode(b []byte) (*Document, error) {
	if err := checkBounds(b, 0, HeaderSize); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	var doc Document
	copy(doc.Header.Magic[:], b[offMagic:offMagic+4])
	if doc.Header.Magic != c.magic {
		return nil, fmt.Errorf("%w: got % X, want % X", ErrInvalidMagic, doc.Header.Magic[:], c.magic[:])
	}

	cur := &cursor{buf: b, off: offVersion}
	doc.Header.Version = cur.u16()
	doc.Header.Size = cur.u16()
	doc.Header.Checksum = cur.u32()
	copy(doc.Header.Reserved[:], b[offHdrRsvd:HeaderSize])
	cur.off = HeaderSize

	size := int(doc.Header.Size)
	if size != len(b) {
		c.logger.Warn("declared size differs from buffer length", "declared", size, "buffer", len(b))
	}
	if size < MinDocumentSize {
		return nil, fmt.Errorf("%w: declared size %d below minimum %d", ErrInvalidSize, size, MinDocumentSize)
	}

	doc.USB.VendorID = cur.u16()
	doc.USB.ProductID = cur.u16()
	doc.USB.Manufacturer = cur.str(StringSlotSize)
	doc.USB.Product = cur.str(StringSlotSize)
	cur.skip(8)

	pinMapCount := int(cur.u8())
	inputCount := int(cur.u8())
	doc.ShiftRegCount = cur.u8()
	cur.skip(1)

	for i := range doc.Axes {
		doc.Axes[i] = c.decodeAxis(cur)
	}
	if cur.err != nil {
		return nil, fmt.Errorf("decode fixed section: %w", cur.err)
	}

	// Tables end at the declared size; bytes past it are padding
	if end := max(size, FixedSize); end < len(cur.buf) {
		cur.buf = cur.buf[:end]
	}

	doc.PinMap = make([]PinMapEntry, 0, pinMapCount)
	for i := 0; i < pinMapCount; i++ {
		if !cur.remaining(PinMapEntrySize) {
			return nil, &IncompleteTableError{Table: "pin map", Declared: pinMapCount, Decoded: i}
		}
		doc.PinMap = append(doc.PinMap, PinMapEntry{
			Name: cur.str(PinNameSlotSize),
			Type: PinType(cur.u8()),
		})
		cur.skip(1)
	}

	doc.Inputs = make([]LogicalInput, 0, inputCount)
	for i := 0; i < inputCount; i++ {
		if !cur.remaining(LogicalInputSize) {
			return nil, &IncompleteTableError{Table: "logical input", Declared: inputCount, Decoded: i}
		}
		doc.Inputs = append(doc.Inputs, decodeInput(cur))
	}

	if cur.err != nil {
		return nil, fmt.Errorf("decode tables: %w", cur.err)
	}

	c.logger.Debug("decoded config",
		"version", doc.Header.Version,
		"size", size,
		"pins", len(doc.PinMap),
		"inputs", len(doc.Inputs))

	return &doc, nil
}

func (c *Codec) decodeAxis(cur *cursor) AxisEntry {
	start := cur.off
	var a AxisEntry
	a.Enabled = cur.u8() != 0
	a.Pin = cur.u8()
	a.MinValue = cur.u16()
	a.MaxValue = cur.u16()
	a.FilterLevel = FilterLevel(cur.u8())
	if c.layout == AxisLayoutWide {
		a.Smoothing = cur.u16()
	} else {
		a.Smoothing = uint16(cur.u8())
	}
	a.Deadband = cur.u16()
	a.Curve = Curve(cur.u8())
	if cur.err == nil {
		cur.skip(start + AxisEntrySize - cur.off)
	}
	return a
}

func decodeInput(cur *cursor) LogicalInput {
	kind := InputKind(cur.u8())
	in := LogicalInput{
		Behavior:    Behavior(cur.u8()),
		JoyButtonID: cur.u8(),
		Reversed:    cur.u8() != 0,
		LatchMode:   LatchMode(cur.u8()),
	}
	cur.skip(3)
	var raw [2]byte
	raw[0] = cur.u8()
	raw[1] = cur.u8()
	in.Source = decodeSource(kind, raw)
	return in
}

// EncodedSize returns the serialized length of doc.
func EncodedSize(doc *Document) int {
	return FixedSize + len(doc.PinMap)*PinMapEntrySize + len(doc.Inputs)*LogicalInputSize
}

// Encode serializes doc. Size and checksum are recomputed; doc is not
// modified.
func (c *Codec) Encode(doc *Document) ([]byte, error) {
	if len(doc.PinMap) > 0xFF {
		return nil, fmt.Errorf("pin map has %d entries, max 255", len(doc.PinMap))
	}
	if len(doc.Inputs) > 0xFF {
		return nil, fmt.Errorf("logical input table has %d entries, max 255", len(doc.Inputs))
	}
	size := EncodedSize(doc)
	if size > 0xFFFF {
		return nil, fmt.Errorf("%w: document would be %d bytes", ErrInvalidSize, size)
	}

	buf := make([]byte, size)
	copy(buf[offMagic:], c.magic[:])
	_ = PutUint16(buf, offVersion, doc.Header.Version)
	_ = PutUint16(buf, offSize, uint16(size))
	copy(buf[offHdrRsvd:HeaderSize], doc.Header.Reserved[:])

	off := HeaderSize
	_ = PutUint16(buf, off, doc.USB.VendorID)
	_ = PutUint16(buf, off+2, doc.USB.ProductID)
	_ = PutString(buf, off+4, StringSlotSize, doc.USB.Manufacturer)
	_ = PutString(buf, off+4+StringSlotSize, StringSlotSize, doc.USB.Product)
	off += USBIdentitySize

	buf[off] = uint8(len(doc.PinMap))
	buf[off+1] = uint8(len(doc.Inputs))
	buf[off+2] = doc.ShiftRegCount
	off += CountsSize

	for i, a := range doc.Axes {
		if err := c.encodeAxis(buf[off:off+AxisEntrySize], a); err != nil {
			return nil, fmt.Errorf("axis %s: %w", Axis(i), err)
		}
		off += AxisEntrySize
	}

	for _, p := range doc.PinMap {
		_ = PutString(buf, off, PinNameSlotSize, p.Name)
		buf[off+PinNameSlotSize] = uint8(p.Type)
		off += PinMapEntrySize
	}

	for _, in := range doc.Inputs {
		rec := buf[off : off+LogicalInputSize]
		rec[0] = uint8(in.Kind())
		rec[1] = uint8(in.Behavior)
		rec[2] = in.JoyButtonID
		if in.Reversed {
			rec[3] = 1
		}
		rec[4] = uint8(in.LatchMode)
		var raw [2]byte
		if in.Source != nil {
			in.Source.put(&raw)
		}
		rec[8], rec[9] = raw[0], raw[1]
		off += LogicalInputSize
	}

	_ = PutUint32(buf, offChecksum, Checksum(buf, size, c.scope))
	return buf, nil
}

func (c *Codec) encodeAxis(rec []byte, a AxisEntry) error {
	if a.Enabled {
		rec[0] = 1
	}
	rec[1] = a.Pin
	_ = PutUint16(rec, 2, a.MinValue)
	_ = PutUint16(rec, 4, a.MaxValue)
	rec[6] = uint8(a.FilterLevel)
	if c.layout == AxisLayoutWide {
		_ = PutUint16(rec, 7, a.Smoothing)
		_ = PutUint16(rec, 9, a.Deadband)
		rec[11] = uint8(a.Curve)
		return nil
	}
	if a.Smoothing > 0xFF {
		return fmt.Errorf("smoothing %d does not fit the compact layout", a.Smoothing)
	}
	rec[7] = uint8(a.Smoothing)
	_ = PutUint16(rec, 8, a.Deadband)
	rec[10] = uint8(a.Curve)
	return nil
}

// VerifyChecksum checks b against its stored checksum using the codec's
// scope.
func (c *Codec) VerifyChecksum(b []byte) error {
	return verifyChecksum(b, c.scope)
}

// ValidateChecksum reports whether b carries a correct checksum.
func (c *Codec) ValidateChecksum(b []byte) bool {
	return c.VerifyChecksum(b) == nil
}

// DecodeVerified decodes b after checking its checksum.
func (c *Codec) DecodeVerified(b []byte) (*Document, error) {
	if err := c.VerifyChecksum(b); err != nil {
		// Magic is checked first so an erased slot reports as absent
		// rather than as a checksum failure.
		if len(b) >= 4 && !bytes.Equal(b[:4], c.magic[:]) {
			return nil, fmt.Errorf("%w: got % X", ErrInvalidMagic, b[:4])
		}
		return nil, err
	}
	return c.Decode(b)
}
