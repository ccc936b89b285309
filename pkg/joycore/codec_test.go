// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"reflect"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

type recordingLogger struct {
	warnings []string
	debug    []string
}

func (l *recordingLogger) Debug(msg string, kv ...interface{}) { l.debug = append(l.debug, msg) }
func (l *recordingLogger) Info(msg string, kv ...interface{})  {}
func (l *recordingLogger) Warn(msg string, kv ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprint(append([]interface{}{msg}, kv...)...))
}
func (l *recordingLogger) Error(msg string, kv ...interface{}) {}

// sampleDocument returns a document exercising every table and source kind
func sampleDocument() *Document {
	doc := NewDocument()
	doc.ShiftRegCount = 2
	doc.Axes[AxisX] = AxisEntry{Enabled: true, Pin: 26, MinValue: 0, MaxValue: 4095, FilterLevel: FilterMedium, Smoothing: 3, Deadband: 16, Curve: CurveLinear}
	doc.Axes[AxisY] = AxisEntry{Enabled: true, Pin: 27, MinValue: 100, MaxValue: 4000, FilterLevel: FilterLow, Smoothing: 0, Deadband: 0, Curve: CurveSCurve}
	doc.Axes[AxisS2] = AxisEntry{Enabled: false, Pin: 28, MaxValue: 1023, Curve: CurveExponential}
	doc.PinMap = []PinMapEntry{
		{Name: "GP2", Type: PinButton},
		{Name: "GP3", Type: PinButtonRow},
		{Name: "GP4", Type: PinButtonCol},
		{Name: "GP5", Type: PinShiftRegPL},
		{Name: "GP6", Type: PinShiftRegCLK},
		{Name: "GP7", Type: PinShiftRegQH},
	}
	doc.Inputs = []LogicalInput{
		{Source: PinSource{Pin: 2}, Behavior: BehaviorNormal, JoyButtonID: 1},
		{Source: MatrixSource{Row: 0, Col: 1}, Behavior: BehaviorMomentary, JoyButtonID: 2, Reversed: true},
		{Source: ShiftRegSource{Register: 0, Bit: 2}, Behavior: BehaviorEncA, JoyButtonID: 13, LatchMode: LatchFour0},
		{Source: ShiftRegSource{Register: 0, Bit: 3}, Behavior: BehaviorEncB, JoyButtonID: 14, LatchMode: LatchFour0},
	}
	return &doc
}

// minimalBuffer builds the fixed 224-byte prefix with the given header
func minimalBuffer(magic [4]byte, version, size uint16) []byte {
	buf := make([]byte, FixedSize)
	copy(buf, magic[:])
	_ = PutUint16(buf, offVersion, version)
	_ = PutUint16(buf, offSize, size)
	_ = PutUint16(buf, HeaderSize, DefaultVendorID)
	_ = PutUint16(buf, HeaderSize+2, DefaultProductID)
	return buf
}

// ============================================================
// Decode Tests
// ============================================================

func TestDecode_HeaderExample(t *testing.T) {
	buf := minimalBuffer(Magic, 1, 0x90)
	if !bytes.Equal(buf[:8], []byte{0x4A, 0x4F, 0x59, 0x43, 0x01, 0x00, 0x90, 0x00}) {
		t.Fatalf("unexpected header bytes % X", buf[:8])
	}

	logger := &recordingLogger{}
	doc, err := NewCodec(WithLogger(logger)).Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if doc.Header.MagicString() != "JOYC" {
		t.Errorf("magic = %q, want JOYC", doc.Header.MagicString())
	}
	if doc.Header.Version != 1 {
		t.Errorf("version = %d, want 1", doc.Header.Version)
	}
	if doc.Header.Size != 0x90 {
		t.Errorf("size = %d, want 144", doc.Header.Size)
	}
	if doc.USB.VendorID != 0x2E8A {
		t.Errorf("vendor = %04X, want 2E8A", doc.USB.VendorID)
	}
	if len(doc.PinMap) != 0 || len(doc.Inputs) != 0 {
		t.Errorf("expected empty tables, got %d pins %d inputs", len(doc.PinMap), len(doc.Inputs))
	}
	if len(logger.warnings) != 1 {
		t.Errorf("expected one size mismatch warning, got %v", logger.warnings)
	}
}

func TestDecode_Errors(t *testing.T) {
	encoded, err := Encode(sampleDocument())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	pinTableEnd := FixedSize + 6*PinMapEntrySize

	badSize := minimalBuffer(Magic, 3, 50)

	// Counts claim more pin entries than the declared size holds, and the
	// frame padding after it must not be read as table records
	blank := NewDocument()
	padded, err := Encode(&blank)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	padded[HeaderSize+USBIdentitySize] = 2
	padded = append(padded, make([]byte, 2*PinMapEntrySize)...)

	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{"empty", nil, ErrTruncatedBuffer},
		{"short header", []byte{'J', 'O', 'Y', 'C', 1, 0}, ErrTruncatedBuffer},
		{"all zero", make([]byte, 256), ErrInvalidMagic},
		{"all 0xFF", bytes.Repeat([]byte{0xFF}, 256), ErrInvalidMagic},
		{"firmware magic with host codec", minimalBuffer(FirmwareMagic, 3, FixedSize), ErrInvalidMagic},
		{"size below minimum", badSize, ErrInvalidSize},
		{"truncated USB block", encoded[:50], ErrTruncatedBuffer},
		{"truncated axis table", encoded[:FixedSize-3], ErrTruncatedBuffer},
		{"truncated pin map", encoded[:FixedSize+15], ErrIncompleteTable},
		{"truncated inputs", encoded[:pinTableEnd+12], ErrIncompleteTable},
		{"counts beyond declared size", padded, ErrIncompleteTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(tt.data)
			if err == nil {
				t.Fatalf("expected error, got document %+v", doc)
			}
			if doc != nil {
				t.Errorf("expected nil document with error")
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("error %v does not match %v", err, tt.target)
			}
		})
	}
}

func TestDecode_IncompleteTableDetails(t *testing.T) {
	encoded, err := Encode(sampleDocument())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, err = Decode(encoded[:FixedSize+25])
	var incomplete *IncompleteTableError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteTableError, got %v", err)
	}
	if incomplete.Table != "pin map" || incomplete.Declared != 6 || incomplete.Decoded != 2 {
		t.Errorf("unexpected details %+v", incomplete)
	}
}

func TestDecode_UnknownInputKind(t *testing.T) {
	doc := sampleDocument()
	doc.Inputs = append(doc.Inputs, LogicalInput{Source: UnknownSource{Type: 7, Raw: [2]byte{0xAB, 0xCD}}, JoyButtonID: 30})

	encoded, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	last := decoded.Inputs[len(decoded.Inputs)-1]
	u, ok := last.Source.(UnknownSource)
	if !ok {
		t.Fatalf("expected UnknownSource, got %T", last.Source)
	}
	if u.Type != 7 || u.Raw != [2]byte{0xAB, 0xCD} {
		t.Errorf("unexpected unknown source %+v", u)
	}
	if last.JoyButtonID != 30 {
		t.Errorf("fields after unknown kind lost: %+v", last)
	}
}

func TestDecode_TrailingPadding(t *testing.T) {
	encoded, err := Encode(sampleDocument())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	padded := append(append([]byte{}, encoded...), make([]byte, 40)...)

	logger := &recordingLogger{}
	doc, err := NewCodec(WithLogger(logger)).Decode(padded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(doc.Inputs) != 4 {
		t.Errorf("expected 4 inputs, got %d", len(doc.Inputs))
	}
	if len(logger.warnings) != 1 {
		t.Errorf("expected padding warning, got %v", logger.warnings)
	}
	if !ValidateChecksum(padded) {
		t.Error("checksum should only cover the declared size")
	}
}

// ============================================================
// Encode Tests
// ============================================================

func TestEncode_RoundTrip(t *testing.T) {
	profiles := []struct {
		name  string
		codec *Codec
	}{
		{"host", NewCodec()},
		{"firmware", NewCodec(WithProfile(ProfileFirmware))},
		{"host wide", NewCodec(WithAxisLayout(AxisLayoutWide))},
	}

	for _, p := range profiles {
		t.Run(p.name, func(t *testing.T) {
			doc := sampleDocument()
			encoded, err := p.codec.Encode(doc)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(encoded) != EncodedSize(doc) {
				t.Errorf("encoded %d bytes, want %d", len(encoded), EncodedSize(doc))
			}
			if !p.codec.ValidateChecksum(encoded) {
				t.Error("fresh encoding fails checksum")
			}

			decoded, err := p.codec.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if int(decoded.Header.Size) != len(encoded) {
				t.Errorf("size = %d, want %d", decoded.Header.Size, len(encoded))
			}
			if decoded.USB != doc.USB {
				t.Errorf("USB mismatch: %+v vs %+v", decoded.USB, doc.USB)
			}
			if decoded.Axes != doc.Axes {
				t.Errorf("axes mismatch:\n%+v\n%+v", decoded.Axes, doc.Axes)
			}
			if !reflect.DeepEqual(decoded.PinMap, doc.PinMap) {
				t.Errorf("pin map mismatch: %+v", decoded.PinMap)
			}
			if !reflect.DeepEqual(decoded.Inputs, doc.Inputs) {
				t.Errorf("inputs mismatch: %+v", decoded.Inputs)
			}
			if decoded.ShiftRegCount != doc.ShiftRegCount {
				t.Errorf("shift register count = %d", decoded.ShiftRegCount)
			}
		})
	}
}

func TestEncode_DoesNotModifyInput(t *testing.T) {
	doc := sampleDocument()
	doc.Header.Size = 7
	doc.Header.Checksum = 0xDEADBEEF

	if _, err := Encode(doc); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if doc.Header.Size != 7 || doc.Header.Checksum != 0xDEADBEEF {
		t.Errorf("header modified: %+v", doc.Header)
	}
}

func TestEncode_StringTruncation(t *testing.T) {
	doc := sampleDocument()
	doc.USB.Manufacturer = "A manufacturer name that is longer than the slot"
	doc.PinMap[0].Name = "LONGNAME9"

	encoded, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if encoded[HeaderSize+4+StringSlotSize-1] != 0 {
		t.Error("manufacturer slot is not NUL terminated")
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.USB.Manufacturer != doc.USB.Manufacturer[:31] {
		t.Errorf("manufacturer = %q", decoded.USB.Manufacturer)
	}
	if decoded.PinMap[0].Name != "LONGNAM" {
		t.Errorf("pin name = %q, want LONGNAM", decoded.PinMap[0].Name)
	}
}

func TestEncode_CompactSmoothingOverflow(t *testing.T) {
	doc := sampleDocument()
	doc.Axes[AxisZ].Smoothing = 300

	if _, err := Encode(doc); err == nil {
		t.Error("expected compact layout to reject smoothing 300")
	}

	wide := NewCodec(WithAxisLayout(AxisLayoutWide))
	encoded, err := wide.Encode(doc)
	if err != nil {
		t.Fatalf("wide Encode failed: %v", err)
	}
	decoded, err := wide.Decode(encoded)
	if err != nil {
		t.Fatalf("wide Decode failed: %v", err)
	}
	if decoded.Axes[AxisZ].Smoothing != 300 {
		t.Errorf("smoothing = %d, want 300", decoded.Axes[AxisZ].Smoothing)
	}
}

func TestEncode_AxisOffsets(t *testing.T) {
	doc := NewDocument()
	doc.Axes[AxisX] = AxisEntry{Enabled: true, Pin: 26, MinValue: 0x0102, MaxValue: 0x0304, FilterLevel: FilterHigh, Smoothing: 0x05, Deadband: 0x0607, Curve: CurveCustom}

	compact, err := NewCodec().Encode(&doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	off := HeaderSize + USBIdentitySize + CountsSize
	want := []byte{1, 26, 0x02, 0x01, 0x04, 0x03, 3, 0x05, 0x07, 0x06, 3, 0, 0, 0, 0, 0}
	if !bytes.Equal(compact[off:off+AxisEntrySize], want) {
		t.Errorf("compact axis bytes % X, want % X", compact[off:off+AxisEntrySize], want)
	}

	wide, err := NewCodec(WithAxisLayout(AxisLayoutWide)).Encode(&doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want = []byte{1, 26, 0x02, 0x01, 0x04, 0x03, 3, 0x05, 0x00, 0x07, 0x06, 3, 0, 0, 0, 0}
	if !bytes.Equal(wide[off:off+AxisEntrySize], want) {
		t.Errorf("wide axis bytes % X, want % X", wide[off:off+AxisEntrySize], want)
	}
}

func TestEncode_InputRecordLayout(t *testing.T) {
	doc := NewDocument()
	doc.Inputs = []LogicalInput{
		{Source: ShiftRegSource{Register: 1, Bit: 6}, Behavior: BehaviorEncA, JoyButtonID: 25, Reversed: true, LatchMode: LatchFour3},
	}
	encoded, err := Encode(&doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	rec := encoded[FixedSize:]
	want := []byte{2, 2, 25, 1, 1, 0, 0, 0, 1, 6}
	if !bytes.Equal(rec, want) {
		t.Errorf("input record % X, want % X", rec, want)
	}
}

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_KnownValue(t *testing.T) {
	buf := make([]byte, 21)
	copy(buf[12:], "123456789")

	if got := Checksum(buf, len(buf), ChecksumScopeTail); got != 0xCBF43926 {
		t.Errorf("tail checksum = 0x%08X, want 0xCBF43926", got)
	}

	copy(buf, "JOYC\x03\x00\x15\x00")
	joined := append(append([]byte{}, buf[0:8]...), buf[12:]...)
	if got, want := Checksum(buf, len(buf), ChecksumScopeFirmware), crc32.ChecksumIEEE(joined); got != want {
		t.Errorf("firmware checksum = 0x%08X, want 0x%08X", got, want)
	}
}

func TestVerifyChecksum(t *testing.T) {
	encoded, err := Encode(sampleDocument())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if err := VerifyChecksum(encoded); err != nil {
		t.Fatalf("VerifyChecksum failed: %v", err)
	}

	for _, off := range []int{offVersion, offHdrRsvd, HeaderSize + 5, len(encoded) - 1} {
		t.Run(fmt.Sprintf("flip@%d", off), func(t *testing.T) {
			corrupt := append([]byte{}, encoded...)
			corrupt[off] ^= 0x40
			if off == offVersion {
				// Version sits outside the tail scope.
				if !ValidateChecksum(corrupt) {
					t.Error("tail scope should ignore the version field")
				}
				fw := NewCodec(WithChecksumScope(ChecksumScopeFirmware))
				fwEncoded, err := fw.Encode(sampleDocument())
				if err != nil {
					t.Fatalf("Encode failed: %v", err)
				}
				if !fw.ValidateChecksum(fwEncoded) {
					t.Fatal("fresh firmware-scope encoding fails checksum")
				}
				fwEncoded[offVersion] ^= 0x40
				if fw.ValidateChecksum(fwEncoded) {
					t.Error("firmware scope should cover the version field")
				}
				return
			}
			err := VerifyChecksum(corrupt)
			var mismatch *ChecksumMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("expected ChecksumMismatchError, got %v", err)
			}
			if !IsConfigAbsent(err) {
				t.Error("checksum mismatch should count as absent config")
			}
		})
	}

	if ValidateChecksum(encoded[:len(encoded)-1]) {
		t.Error("truncated document should fail checksum validation")
	}
}

func TestDecodeVerified(t *testing.T) {
	codec := NewCodec(WithProfile(ProfileFirmware))
	encoded, err := codec.Encode(sampleDocument())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := codec.DecodeVerified(encoded); err != nil {
		t.Fatalf("DecodeVerified failed: %v", err)
	}

	if _, err := codec.DecodeVerified(bytes.Repeat([]byte{0xFF}, 300)); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("erased flash should report invalid magic, got %v", err)
	}
}

func TestCodecProfileOverride(t *testing.T) {
	c := NewCodec(WithAxisLayout(AxisLayoutCompact), WithProfile(ProfileFirmware))
	if c.AxisLayout() != AxisLayoutCompact {
		t.Errorf("explicit layout should win over profile, got %s", c.AxisLayout())
	}
	if c.ChecksumScope() != ChecksumScopeFirmware {
		t.Errorf("profile scope expected, got %s", c.ChecksumScope())
	}
}

// ============================================================
// Status Tests
// ============================================================

func TestDecodeStatus_Example(t *testing.T) {
	data := []byte{0x01, 0x01, 0x00, 0x02, 0x10, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00}

	s, err := DecodeStatus(data)
	if err != nil {
		t.Fatalf("DecodeStatus failed: %v", err)
	}
	want := ConfigStatus{
		StorageInitialized: true,
		ConfigLoaded:       true,
		UsingDefaults:      false,
		Mode:               ModeHybrid,
		StorageUsed:        16,
		StorageAvailable:   1024,
		ConfigVersion:      5,
	}
	if *s != want {
		t.Errorf("status = %+v, want %+v", *s, want)
	}

	if !bytes.Equal(EncodeStatus(s)[:16], data) {
		t.Errorf("EncodeStatus mismatch: % X", EncodeStatus(s))
	}
}

func TestDecodeStatus_Short(t *testing.T) {
	if _, err := DecodeStatus(make([]byte, 15)); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("expected ErrTruncatedBuffer, got %v", err)
	}
}

func TestDecodeValidationReport(t *testing.T) {
	b := make([]byte, ValidationReportSize)
	b[0], b[1], b[2] = 0, 2, 1
	copy(b[4:], "Axis X min > max")

	r, err := DecodeValidationReport(b)
	if err != nil {
		t.Fatalf("DecodeValidationReport failed: %v", err)
	}
	want := ValidationReport{Valid: false, ErrorCount: 2, WarningCount: 1, FirstError: "Axis X min > max"}
	if *r != want {
		t.Errorf("got %+v, want %+v", *r, want)
	}

	if _, err := DecodeValidationReport(b[:20]); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("expected ErrTruncatedBuffer, got %v", err)
	}
}
