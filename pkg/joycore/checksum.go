// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// ChecksumScope selects which bytes the document checksum covers.
type ChecksumScope int

const (
	// ChecksumScopeTail covers [12, size): everything after the checksum
	// field through the declared end.
	ChecksumScopeTail ChecksumScope = iota

	// ChecksumScopeFirmware also covers header bytes [0, 8), matching the
	// firmware's stored checksum.
	ChecksumScopeFirmware
)

func (s ChecksumScope) String() string {
	switch s {
	case ChecksumScopeTail:
		return "tail"
	case ChecksumScopeFirmware:
		return "firmware"
	default:
		return fmt.Sprintf("ChecksumScope(%d)", int(s))
	}
}

// ParseChecksumScope converts a scope name back to its value.
func ParseChecksumScope(name string) (ChecksumScope, error) {
	switch name {
	case "tail", "":
		return ChecksumScopeTail, nil
	case "firmware":
		return ChecksumScopeFirmware, nil
	}
	return 0, fmt.Errorf("unknown checksum scope %q", name)
}

// Checksum computes the CRC-32 (IEEE) of a document whose header is
// already in b, over the first size bytes.
func Checksum(b []byte, size int, scope ChecksumScope) uint32 {
	if size > len(b) {
		size = len(b)
	}
	if size < HeaderSize {
		return 0
	}
	var crc uint32
	if scope == ChecksumScopeFirmware {
		crc = crc32.Update(crc, crc32.IEEETable, b[offMagic:offChecksum])
	}
	return crc32.Update(crc, crc32.IEEETable, b[offHdrRsvd:size])
}

func verifyChecksum(b []byte, scope ChecksumScope) error {
	if err := checkBounds(b, 0, HeaderSize); err != nil {
		return err
	}
	size := int(binary.LittleEndian.Uint16(b[offSize:]))
	if size < HeaderSize {
		return fmt.Errorf("%w: declared size %d", ErrInvalidSize, size)
	}
	if err := checkBounds(b, 0, size); err != nil {
		return err
	}
	stored := binary.LittleEndian.Uint32(b[offChecksum:])
	computed := Checksum(b, size, scope)
	if stored != computed {
		return &ChecksumMismatchError{Stored: stored, Computed: computed}
	}
	return nil
}

// VerifyChecksum checks a raw document against its stored checksum using
// the default codec.
func VerifyChecksum(b []byte) error {
	return defaultCodec.VerifyChecksum(b)
}

// ValidateChecksum reports whether a raw document carries a correct
// checksum, using the default codec.
func ValidateChecksum(b []byte) bool {
	return defaultCodec.VerifyChecksum(b) == nil
}
