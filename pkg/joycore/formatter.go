// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"fmt"
	"strings"
	"time"
)

// FormatDocument formats a decoded configuration into a human-readable
// report
func FormatDocument(doc *Document) string {
	var b strings.Builder

	h := doc.Header
	fmt.Fprintf(&b, "Header: magic=%q version=%d size=%d checksum=0x%08X\n", h.MagicString(), h.Version, h.Size, h.Checksum)
	fmt.Fprintf(&b, "USB: VID=%04X PID=%04X manufacturer=%q product=%q\n",
		doc.USB.VendorID, doc.USB.ProductID, doc.USB.Manufacturer, doc.USB.Product)
	fmt.Fprintf(&b, "Counts: pins=%d inputs=%d shift registers=%d\n", len(doc.PinMap), len(doc.Inputs), doc.ShiftRegCount)

	b.WriteString("Axes:\n")
	enabled := doc.EnabledAxes()
	for _, a := range enabled {
		b.WriteString("  " + FormatAxis(a, doc.Axes[a]) + "\n")
	}
	if len(enabled) == 0 {
		b.WriteString("  (none enabled)\n")
	}

	if len(doc.PinMap) > 0 {
		b.WriteString("Pin Map:\n")
		for i, p := range doc.PinMap {
			fmt.Fprintf(&b, "  [%2d] %-7s %s\n", i, p.Name, p.Type)
		}
	}

	if len(doc.Inputs) > 0 {
		b.WriteString("Logical Inputs:\n")
		for i, in := range doc.Inputs {
			fmt.Fprintf(&b, "  [%2d] %s\n", i, FormatInput(in))
		}
	}

	return b.String()
}

// FormatAxis returns a one-line summary of an axis entry
func FormatAxis(axis Axis, a AxisEntry) string {
	state := "off"
	if a.Enabled {
		state = "on"
	}
	return fmt.Sprintf("%-2s %s pin=%d range=%d..%d filter=%s smoothing=%d deadband=%d curve=%s",
		axis, state, a.Pin, a.MinValue, a.MaxValue, a.FilterLevel, a.Smoothing, a.Deadband, a.Curve)
}

// FormatInput returns a one-line summary of a logical input
func FormatInput(in LogicalInput) string {
	var src string
	switch s := in.Source.(type) {
	case PinSource:
		src = fmt.Sprintf("PIN %d", s.Pin)
	case MatrixSource:
		src = fmt.Sprintf("MATRIX r%d c%d", s.Row, s.Col)
	case ShiftRegSource:
		src = fmt.Sprintf("SHIFTREG %d.%d", s.Register, s.Bit)
	case UnknownSource:
		src = fmt.Sprintf("%s raw=%02X%02X", s.Type, s.Raw[0], s.Raw[1])
	default:
		src = "PIN 0"
	}

	result := fmt.Sprintf("%-16s -> button %d %s", src, in.JoyButtonID, in.Behavior)
	if in.Reversed {
		result += " reversed"
	}
	if in.LatchMode != LatchNone {
		result += " latch=" + in.LatchMode.String()
	}
	return result
}

// FormatStatus formats a ConfigStatus block
func FormatStatus(s *ConfigStatus) string {
	result := fmt.Sprintf("Storage Initialized: %s\n", yesNo(s.StorageInitialized))
	result += fmt.Sprintf("Config Loaded:       %s\n", yesNo(s.ConfigLoaded))
	result += fmt.Sprintf("Using Defaults:      %s\n", yesNo(s.UsingDefaults))
	result += fmt.Sprintf("Mode:                %s\n", s.Mode)
	result += fmt.Sprintf("Storage Used:        %s\n", FormatBytes(uint64(s.StorageUsed)))
	result += fmt.Sprintf("Storage Available:   %s\n", FormatBytes(uint64(s.StorageAvailable)))
	result += fmt.Sprintf("Config Version:      %d\n", s.ConfigVersion)
	return result
}

// FormatStorageInfo formats a STORAGE_INFO response
func FormatStorageInfo(info *StorageInfo) string {
	result := fmt.Sprintf("Initialized: %s\n", yesNo(info.Initialized))
	result += fmt.Sprintf("Used:        %s\n", FormatBytes(uint64(info.Used)))
	result += fmt.Sprintf("Available:   %s\n", FormatBytes(uint64(info.Available)))
	return result
}

// FormatRawEvent formats a raw telemetry event with its host receive time
func FormatRawEvent(received time.Time, event RawEvent) string {
	stamp := received.Format("15:04:05.000")
	switch e := event.(type) {
	case *GPIOState:
		return fmt.Sprintf("[%s] GPIO     mask=0x%08X bits=%s t=%s", stamp, e.Mask, gpioBits(e.Mask), FormatUptime(e.Timestamp))
	case *MatrixState:
		state := "open"
		if e.Connected {
			state = "closed"
		}
		return fmt.Sprintf("[%s] MATRIX   r%d c%d %s t=%s", stamp, e.Row, e.Col, state, FormatUptime(e.Timestamp))
	case *ShiftRegState:
		return fmt.Sprintf("[%s] SHIFTREG %d value=0x%02X bits=%08b t=%s", stamp, e.Register, e.Value, e.Value, FormatUptime(e.Timestamp))
	default:
		return fmt.Sprintf("[%s] %v", stamp, event)
	}
}

func gpioBits(mask uint32) string {
	var high []string
	for pin := 0; pin < 32; pin++ {
		if mask&(1<<uint(pin)) != 0 {
			high = append(high, fmt.Sprintf("GP%d", pin))
		}
	}
	if len(high) == 0 {
		return "-"
	}
	return strings.Join(high, ",")
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB (%d bytes)", float64(n)/(1<<20), n)
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB (%d bytes)", float64(n)/(1<<10), n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// FormatUptime converts a device millisecond timestamp to a compact
// duration such as "1h02m03.456s"
func FormatUptime(ms uint64) string {
	seconds := ms / 1000
	if seconds == 0 {
		return fmt.Sprintf("%dms", ms)
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	frac := ms % 1000

	if hours > 0 {
		return fmt.Sprintf("%dh%02dm%02d.%03ds", hours, minutes, secs, frac)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%02d.%03ds", minutes, secs, frac)
	}
	return fmt.Sprintf("%d.%03ds", secs, frac)
}

// FormatValidation formats validator findings, one per line
func FormatValidation(findings []ValidationError) string {
	if len(findings) == 0 {
		return "OK: no problems found\n"
	}
	var b strings.Builder
	for _, f := range findings {
		level := "ERROR"
		if f.Warning {
			level = "WARN "
		}
		fmt.Fprintf(&b, "%s [%s] %s\n", level, f.Type, f.Message)
	}
	return b.String()
}

// HexDump formats data as offset-prefixed rows of 16 bytes
func HexDump(data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		fmt.Fprintf(&b, "%04X  % X\n", off, data[off:end])
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}
