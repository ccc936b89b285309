// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Statistics tracks raw monitor line counts and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalLines    uint64
	GPIOLines     uint64
	MatrixLines   uint64
	ShiftRegLines uint64
	NotConfigured uint64
	ParseErrors   uint64
	DeviceErrors  uint64
	OtherLines    uint64

	// Rates (calculated)
	LineRate  float64 // lines/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one received line together with its parse result
func (s *Statistics) Update(line string, event RawEvent, parseErr error) {
	s.TotalLines++
	s.LastUpdateTime = time.Now()

	if parseErr != nil {
		switch {
		case errors.Is(parseErr, ErrNotConfigured):
			s.NotConfigured++
		case strings.HasPrefix(line, PrefixError):
			s.DeviceErrors++
		case isRawLine(line):
			s.ParseErrors++
		default:
			// Acknowledgements and free-form debug output
			s.OtherLines++
		}
		return
	}

	switch event.(type) {
	case *GPIOState:
		s.GPIOLines++
	case *MatrixState:
		s.MatrixLines++
	case *ShiftRegState:
		s.ShiftRegLines++
	}
}

func isRawLine(line string) bool {
	return strings.HasPrefix(line, PrefixGPIO) ||
		strings.HasPrefix(line, PrefixMatrix) ||
		strings.HasPrefix(line, PrefixShiftReg)
}

// CalculateRates calculates line and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.LineRate = float64(s.TotalLines) / elapsed
		s.ErrorRate = float64(s.ParseErrors+s.DeviceErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalLines == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalLines)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("GPIO:            %8d (%.1f%%)\n", s.GPIOLines, percent(s.GPIOLines))
	result += fmt.Sprintf("Matrix:          %8d (%.1f%%)\n", s.MatrixLines, percent(s.MatrixLines))
	result += fmt.Sprintf("Shift Register:  %8d (%.1f%%)\n", s.ShiftRegLines, percent(s.ShiftRegLines))

	if s.NotConfigured > 0 {
		result += fmt.Sprintf("Not Configured:  %8d\n", s.NotConfigured)
	}
	if s.ParseErrors > 0 {
		result += fmt.Sprintf("Parse Errors:    %8d (%.1f%%)\n", s.ParseErrors, percent(s.ParseErrors))
	}
	if s.DeviceErrors > 0 {
		result += fmt.Sprintf("Device Errors:   %8d (%.1f%%)\n", s.DeviceErrors, percent(s.DeviceErrors))
	}
	if s.OtherLines > 0 {
		result += fmt.Sprintf("Other Lines:     %8d\n", s.OtherLines)
	}

	result += fmt.Sprintf("Line Rate:       %8.1f lines/sec\n", s.LineRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
