// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import "fmt"

// AnomalyType classifies a document validation finding.
type AnomalyType int

const (
	AnomalyVersion AnomalyType = iota
	AnomalyLimit
	AnomalyRange
	AnomalyInvalidValue
	AnomalyEncoderPair
	AnomalyShiftRegIndex
	AnomalyDuplicateButton
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyVersion:
		return "version"
	case AnomalyLimit:
		return "limit"
	case AnomalyRange:
		return "range"
	case AnomalyInvalidValue:
		return "invalid value"
	case AnomalyEncoderPair:
		return "encoder pair"
	case AnomalyShiftRegIndex:
		return "shift register index"
	case AnomalyDuplicateButton:
		return "duplicate button"
	default:
		return fmt.Sprintf("anomaly %d", int(a))
	}
}

// ValidationError describes one problem found in a document. Warnings do
// not prevent the firmware from accepting the document.
type ValidationError struct {
	Type    AnomalyType
	Warning bool
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// HasErrors reports whether any finding is not a warning.
func HasErrors(findings []ValidationError) bool {
	for _, f := range findings {
		if !f.Warning {
			return true
		}
	}
	return false
}

// Validate checks doc against firmware limits and wiring rules.
// Returns a slice of findings (empty if the document is clean).
func Validate(doc *Document) []ValidationError {
	errors := []ValidationError{}

	errors = append(errors, validateHeader(doc)...)
	errors = append(errors, validateAxes(doc)...)
	errors = append(errors, validatePinMap(doc)...)
	errors = append(errors, validateInputs(doc)...)

	return errors
}

// validateHeader checks version and table limits
func validateHeader(doc *Document) []ValidationError {
	errors := []ValidationError{}

	if doc.Header.Version > ConfigVersion {
		errors = append(errors, ValidationError{
			Type:    AnomalyVersion,
			Message: fmt.Sprintf("Unsupported version=%d (max %d)", doc.Header.Version, ConfigVersion),
			Details: map[string]interface{}{"version": doc.Header.Version, "max": ConfigVersion},
		})
	}

	limits := []struct {
		name  string
		count int
		max   int
	}{
		{"pin map entries", len(doc.PinMap), MaxPinMapEntries},
		{"logical inputs", len(doc.Inputs), MaxLogicalInputs},
		{"shift registers", int(doc.ShiftRegCount), MaxShiftRegisters},
	}
	for _, l := range limits {
		if l.count > l.max {
			errors = append(errors, ValidationError{
				Type:    AnomalyLimit,
				Message: fmt.Sprintf("Too many %s: %d (max %d)", l.name, l.count, l.max),
				Details: map[string]interface{}{"count": l.count, "max": l.max},
			})
		}
	}

	return errors
}

// validateAxes checks axis ranges and enum values
func validateAxes(doc *Document) []ValidationError {
	errors := []ValidationError{}

	for i, a := range doc.Axes {
		axis := Axis(i)
		if a.MinValue > a.MaxValue {
			errors = append(errors, ValidationError{
				Type:    AnomalyRange,
				Warning: true,
				Message: fmt.Sprintf("Axis %s min=%d above max=%d", axis, a.MinValue, a.MaxValue),
				Details: map[string]interface{}{"axis": axis.String(), "min": a.MinValue, "max": a.MaxValue},
			})
		}
		if !a.FilterLevel.Valid() {
			errors = append(errors, invalidValue(fmt.Sprintf("axis %s filter", axis), uint8(a.FilterLevel)))
		}
		if !a.Curve.Valid() {
			errors = append(errors, invalidValue(fmt.Sprintf("axis %s curve", axis), uint8(a.Curve)))
		}
	}

	return errors
}

// validatePinMap checks pin types
func validatePinMap(doc *Document) []ValidationError {
	errors := []ValidationError{}

	for i, p := range doc.PinMap {
		if !p.Type.Valid() {
			errors = append(errors, invalidValue(fmt.Sprintf("pin %d (%s) type", i, p.Name), uint8(p.Type)))
		}
	}

	return errors
}

// validateInputs checks enums, encoder pairing, shift register bounds and
// button ID reuse
func validateInputs(doc *Document) []ValidationError {
	errors := []ValidationError{}
	buttons := make(map[uint8]int)

	for i, in := range doc.Inputs {
		if u, ok := in.Source.(UnknownSource); ok {
			errors = append(errors, invalidValue(fmt.Sprintf("input %d kind", i), uint8(u.Type)))
		}
		if !in.Behavior.Valid() {
			errors = append(errors, invalidValue(fmt.Sprintf("input %d behavior", i), uint8(in.Behavior)))
		}
		if !in.LatchMode.Valid() {
			errors = append(errors, invalidValue(fmt.Sprintf("input %d latch mode", i), uint8(in.LatchMode)))
		}

		if sr, ok := in.Source.(ShiftRegSource); ok {
			if sr.Register >= doc.ShiftRegCount {
				errors = append(errors, ValidationError{
					Type:    AnomalyShiftRegIndex,
					Message: fmt.Sprintf("Input %d uses shift register %d but only %d configured", i, sr.Register, doc.ShiftRegCount),
					Details: map[string]interface{}{"input": i, "register": sr.Register, "count": doc.ShiftRegCount},
				})
			}
			if sr.Bit > 7 {
				errors = append(errors, invalidValue(fmt.Sprintf("input %d shift register bit", i), sr.Bit))
			}
		}

		switch in.Behavior {
		case BehaviorEncA:
			if i+1 >= len(doc.Inputs) || doc.Inputs[i+1].Behavior != BehaviorEncB {
				errors = append(errors, ValidationError{
					Type:    AnomalyEncoderPair,
					Message: fmt.Sprintf("Input %d is ENC_A without a following ENC_B", i),
					Details: map[string]interface{}{"input": i},
				})
			}
		case BehaviorEncB:
			if i == 0 || doc.Inputs[i-1].Behavior != BehaviorEncA {
				errors = append(errors, ValidationError{
					Type:    AnomalyEncoderPair,
					Message: fmt.Sprintf("Input %d is ENC_B without a preceding ENC_A", i),
					Details: map[string]interface{}{"input": i},
				})
			}
		}

		if first, dup := buttons[in.JoyButtonID]; dup {
			errors = append(errors, ValidationError{
				Type:    AnomalyDuplicateButton,
				Warning: true,
				Message: fmt.Sprintf("Input %d reuses button %d from input %d", i, in.JoyButtonID, first),
				Details: map[string]interface{}{"input": i, "first": first, "button": in.JoyButtonID},
			})
		} else {
			buttons[in.JoyButtonID] = i
		}
	}

	return errors
}

func invalidValue(field string, value uint8) ValidationError {
	return ValidationError{
		Type:    AnomalyInvalidValue,
		Message: fmt.Sprintf("Invalid %s=%d", field, value),
		Details: map[string]interface{}{"field": field, "value": value},
	}
}
