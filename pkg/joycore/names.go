// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import "fmt"

var axisNames = [AxisCount]string{"X", "Y", "Z", "RX", "RY", "RZ", "S1", "S2"}

func (a Axis) String() string {
	if a >= 0 && int(a) < len(axisNames) {
		return axisNames[a]
	}
	return fmt.Sprintf("AXIS_%d", int(a))
}

func (f FilterLevel) String() string {
	switch f {
	case FilterOff:
		return "OFF"
	case FilterLow:
		return "LOW"
	case FilterMedium:
		return "MEDIUM"
	case FilterHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("FILTER_%d", uint8(f))
	}
}

func (c Curve) String() string {
	switch c {
	case CurveLinear:
		return "LINEAR"
	case CurveSCurve:
		return "S_CURVE"
	case CurveExponential:
		return "EXPONENTIAL"
	case CurveCustom:
		return "CUSTOM"
	default:
		return fmt.Sprintf("CURVE_%d", uint8(c))
	}
}

func (t PinType) String() string {
	switch t {
	case PinUnused:
		return "UNUSED"
	case PinButton:
		return "BTN"
	case PinButtonRow:
		return "BTN_ROW"
	case PinButtonCol:
		return "BTN_COL"
	case PinShiftRegPL:
		return "SHIFTREG_PL"
	case PinShiftRegCLK:
		return "SHIFTREG_CLK"
	case PinShiftRegQH:
		return "SHIFTREG_QH"
	default:
		return fmt.Sprintf("PIN_TYPE_%d", uint8(t))
	}
}

func (k InputKind) String() string {
	switch k {
	case InputPin:
		return "PIN"
	case InputMatrix:
		return "MATRIX"
	case InputShiftReg:
		return "SHIFTREG"
	default:
		return fmt.Sprintf("INPUT_%d", uint8(k))
	}
}

func (b Behavior) String() string {
	switch b {
	case BehaviorNormal:
		return "NORMAL"
	case BehaviorMomentary:
		return "MOMENTARY"
	case BehaviorEncA:
		return "ENC_A"
	case BehaviorEncB:
		return "ENC_B"
	default:
		return fmt.Sprintf("BEHAVIOR_%d", uint8(b))
	}
}

func (m LatchMode) String() string {
	switch m {
	case LatchNone:
		return "NONE"
	case LatchFour3:
		return "FOUR3"
	case LatchFour0:
		return "FOUR0"
	case LatchTwo03:
		return "TWO03"
	default:
		return fmt.Sprintf("LATCH_%d", uint8(m))
	}
}

func (m ConfigMode) String() string {
	switch m {
	case ModeStatic:
		return "STATIC"
	case ModeStorage:
		return "STORAGE"
	case ModeHybrid:
		return "HYBRID"
	default:
		return fmt.Sprintf("MODE_%d", uint8(m))
	}
}

func (t MessageType) String() string {
	switch t {
	case MsgGetConfig:
		return "GET_CONFIG"
	case MsgSetConfig:
		return "SET_CONFIG"
	case MsgResetConfig:
		return "RESET_CONFIG"
	case MsgValidateConfig:
		return "VALIDATE_CONFIG"
	case MsgGetStatus:
		return "GET_STATUS"
	case MsgSaveConfig:
		return "SAVE_CONFIG"
	case MsgLoadConfig:
		return "LOAD_CONFIG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// StatusText returns a short description of a frame status code.
func StatusText(s Status) string {
	switch s {
	case StatusOK:
		return "success"
	case StatusInvalidType:
		return "invalid message type"
	case StatusInvalidLength:
		return "invalid length"
	case StatusChecksum:
		return "checksum error"
	case StatusStorage:
		return "storage error"
	case StatusBusy:
		return "device busy"
	case StatusSequence:
		return "sequence error"
	case StatusUnknown:
		return "unknown error"
	default:
		return fmt.Sprintf("error 0x%02X", uint8(s))
	}
}

func (s Status) String() string {
	return StatusText(s)
}
