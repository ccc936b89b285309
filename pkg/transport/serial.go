// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaudRate is the CDC console rate. USB CDC ignores it, UART
// bridges do not.
const DefaultBaudRate = 115200

// SerialPort wraps a serial port as a line device.
type SerialPort struct {
	name string
	port serial.Port
}

func (s *SerialPort) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialPort) Close() error {
	return s.port.Close()
}

// String returns the port name and settings.
func (s *SerialPort) String() string {
	return "serial " + s.name
}

// OpenSerial opens a CDC console port at 8N1.
func OpenSerial(name string, baud int) (*SerialPort, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, &Error{Op: fmt.Sprintf("open serial port %s", name), Err: err}
	}

	// Raise DTR so CDC firmware starts writing to the console
	if err := port.SetDTR(true); err != nil {
		port.Close()
		return nil, &Error{Op: "set DTR", Err: err}
	}

	return &SerialPort{name: fmt.Sprintf("%s @ %d baud", name, baud), port: port}, nil
}

// ListSerialPorts returns the serial ports present on the host.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, &Error{Op: "list serial ports", Err: err}
	}
	return ports, nil
}
