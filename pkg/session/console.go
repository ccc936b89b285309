// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/Thermoquad/joylink/pkg/transport"
)

// LineChannel is the console stream used by Console.
// *transport.LineTransport satisfies it.
type LineChannel interface {
	Request(ctx context.Context, cmd string, until transport.Terminator) ([]string, error)
	StartMonitor(handler func(transport.Line)) error
	StopMonitor()
	Close() error
}

// Console issues text commands on the device's serial console.
type Console struct {
	lines  LineChannel
	codec  *joycore.Codec
	logger joycore.Logger
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithConsoleCodec sets the codec used by ReadConfigFile.
func WithConsoleCodec(c *joycore.Codec) ConsoleOption {
	return func(con *Console) {
		con.codec = c
	}
}

// WithConsoleLogger sets the console logger.
func WithConsoleLogger(l joycore.Logger) ConsoleOption {
	return func(con *Console) {
		con.logger = l
	}
}

// NewConsole wraps a line channel.
func NewConsole(lines LineChannel, opts ...ConsoleOption) *Console {
	c := &Console{lines: lines}
	for _, opt := range opts {
		opt(c)
	}
	if c.codec == nil {
		c.codec = joycore.NewCodec()
	}
	if c.logger == nil {
		c.logger = joycore.NopLogger{}
	}
	return c
}

// Close closes the line channel.
func (c *Console) Close() error {
	return c.lines.Close()
}

// Identify probes the device signature and firmware version.
func (c *Console) Identify(ctx context.Context) (*joycore.Identity, error) {
	reply, err := c.lines.Request(ctx, joycore.CmdIdentify, transport.UntilPrefix(joycore.PrefixIdentify))
	if err != nil {
		return nil, err
	}
	return joycore.ParseIdentify(reply[len(reply)-1])
}

// Status returns the firmware's free-form status text.
func (c *Console) Status(ctx context.Context) ([]string, error) {
	return c.lines.Request(ctx, joycore.CmdStatus, nil)
}

// StorageInfo reads flash usage.
func (c *Console) StorageInfo(ctx context.Context) (*joycore.StorageInfo, error) {
	reply, err := c.lines.Request(ctx, joycore.CmdStorageInfo, transport.UntilPrefix(joycore.PrefixStorageInit))
	if err != nil {
		return nil, err
	}
	return joycore.ParseStorageInfo(reply)
}

// ListFiles returns the names of files in device storage.
func (c *Console) ListFiles(ctx context.Context) ([]string, error) {
	reply, err := c.lines.Request(ctx, joycore.CmdListFiles, transport.UntilLine(joycore.MarkerEndFiles))
	if err != nil {
		return nil, err
	}
	return joycore.ParseFileList(reply)
}

// ReadFile fetches a file from device storage.
func (c *Console) ReadFile(ctx context.Context, name string) (*joycore.FileData, error) {
	if name == "" {
		return nil, errors.New("read file: empty name")
	}
	reply, err := c.lines.Request(ctx, joycore.CmdReadFile+" "+name, transport.UntilPrefix(joycore.PrefixFileData))
	if err != nil {
		return nil, err
	}
	return joycore.ParseFileData(reply[len(reply)-1])
}

// ReadConfigFile fetches and decodes the stored configuration file. The
// raw bytes are returned with the decode error so callers can dump them.
func (c *Console) ReadConfigFile(ctx context.Context) (*joycore.Document, []byte, error) {
	file, err := c.ReadFile(ctx, joycore.ConfigFileName)
	if err != nil {
		return nil, nil, err
	}
	doc, err := c.codec.Decode(file.Data)
	if err != nil {
		return nil, file.Data, fmt.Errorf("%s: %w", joycore.ConfigFileName, err)
	}
	if err := c.codec.VerifyChecksum(file.Data); err != nil {
		c.logger.Warn("stored config checksum", "file", joycore.ConfigFileName, "err", err)
	}
	return doc, file.Data, nil
}

// FormatStorage erases device storage.
func (c *Console) FormatStorage(ctx context.Context) (*joycore.FormatResult, error) {
	reply, err := c.lines.Request(ctx, joycore.CmdFormatStorage, nil)
	if err != nil {
		return nil, err
	}
	return joycore.ParseFormatResult(reply)
}

// SaveConfig asks the firmware to persist its active configuration.
func (c *Console) SaveConfig(ctx context.Context) error {
	reply, err := c.lines.Request(ctx, joycore.CmdSaveConfig, transport.UntilPrefix("Configuration save"))
	if err != nil {
		return err
	}
	if last := reply[len(reply)-1]; last != "Configuration saved successfully" {
		return &transport.DeviceError{Command: joycore.CmdSaveConfig, Reason: last}
	}
	return nil
}

// ForceDefaults makes the firmware create and save its default
// configuration.
func (c *Console) ForceDefaults(ctx context.Context) error {
	_, err := c.lines.Request(ctx, joycore.CmdForceDefaults, transport.UntilLine("Default configuration created and saved"))
	return err
}

// ReadGPIOStates samples all GPIO levels once.
func (c *Console) ReadGPIOStates(ctx context.Context) (*joycore.GPIOState, error) {
	reply, err := c.lines.Request(ctx, joycore.CmdReadGPIOStates, transport.UntilPrefix(joycore.PrefixGPIO))
	if err != nil {
		return nil, err
	}
	return joycore.ParseGPIOStates(reply[len(reply)-1])
}

// ReadMatrixState samples every matrix intersection. The reply has no end
// marker and finishes when the device goes quiet.
func (c *Console) ReadMatrixState(ctx context.Context) ([]joycore.MatrixState, error) {
	reply, err := c.lines.Request(ctx, joycore.CmdReadMatrixState, nil)
	if err != nil {
		return nil, err
	}
	var states []joycore.MatrixState
	for _, line := range reply {
		s, err := joycore.ParseMatrixState(line)
		if err != nil {
			return nil, err
		}
		states = append(states, *s)
	}
	return states, nil
}

// ReadShiftReg samples every configured shift register.
func (c *Console) ReadShiftReg(ctx context.Context) ([]joycore.ShiftRegState, error) {
	reply, err := c.lines.Request(ctx, joycore.CmdReadShiftReg, nil)
	if err != nil {
		return nil, err
	}
	var states []joycore.ShiftRegState
	for _, line := range reply {
		s, err := joycore.ParseShiftReg(line)
		if err != nil {
			return nil, err
		}
		states = append(states, *s)
	}
	return states, nil
}

// StartRawMonitor starts device telemetry and hands every following line
// to handler until StopRawMonitor.
func (c *Console) StartRawMonitor(ctx context.Context, handler func(transport.Line)) error {
	if _, err := c.lines.Request(ctx, joycore.CmdStartRawMonitor, transport.UntilLine(joycore.AckMonitorStarted)); err != nil {
		return err
	}
	return c.lines.StartMonitor(handler)
}

// StopRawMonitor stops telemetry. Lines still in flight before the
// acknowledgement are discarded.
func (c *Console) StopRawMonitor(ctx context.Context) error {
	c.lines.StopMonitor()
	_, err := c.lines.Request(ctx, joycore.CmdStopRawMonitor, transport.UntilLine(joycore.AckMonitorStopped))
	return err
}
