// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/Thermoquad/joylink/pkg/transport"
)

// consoleFirmware answers console commands the way the device does.
type consoleFirmware struct {
	files     map[string][]byte
	noMatrix  bool
	formatErr int
}

func (fw *consoleFirmware) respond(line string) []string {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch strings.ToUpper(cmd) {
	case joycore.CmdIdentify:
		return []string{"JOYCORE_ID:JOYCORE-FW:4A4F5943:1.2.0"}
	case joycore.CmdStatus:
		return []string{"Config Status - Storage: OK, Loaded: YES, Mode: 2, Version: 3"}
	case joycore.CmdStorageInfo:
		return []string{"STORAGE_USED:324", "STORAGE_AVAILABLE:1048252", "STORAGE_INITIALIZED:YES"}
	case joycore.CmdListFiles:
		out := []string{joycore.MarkerFiles}
		for name := range fw.files {
			out = append(out, name)
		}
		return append(out, joycore.MarkerEndFiles)
	case joycore.CmdReadFile:
		if arg == "" {
			return []string{"ERROR:NO_FILENAME"}
		}
		data, ok := fw.files[arg]
		if !ok {
			return []string{"ERROR:FILE_NOT_FOUND:" + arg}
		}
		return []string{fmt.Sprintf("FILE_DATA:%s:%d:%s", arg, len(data), strings.ToUpper(hex.EncodeToString(data)))}
	case joycore.CmdFormatStorage:
		if fw.formatErr != 0 {
			return []string{fmt.Sprintf("Format result: %d", fw.formatErr)}
		}
		return []string{"Format result: 0", "Available space: 1048576"}
	case joycore.CmdSaveConfig:
		return []string{"Saving current configuration to storage...", "Configuration saved successfully"}
	case joycore.CmdForceDefaults:
		return []string{"Forcing default configuration creation...", "Default configuration created and saved"}
	case joycore.CmdReadGPIOStates:
		return []string{"GPIO_STATES:0x0000000C:1500"}
	case joycore.CmdReadMatrixState:
		if fw.noMatrix {
			return []string{"MATRIX_STATE:NO_MATRIX_CONFIGURED"}
		}
		return []string{"MATRIX_STATE:0:0:0:1500", "MATRIX_STATE:0:1:1:1500"}
	case joycore.CmdReadShiftReg:
		return []string{"SHIFT_REG:0:0xA5:1500"}
	case joycore.CmdStartRawMonitor:
		return []string{joycore.AckMonitorStarted, "GPIO_STATES:0x1:10", "SHIFT_REG:0:0x01:11"}
	case joycore.CmdStopRawMonitor:
		return []string{"GPIO_STATES:0x1:12", joycore.AckMonitorStopped}
	}
	return []string{"ERROR:UNKNOWN_COMMAND"}
}

func newTestConsole(t *testing.T, fw *consoleFirmware) *Console {
	t.Helper()
	host, device := net.Pipe()

	go func() {
		scanner := bufio.NewScanner(device)
		for scanner.Scan() {
			for _, line := range fw.respond(scanner.Text()) {
				if _, err := io.WriteString(device, line+"\r\n"); err != nil {
					return
				}
			}
		}
	}()

	lines := transport.NewLineTransport(host, transport.WithIdleTimeout(50*time.Millisecond))
	t.Cleanup(func() {
		lines.Close()
		device.Close()
	})
	return NewConsole(lines)
}

func TestConsole_Identify(t *testing.T) {
	c := newTestConsole(t, &consoleFirmware{})

	id, err := c.Identify(context.Background())
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if id.Signature != joycore.DeviceSignature || id.Magic != joycore.DeviceMagic || id.Firmware != "1.2.0" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestConsole_StatusAndStorage(t *testing.T) {
	c := newTestConsole(t, &consoleFirmware{})
	ctx := context.Background()

	status, err := c.Status(ctx)
	if err != nil || len(status) != 1 || !strings.HasPrefix(status[0], "Config Status") {
		t.Errorf("Status: %q, %v", status, err)
	}

	info, err := c.StorageInfo(ctx)
	if err != nil {
		t.Fatalf("StorageInfo failed: %v", err)
	}
	want := joycore.StorageInfo{Used: 324, Available: 1048252, Initialized: true}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestConsole_Files(t *testing.T) {
	raw, err := joycore.Encode(testDocument())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	c := newTestConsole(t, &consoleFirmware{files: map[string][]byte{joycore.ConfigFileName: raw}})
	ctx := context.Background()

	names, err := c.ListFiles(ctx)
	if err != nil || !reflect.DeepEqual(names, []string{"/config.bin"}) {
		t.Errorf("ListFiles: %q, %v", names, err)
	}

	doc, data, err := c.ReadConfigFile(ctx)
	if err != nil {
		t.Fatalf("ReadConfigFile failed: %v", err)
	}
	if len(data) != len(raw) || !reflect.DeepEqual(doc.Inputs, testDocument().Inputs) {
		t.Error("stored config did not decode to the written document")
	}

	_, err = c.ReadFile(ctx, "/missing.bin")
	var de *transport.DeviceError
	if !errors.As(err, &de) || de.Reason != "FILE_NOT_FOUND" {
		t.Errorf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestConsole_ReadConfigFileGarbage(t *testing.T) {
	c := newTestConsole(t, &consoleFirmware{files: map[string][]byte{joycore.ConfigFileName: []byte("not a config")}})

	_, data, err := c.ReadConfigFile(context.Background())
	if !errors.Is(err, joycore.ErrTruncatedBuffer) {
		t.Errorf("expected truncation, got %v", err)
	}
	if string(data) != "not a config" {
		t.Errorf("raw bytes should be returned with the error, got %q", data)
	}
}

func TestConsole_FormatStorage(t *testing.T) {
	res, err := newTestConsole(t, &consoleFirmware{}).FormatStorage(context.Background())
	if err != nil || !res.OK() || res.Available != 1048576 {
		t.Errorf("FormatStorage: %+v, %v", res, err)
	}

	res, err = newTestConsole(t, &consoleFirmware{formatErr: 2}).FormatStorage(context.Background())
	if err != nil || res.OK() || res.HasAvailable {
		t.Errorf("failed format: %+v, %v", res, err)
	}
}

func TestConsole_ConfigCommands(t *testing.T) {
	c := newTestConsole(t, &consoleFirmware{})
	if err := c.SaveConfig(context.Background()); err != nil {
		t.Errorf("SaveConfig: %v", err)
	}
	if err := c.ForceDefaults(context.Background()); err != nil {
		t.Errorf("ForceDefaults: %v", err)
	}
}

func TestConsole_RawState(t *testing.T) {
	c := newTestConsole(t, &consoleFirmware{})
	ctx := context.Background()

	gpio, err := c.ReadGPIOStates(ctx)
	if err != nil || !gpio.High(2) || !gpio.High(3) || gpio.High(0) {
		t.Errorf("ReadGPIOStates: %+v, %v", gpio, err)
	}

	matrix, err := c.ReadMatrixState(ctx)
	if err != nil || len(matrix) != 2 || !matrix[1].Connected {
		t.Errorf("ReadMatrixState: %+v, %v", matrix, err)
	}

	regs, err := c.ReadShiftReg(ctx)
	if err != nil || len(regs) != 1 || regs[0].Value != 0xA5 {
		t.Errorf("ReadShiftReg: %+v, %v", regs, err)
	}

	c2 := newTestConsole(t, &consoleFirmware{noMatrix: true})
	if _, err := c2.ReadMatrixState(ctx); !errors.Is(err, joycore.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestConsole_RawMonitor(t *testing.T) {
	c := newTestConsole(t, &consoleFirmware{})
	ctx := context.Background()

	received := make(chan string, 8)
	if err := c.StartRawMonitor(ctx, func(l transport.Line) { received <- l.Text }); err != nil {
		t.Fatalf("StartRawMonitor failed: %v", err)
	}

	for _, want := range []string{"GPIO_STATES:0x1:10", "SHIFT_REG:0:0x01:11"} {
		select {
		case got := <-received:
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("telemetry line %q not delivered", want)
		}
	}

	if _, err := c.Identify(ctx); !errors.Is(err, transport.ErrMonitoring) {
		t.Errorf("commands should fail while monitoring, got %v", err)
	}

	if err := c.StopRawMonitor(ctx); err != nil {
		t.Fatalf("StopRawMonitor failed: %v", err)
	}
	if _, err := c.Identify(ctx); err != nil {
		t.Errorf("Identify after monitor: %v", err)
	}
}

func TestConsole_UnknownCommand(t *testing.T) {
	c := newTestConsole(t, &consoleFirmware{})
	lines := c.lines.(*transport.LineTransport)

	_, err := lines.Request(context.Background(), "BOGUS", transport.UntilAny())
	var de *transport.DeviceError
	if !errors.As(err, &de) || de.Reason != "UNKNOWN_COMMAND" {
		t.Errorf("expected UNKNOWN_COMMAND, got %v", err)
	}
}
