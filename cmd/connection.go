// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/Thermoquad/joylink/pkg/session"
	"github.com/Thermoquad/joylink/pkg/transport"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("JOYLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openConsoleStream opens either the serial console or the WebSocket bridge
func openConsoleStream() (io.ReadWriteCloser, string, error) {
	if cfg.Bridge.URL != "" {
		password := ""
		if cfg.Bridge.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ws, err := transport.OpenWebSocket(cfg.Bridge.URL, cfg.Bridge.Username, password, cfg.Bridge.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return ws, fmt.Sprintf("WebSocket: %s", cfg.Bridge.URL), nil
	}

	if cfg.Serial.Port != "" {
		port, err := transport.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return nil, "", err
		}
		return port, fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified for console commands")
}

// OpenLines opens the console and starts its line reader
func OpenLines() (*transport.LineTransport, string, error) {
	rw, info, err := openConsoleStream()
	if err != nil {
		return nil, "", err
	}
	lines := transport.NewLineTransport(rw,
		transport.WithIdleTimeout(cfg.Timing.IdleTimeout),
		transport.WithLineLogger(logger),
	)
	return lines, info, nil
}

// OpenConsole opens the text command channel of the controller
func OpenConsole() (*session.Console, string, error) {
	codec, err := cfg.NewCodec(joycore.WithLogger(logger))
	if err != nil {
		return nil, "", err
	}
	lines, info, err := OpenLines()
	if err != nil {
		return nil, "", err
	}
	return session.NewConsole(lines,
		session.WithConsoleCodec(codec),
		session.WithConsoleLogger(logger),
	), info, nil
}

// OpenSession opens the HID configuration interface of the controller.
// extra options are applied after the ones derived from settings.
func OpenSession(extra ...session.Option) (*session.Session, string, error) {
	codec, err := cfg.NewCodec(joycore.WithLogger(logger))
	if err != nil {
		return nil, "", err
	}

	opts := []transport.FeatureOption{
		transport.WithSettleDelay(cfg.Timing.SettleDelay),
		transport.WithReadTimeout(cfg.Timing.ReadTimeout),
		transport.WithReportID(cfg.Device.ReportID),
		transport.WithFeatureLogger(logger),
	}

	var (
		tr   *transport.FeatureTransport
		info string
	)
	if cfg.Device.HIDPath != "" {
		tr, err = transport.OpenFeaturePath(cfg.Device.HIDPath, opts...)
		info = fmt.Sprintf("HID: %s", cfg.Device.HIDPath)
	} else {
		tr, err = transport.OpenFeature(cfg.Device.VendorID, cfg.Device.ProductID, opts...)
		info = fmt.Sprintf("HID: %04X:%04X", cfg.Device.VendorID, cfg.Device.ProductID)
	}
	if err != nil {
		return nil, "", err
	}

	sessionOpts := []session.Option{
		session.WithCodec(codec),
		session.WithLogger(logger),
		session.WithRetries(cfg.Timing.Retries),
	}
	return session.New(tr, append(sessionOpts, extra...)...), info, nil
}

// commandContext bounds one device command by --timeout and Ctrl+C
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
