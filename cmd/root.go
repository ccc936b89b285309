// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/joylink/internal/settings"
)

var (
	// Console connection flags
	portName string
	baudRate int

	// WebSocket console bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// HID configuration interface flags
	vendorID  uint16
	productID uint16
	hidPath   string

	// Tool flags
	settingsPath string
	codecProfile string
	opTimeout    time.Duration
	verbose      bool
)

// cfg holds the settings file merged with command line overrides
var cfg = settings.Default()

var rootCmd = &cobra.Command{
	Use:   "joylink",
	Short: "JoyCore configuration host tool",
	Long: `Joylink - A CLI tool for reading, editing and applying JoyCore controller
configuration.

Configuration commands use the HID feature report interface of the
controller. Identification, storage and raw input commands use the text
console, which is reached over a serial port or a WebSocket bridge.

Connection modes:
  HID:       [--vid 0x2E8A --pid 0xA02F] or --hid-path /dev/hidraw3
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Defaults are read from the settings file (see --config) and written there
on first use. Flags override the file.

For WebSocket authentication, the password is read from the JOYLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Console connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial console device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket console bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// HID flags
	rootCmd.PersistentFlags().Uint16Var(&vendorID, "vid", 0, "USB vendor ID of the controller")
	rootCmd.PersistentFlags().Uint16Var(&productID, "pid", 0, "USB product ID of the controller")
	rootCmd.PersistentFlags().StringVar(&hidPath, "hid-path", "", "HID device path (overrides --vid/--pid)")

	// Tool flags
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Settings file (default: user config dir/joylink/config.toml)")
	rootCmd.PersistentFlags().StringVar(&codecProfile, "profile", "", "Binary layout profile: host or firmware")
	rootCmd.PersistentFlags().DurationVar(&opTimeout, "timeout", 10*time.Second, "Overall timeout for a device command")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol traffic")
}

// loadSettings reads the settings file and applies flags given on the
// command line on top of it.
func loadSettings(cmd *cobra.Command, args []string) error {
	path := settingsPath
	if path == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			logger.Warn("no user config directory, using built-in settings", "err", err)
		}
		path = p
	}

	if path != "" {
		s, err := settings.Load(path)
		if err != nil {
			return fmt.Errorf("settings: %w", err)
		}
		cfg = s
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Bridge.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Bridge.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Bridge.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("vid") {
		cfg.Device.VendorID = vendorID
	}
	if flags.Changed("pid") {
		cfg.Device.ProductID = productID
	}
	if flags.Changed("hid-path") {
		cfg.Device.HIDPath = hidPath
	}
	if flags.Changed("profile") {
		cfg.Codec.Profile = codecProfile
		cfg.Codec.AxisLayout = ""
		cfg.Codec.ChecksumScope = ""
	}

	logger = stdLogger{debug: verbose}
	return cfg.Validate()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// exitWith prints err and terminates with code, for commands documenting
// exit codes.
func exitWith(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
