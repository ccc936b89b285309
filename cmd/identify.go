// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/Thermoquad/joylink/pkg/transport"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Check that a JoyCore controller answers on the console",
	Long: `Send IDENTIFY on the console and wait for the JoyCore signature.

Stale output already buffered by the device is discarded before the probe.
The reply must carry the JOYCORE-FW signature and the JoyCore magic.

Exit codes:
  0 - JoyCore controller identified
  1 - Timeout or reply from something that is not a JoyCore controller
  2 - Connection error

Useful for finding the right serial port or testing a WebSocket bridge.`,
	RunE: runIdentify,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List HID interfaces and serial ports",
	Long: `List HID interfaces matching the configured vendor and product ID, and
every serial port present on the host.

Use --vid 0 --pid 0 to list all HID interfaces.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(devicesCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	console, connInfo, err := OpenConsole()
	if err != nil {
		exitWith(2, "Connection error: %v", err)
	}
	defer console.Close()

	fmt.Printf("Joylink - Identify\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n", opTimeout)
	fmt.Printf("Waiting for JoyCore signature...\n\n")

	ctx, cancel := commandContext()
	defer cancel()

	id, err := console.Identify(ctx)
	switch {
	case err == nil:
		fmt.Printf("SUCCESS: JoyCore controller identified\n")
		fmt.Printf("  Signature: %s\n", id.Signature)
		fmt.Printf("  Magic:     0x%08X\n", id.Magic)
		fmt.Printf("  Firmware:  %s\n", id.Firmware)
		os.Exit(0)

	case errors.Is(err, transport.ErrTransport):
		exitWith(2, "Read error: %v", err)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, transport.ErrTimeout):
		exitWith(1, "TIMEOUT: No JoyCore signature received within %s", opTimeout)

	case errors.Is(err, joycore.ErrMalformedLine), errors.Is(err, joycore.ErrInvalidMagic):
		exitWith(1, "NOT JOYCORE: %v", err)

	default:
		exitWith(1, "FAILED: %v", err)
	}

	return nil
}

func runDevices(cmd *cobra.Command, args []string) error {
	fmt.Printf("HID interfaces (%04X:%04X):\n", cfg.Device.VendorID, cfg.Device.ProductID)
	devices, err := transport.ListFeatureDevices(cfg.Device.VendorID, cfg.Device.ProductID)
	if err != nil {
		fmt.Printf("  (unavailable: %v)\n", err)
	} else if len(devices) == 0 {
		fmt.Printf("  (none)\n")
	}
	for _, d := range devices {
		fmt.Printf("  %s\n", d.Path)
		fmt.Printf("    %04X:%04X %s %s", d.VendorID, d.ProductID, d.Manufacturer, d.Product)
		if d.Serial != "" {
			fmt.Printf(" [%s]", d.Serial)
		}
		fmt.Printf("\n    interface %d, usage page 0x%04X, usage 0x%04X\n", d.Interface, d.UsagePage, d.Usage)
	}

	fmt.Printf("\nSerial ports:\n")
	ports, err := transport.ListSerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Printf("  (none)\n")
	}
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}
