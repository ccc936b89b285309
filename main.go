// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Joylink - JoyCore configuration host tool
//
// A CLI tool for reading, validating and applying JoyCore controller
// configuration over HID, and for inspecting the controller through its
// serial console.

package main

import (
	"os"

	"github.com/Thermoquad/joylink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
