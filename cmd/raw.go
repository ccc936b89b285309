// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/joylink/pkg/joycore"
)

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Sample raw input state once over the console",
	Long: `Sample the raw electrical state of the controller inputs once.

Use "joylink monitor" to stream changes continuously.`,
}

var rawGPIOCmd = &cobra.Command{
	Use:   "gpio",
	Short: "Read all GPIO levels",
	RunE:  runRawGPIO,
}

var rawMatrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Read every button matrix intersection",
	RunE:  runRawMatrix,
}

var rawShiftRegCmd = &cobra.Command{
	Use:   "shiftreg",
	Short: "Read every shift register",
	RunE:  runRawShiftReg,
}

func init() {
	rootCmd.AddCommand(rawCmd)
	rawCmd.AddCommand(rawGPIOCmd, rawMatrixCmd, rawShiftRegCmd)
}

func runRawGPIO(cmd *cobra.Command, args []string) error {
	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	state, err := console.ReadGPIOStates(ctx)
	if err != nil {
		return err
	}
	fmt.Println(joycore.FormatRawEvent(time.Now(), state))
	return nil
}

func runRawMatrix(cmd *cobra.Command, args []string) error {
	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	states, err := console.ReadMatrixState(ctx)
	if errors.Is(err, joycore.ErrNotConfigured) {
		fmt.Println("No button matrix configured")
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now()
	closed := 0
	for i := range states {
		if states[i].Connected {
			closed++
		}
		fmt.Println(joycore.FormatRawEvent(now, &states[i]))
	}
	fmt.Printf("%d intersections, %d closed\n", len(states), closed)
	return nil
}

func runRawShiftReg(cmd *cobra.Command, args []string) error {
	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	states, err := console.ReadShiftReg(ctx)
	if errors.Is(err, joycore.ErrNotConfigured) {
		fmt.Println("No shift registers configured")
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range states {
		fmt.Println(joycore.FormatRawEvent(now, &states[i]))
	}
	return nil
}
