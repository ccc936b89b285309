// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/Thermoquad/joylink/pkg/session"
	"github.com/Thermoquad/joylink/pkg/transport"
)

var (
	statsInterval int
	useTUI        bool
	errorsOnly    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream raw input telemetry from the console",
	Long: `Start the firmware raw monitor and display every GPIO, matrix and shift
register report as it arrives.

Lines that do not parse are counted and highlighted, together with device
errors reported on the console. Statistics (line rate, error rate, per-kind
counts) are shown live in the terminal UI, or printed at a fixed interval
in text mode.

The monitor is stopped on the device when the command exits.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics interval in text mode (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Text mode: print only lines that fail to parse")
}

// monitorLine is one console line with its parse result
type monitorLine struct {
	line     transport.Line
	event    joycore.RawEvent
	parseErr error
}

func classify(l transport.Line) monitorLine {
	event, err := joycore.ParseRawLine(l.Text)
	return monitorLine{line: l, event: event, parseErr: err}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive, got %d", statsInterval)
	}

	lines, connInfo, err := OpenLines()
	if err != nil {
		return err
	}
	console := session.NewConsole(lines, session.WithConsoleLogger(logger))
	defer console.Close()

	if useTUI {
		return runMonitorTUI(console, lines, connInfo)
	}
	return runMonitorText(console, lines, connInfo)
}

// startMonitor starts the device monitor and forwards classified lines to
// deliver.
func startMonitor(console *session.Console, deliver func(monitorLine)) error {
	ctx, cancel := commandContext()
	defer cancel()
	return console.StartRawMonitor(ctx, func(l transport.Line) {
		deliver(classify(l))
	})
}

// stopMonitor stops the device monitor, logging failures since the
// command is already exiting.
func stopMonitor(console *session.Console) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := console.StopRawMonitor(ctx); err != nil && !errors.Is(err, transport.ErrClosed) {
		logger.Warn("stop raw monitor", "err", err)
	}
}

// runMonitorText prints telemetry lines with periodic statistics
func runMonitorText(console *session.Console, lines *transport.LineTransport, connInfo string) error {
	fmt.Printf("Joylink - Raw Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if errorsOnly {
		fmt.Printf("Mode: Errors only\n")
	} else {
		fmt.Printf("Mode: All lines\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	incoming := make(chan monitorLine, 64)
	quit := make(chan struct{})
	deliver := func(m monitorLine) {
		select {
		case incoming <- m:
		case <-quit:
		}
	}
	if err := startMonitor(console, deliver); err != nil {
		return err
	}
	defer stopMonitor(console)
	defer close(quit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := joycore.NewStatistics()
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	done := lines.MonitorDone()
	for {
		select {
		case m := <-incoming:
			stats.Update(m.line.Text, m.event, m.parseErr)
			printMonitorLine(m)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case <-done:
			fmt.Printf("\nConnection closed\n")
			fmt.Print(stats.String())
			return nil

		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		}
	}
}

// printMonitorLine prints one line, highlighting failures
func printMonitorLine(m monitorLine) {
	timestamp := m.line.Received.Format("15:04:05.000")

	switch {
	case m.parseErr == nil:
		if !errorsOnly {
			fmt.Println(joycore.FormatRawEvent(m.line.Received, m.event))
		}

	case errors.Is(m.parseErr, joycore.ErrNotConfigured):
		fmt.Printf("[%s] \033[1;33mNOT CONFIGURED:\033[0m %s\n", timestamp, m.line.Text)

	case strings.HasPrefix(m.line.Text, joycore.PrefixError):
		fmt.Printf("[%s] \033[1;31mDEVICE ERROR:\033[0m %s\n", timestamp, m.line.Text)

	case errors.Is(m.parseErr, joycore.ErrMalformedLine) && isTelemetry(m.line.Text):
		fmt.Printf("[%s] \033[1;31mPARSE ERROR:\033[0m %v\n", timestamp, m.parseErr)

	default:
		if !errorsOnly {
			fmt.Printf("[%s] %s\n", timestamp, m.line.Text)
		}
	}
}

func isTelemetry(line string) bool {
	return strings.HasPrefix(line, joycore.PrefixGPIO) ||
		strings.HasPrefix(line, joycore.PrefixMatrix) ||
		strings.HasPrefix(line, joycore.PrefixShiftReg)
}

// runMonitorTUI runs the monitor in the terminal UI
func runMonitorTUI(console *session.Console, lines *transport.LineTransport, connInfo string) error {
	m := newMonitorModel(connInfo)
	p := tea.NewProgram(m)

	if err := startMonitor(console, func(ml monitorLine) { p.Send(lineMsg(ml)) }); err != nil {
		return err
	}
	defer stopMonitor(console)

	if done := lines.MonitorDone(); done != nil {
		go func() {
			<-done
			p.Send(streamClosedMsg{})
		}()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
