// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/joylink/pkg/joycore"
)

// Event log entry
type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for changes and notices
}

type matrixKey struct {
	row, col uint8
}

type monitorKeyMap struct {
	Quit  key.Binding
	Reset key.Binding
	Clear key.Binding
}

func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reset, k.Clear, k.Quit}
}

func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var monitorKeys = monitorKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset stats"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear log"),
	),
}

// TUI model
type monitorModel struct {
	connInfo      string
	stats         *joycore.Statistics
	gpio          *joycore.GPIOState
	matrix        map[matrixKey]bool
	shiftRegs     map[uint8]uint8
	eventLog      []monitorLogEntry
	maxLogEntries int
	lastDevice    uint64
	connected     bool
	spinner       spinner.Model
	help          help.Model
	keys          monitorKeyMap
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type lineMsg monitorLine
type streamClosedMsg struct{}

func newMonitorModel(connInfo string) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		stats:         joycore.NewStatistics(),
		matrix:        make(map[matrixKey]bool),
		shiftRegs:     make(map[uint8]uint8),
		eventLog:      []monitorLogEntry{},
		maxLogEntries: 100,
		connected:     true,
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:          help.New(),
		keys:          monitorKeys,
		width:         80,
		height:        24,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick, tea.EnterAltScreen)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reset):
			m.stats.Reset()
		case key.Matches(msg, m.keys.Clear):
			m.eventLog = m.eventLog[:0]
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case streamClosedMsg:
		if m.connected {
			m.connected = false
			m.addLogEntry(time.Now(), "Connection closed", true)
		}

	case lineMsg:
		m.handleLine(monitorLine(msg))
	}

	return m, nil
}

// handleLine updates statistics and input state from one console line
func (m *monitorModel) handleLine(ml monitorLine) {
	m.stats.Update(ml.line.Text, ml.event, ml.parseErr)
	at := ml.line.Received

	if ml.parseErr != nil {
		switch {
		case errors.Is(ml.parseErr, joycore.ErrNotConfigured):
			m.addLogEntry(at, "Not configured: "+ml.line.Text, false)
		case strings.HasPrefix(ml.line.Text, joycore.PrefixError):
			m.addLogEntry(at, "Device error: "+ml.line.Text, true)
		case isTelemetry(ml.line.Text):
			m.addLogEntry(at, ml.parseErr.Error(), true)
		}
		return
	}

	m.lastDevice = ml.event.Millis()
	switch e := ml.event.(type) {
	case *joycore.GPIOState:
		if m.gpio != nil {
			changed := m.gpio.Mask ^ e.Mask
			for pin := 0; pin < 32; pin++ {
				if changed&(1<<uint(pin)) != 0 {
					m.addLogEntry(at, fmt.Sprintf("GPIO %d %s", pin, level(e.High(pin))), false)
				}
			}
		}
		m.gpio = e

	case *joycore.MatrixState:
		k := matrixKey{e.Row, e.Col}
		if prev, seen := m.matrix[k]; seen && prev != e.Connected {
			m.addLogEntry(at, fmt.Sprintf("Matrix r%d c%d %s", e.Row, e.Col, contact(e.Connected)), false)
		}
		m.matrix[k] = e.Connected

	case *joycore.ShiftRegState:
		if prev, seen := m.shiftRegs[e.Register]; seen && prev != e.Value {
			m.addLogEntry(at, fmt.Sprintf("Shift register %d 0x%02X -> 0x%02X", e.Register, prev, e.Value), false)
		}
		m.shiftRegs[e.Register] = e.Value
	}
}

func level(high bool) string {
	if high {
		return "high"
	}
	return "low"
}

func contact(closed bool) string {
	if closed {
		return "closed"
	}
	return "open"
}

func (m *monitorModel) addLogEntry(at time.Time, message string, isError bool) {
	m.eventLog = append(m.eventLog, monitorLogEntry{
		timestamp: at,
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Stopping monitor...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	noticeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("JOYLINK - RAW MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(m.connInfo))
	s.WriteString("\n\n")

	if !m.connected {
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	} else if m.stats.TotalLines == 0 {
		s.WriteString(noticeStyle.Render(m.spinner.View() + " Waiting for telemetry..."))
	} else {
		s.WriteString(valueStyle.Render(m.spinner.View() + " Receiving"))
		s.WriteString(headerStyle.Render(" device time " + joycore.FormatUptime(m.lastDevice)))
	}
	s.WriteString("\n\n")

	// Statistics
	errorCount := m.stats.ParseErrors + m.stats.DeviceErrors
	stats := strings.Builder{}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Lines:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalLines)),
		labelStyle.Render("GPIO:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.GPIOLines)),
		labelStyle.Render("Matrix:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.MatrixLines)),
		labelStyle.Render("Shift:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.ShiftRegLines)),
	))
	if errorCount > 0 || m.stats.NotConfigured > 0 {
		stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Parse Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ParseErrors)),
			labelStyle.Render("Device Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DeviceErrors)),
			labelStyle.Render("Not Configured:"), noticeStyle.Render(fmt.Sprintf("%d", m.stats.NotConfigured)),
		))
	}
	rate := valueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		rate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Line Rate:"), valueStyle.Render(fmt.Sprintf("%.1f lines/s", m.stats.LineRate)),
		labelStyle.Render("Error Rate:"), rate,
	))
	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	// Input state
	s.WriteString(labelStyle.Render("Inputs:"))
	s.WriteString("\n")
	inputs := strings.Builder{}
	if m.gpio != nil {
		var bits strings.Builder
		for pin := 0; pin < 32; pin++ {
			if pin > 0 && pin%8 == 0 {
				bits.WriteString(" ")
			}
			if m.gpio.High(pin) {
				bits.WriteString("●")
			} else {
				bits.WriteString("○")
			}
		}
		inputs.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("GPIO 0-31:"), valueStyle.Render(bits.String())))
	}
	if closed := m.closedIntersections(); len(m.matrix) > 0 {
		inputs.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Matrix closed:"), valueStyle.Render(closed)))
	}
	if len(m.shiftRegs) > 0 {
		regs := make([]int, 0, len(m.shiftRegs))
		for r := range m.shiftRegs {
			regs = append(regs, int(r))
		}
		sort.Ints(regs)
		for _, r := range regs {
			inputs.WriteString(fmt.Sprintf("%s %s\n",
				labelStyle.Render(fmt.Sprintf("Shift %d:", r)),
				valueStyle.Render(fmt.Sprintf("%08b", m.shiftRegs[uint8(r)])),
			))
		}
	}
	if inputs.Len() == 0 {
		inputs.WriteString(headerStyle.Render("(no input state yet)"))
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(inputs.String(), "\n")))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), noticeStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

// closedIntersections lists closed matrix intersections in row order
func (m monitorModel) closedIntersections() string {
	var keys []matrixKey
	for k, closed := range m.matrix {
		if closed {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "none"
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].row != keys[j].row {
			return keys[i].row < keys[j].row
		}
		return keys[i].col < keys[j].col
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("r%dc%d", k.row, k.col)
	}
	return strings.Join(parts, " ")
}
