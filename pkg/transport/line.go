// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/joylink/pkg/joycore"
)

// DefaultIdleTimeout ends a request when the device goes quiet.
const DefaultIdleTimeout = 500 * time.Millisecond

const (
	lineBufferDepth = 256
	maxLineLength   = 1 << 20
)

// Line is one console line with its arrival time.
type Line struct {
	Text     string
	Received time.Time
}

// Terminator reports whether line completes a reply. A nil Terminator
// ends the reply on inactivity.
type Terminator func(line string) bool

// UntilPrefix ends a reply at the first line starting with prefix.
func UntilPrefix(prefix string) Terminator {
	return func(line string) bool {
		return strings.HasPrefix(line, prefix)
	}
}

// UntilLine ends a reply at a line equal to s.
func UntilLine(s string) Terminator {
	return func(line string) bool {
		return line == s
	}
}

// UntilAny ends a reply at the first line.
func UntilAny() Terminator {
	return func(string) bool { return true }
}

// LineTransport runs the text command channel. A single reader goroutine
// owns the stream; replies and monitor lines are consumed from its channel.
type LineTransport struct {
	rw     io.ReadWriteCloser
	idle   time.Duration
	logger joycore.Logger

	lines   chan Line
	readErr error
	closed  chan struct{}

	mu          sync.Mutex
	monitoring  bool
	monitorStop chan struct{}
	monitorDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// LineOption configures a LineTransport.
type LineOption func(*LineTransport)

// WithIdleTimeout sets the inactivity window for replies.
func WithIdleTimeout(d time.Duration) LineOption {
	return func(t *LineTransport) {
		t.idle = d
	}
}

// WithLineLogger sets a logger for console traffic.
func WithLineLogger(l joycore.Logger) LineOption {
	return func(t *LineTransport) {
		t.logger = l
	}
}

// NewLineTransport starts reading lines from rw.
func NewLineTransport(rw io.ReadWriteCloser, opts ...LineOption) *LineTransport {
	t := &LineTransport{
		rw:     rw,
		idle:   DefaultIdleTimeout,
		lines:  make(chan Line, lineBufferDepth),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = joycore.NopLogger{}
	}

	go t.readLoop()
	return t
}

func (t *LineTransport) readLoop() {
	defer close(t.lines)

	scanner := bufio.NewScanner(t.rw)
	scanner.Buffer(make([]byte, 4096), maxLineLength)
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		select {
		case t.lines <- Line{Text: text, Received: time.Now()}:
		case <-t.closed:
			return
		}
	}

	// readErr is published by the channel close
	if err := scanner.Err(); err != nil {
		t.readErr = err
	} else {
		t.readErr = io.EOF
	}
}

// Request writes cmd and collects reply lines until the terminator matches,
// the device reports an error or the idle timeout elapses. With a nil
// terminator the idle timeout ends a non-empty reply successfully.
func (t *LineTransport) Request(ctx context.Context, cmd string, until Terminator) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.monitorActive() {
		return nil, ErrMonitoring
	}

	t.drain()

	if _, err := io.WriteString(t.rw, cmd+"\n"); err != nil {
		return nil, &Error{Op: "write " + cmd, Err: err}
	}
	t.logger.Debug("console command sent", "cmd", cmd)

	var reply []string
	timer := time.NewTimer(t.idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return reply, ctx.Err()

		case <-timer.C:
			if until == nil && len(reply) > 0 {
				return reply, nil
			}
			return reply, fmt.Errorf("%s: no reply after %d lines: %w", cmd, len(reply), ErrTimeout)

		case line, ok := <-t.lines:
			if !ok {
				return reply, t.closedError("read " + cmd)
			}
			t.logger.Debug("console line", "text", line.Text)

			if e, isErr := joycore.ParseError(line.Text); isErr {
				return reply, &DeviceError{Command: cmd, Reason: e.Reason, Detail: e.Detail}
			}
			reply = append(reply, line.Text)
			if until != nil && until(line.Text) {
				return reply, nil
			}

			timer.Reset(t.idle)
		}
	}
}

// drain discards lines that arrived outside any request. Caller holds mu.
func (t *LineTransport) drain() {
	for {
		select {
		case line, ok := <-t.lines:
			if !ok {
				return
			}
			t.logger.Debug("dropping unsolicited line", "text", line.Text)
		default:
			return
		}
	}
}

func (t *LineTransport) closedError(op string) error {
	if t.readErr == nil || t.readErr == io.EOF {
		return &Error{Op: op, Err: ErrClosed}
	}
	return &Error{Op: op, Err: t.readErr}
}

// StartMonitor delivers every incoming line to handler on a background
// goroutine until StopMonitor. Requests fail with ErrMonitoring meanwhile.
func (t *LineTransport) StartMonitor(handler func(Line)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.monitorActive() {
		return ErrMonitoring
	}
	t.monitoring = true
	t.monitorStop = make(chan struct{})
	t.monitorDone = make(chan struct{})

	go t.monitorLoop(handler, t.monitorStop, t.monitorDone)
	return nil
}

// monitorActive reports whether a monitor goroutine is still running. A
// monitor whose stream ended is cleared so later requests see the closed
// stream. Caller holds mu.
func (t *LineTransport) monitorActive() bool {
	if !t.monitoring {
		return false
	}
	select {
	case <-t.monitorDone:
		t.monitoring = false
		return false
	default:
		return true
	}
}

func (t *LineTransport) monitorLoop(handler func(Line), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case line, ok := <-t.lines:
			if !ok {
				return
			}
			handler(line)
		}
	}
}

// StopMonitor ends monitor mode and waits for the handler goroutine.
func (t *LineTransport) StopMonitor() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.monitorActive() {
		return
	}
	close(t.monitorStop)
	<-t.monitorDone
	t.monitoring = false
}

// Monitoring reports whether monitor mode is active.
func (t *LineTransport) Monitoring() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.monitorActive()
}

// MonitorDone is closed when the most recent monitor goroutine exits,
// either from StopMonitor or because the stream ended. Nil before the first
// StartMonitor.
func (t *LineTransport) MonitorDone() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.monitorDone
}

// Close closes the underlying stream and stops monitoring.
func (t *LineTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.closeErr = t.rw.Close()
		t.StopMonitor()
	})
	return t.closeErr
}
