// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/sstallion/go-hid"
)

// Default feature report timing
const (
	DefaultSettleDelay = 200 * time.Millisecond
	DefaultReadTimeout = time.Second
)

// FrameTransport exchanges fixed-size protocol frames with a device.
type FrameTransport interface {
	// Exchange writes one frame and returns the device's reply frame.
	Exchange(ctx context.Context, req []byte) ([]byte, error)
	// Receive reads the next pending reply frame without writing.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// FeatureDevice is the subset of a HID handle used for feature reports.
// *hid.Device satisfies it.
type FeatureDevice interface {
	SendFeatureReport(b []byte) (int, error)
	GetFeatureReport(b []byte) (int, error)
	Close() error
}

// FeatureTransport carries frames in HID feature reports: each request is
// a SET_REPORT, the reply is fetched with GET_REPORT on the same report ID
// after a settle delay.
type FeatureTransport struct {
	dev      FeatureDevice
	reportID byte
	settle   time.Duration
	timeout  time.Duration
	logger   joycore.Logger

	mu     sync.Mutex
	closed bool

	// pending holds a GET_REPORT that outlived its read timeout. No other
	// HID call is issued on dev until it returns.
	pending chan featureResult
}

// FeatureOption configures a FeatureTransport.
type FeatureOption func(*FeatureTransport)

// WithSettleDelay sets the pause between writing a request and reading the
// reply.
func WithSettleDelay(d time.Duration) FeatureOption {
	return func(t *FeatureTransport) {
		t.settle = d
	}
}

// WithReadTimeout bounds each GET_REPORT call.
func WithReadTimeout(d time.Duration) FeatureOption {
	return func(t *FeatureTransport) {
		t.timeout = d
	}
}

// WithReportID overrides the feature report ID.
func WithReportID(id byte) FeatureOption {
	return func(t *FeatureTransport) {
		t.reportID = id
	}
}

// WithFeatureLogger sets a logger for frame traffic.
func WithFeatureLogger(l joycore.Logger) FeatureOption {
	return func(t *FeatureTransport) {
		t.logger = l
	}
}

// NewFeatureTransport wraps an already open device.
func NewFeatureTransport(dev FeatureDevice, opts ...FeatureOption) *FeatureTransport {
	t := &FeatureTransport{
		dev:      dev,
		reportID: joycore.ReportID,
		settle:   DefaultSettleDelay,
		timeout:  DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = joycore.NopLogger{}
	}
	return t
}

// OpenFeature opens the first HID device matching vid and pid.
func OpenFeature(vid, pid uint16, opts ...FeatureOption) (*FeatureTransport, error) {
	if err := hid.Init(); err != nil {
		return nil, &Error{Op: "hid init", Err: err}
	}
	dev, err := hid.OpenFirst(vid, pid)
	if err != nil {
		return nil, &Error{Op: fmt.Sprintf("open HID %04X:%04X", vid, pid), Err: err}
	}
	return NewFeatureTransport(dev, opts...), nil
}

// OpenFeaturePath opens a HID device by platform path.
func OpenFeaturePath(path string, opts ...FeatureOption) (*FeatureTransport, error) {
	if err := hid.Init(); err != nil {
		return nil, &Error{Op: "hid init", Err: err}
	}
	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, &Error{Op: "open HID " + path, Err: err}
	}
	return NewFeatureTransport(dev, opts...), nil
}

// DeviceInfo describes an enumerated HID interface.
type DeviceInfo struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       string
	UsagePage    uint16
	Usage        uint16
	Interface    int
}

// ListFeatureDevices enumerates HID interfaces matching vid and pid. Zero
// matches any value.
func ListFeatureDevices(vid, pid uint16) ([]DeviceInfo, error) {
	if err := hid.Init(); err != nil {
		return nil, &Error{Op: "hid init", Err: err}
	}
	var devices []DeviceInfo
	err := hid.Enumerate(vid, pid, func(info *hid.DeviceInfo) error {
		devices = append(devices, DeviceInfo{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			Manufacturer: info.MfrStr,
			Product:      info.ProductStr,
			Serial:       info.SerialNbr,
			UsagePage:    info.UsagePage,
			Usage:        info.Usage,
			Interface:    info.InterfaceNbr,
		})
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "hid enumerate", Err: err}
	}
	return devices, nil
}

// Exchange writes req, waits the settle delay and reads the reply.
func (t *FeatureTransport) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.send(ctx, req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(t.settle):
	}

	return t.receive(ctx)
}

// Receive reads the pending reply frame.
func (t *FeatureTransport) Receive(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.receive(ctx)
}

func (t *FeatureTransport) send(ctx context.Context, req []byte) error {
	if t.closed {
		return ErrClosed
	}
	if err := t.awaitPending(ctx); err != nil {
		return err
	}
	if len(req) == 0 || req[0] != t.reportID {
		return fmt.Errorf("request must start with report ID 0x%02X", t.reportID)
	}
	if _, err := t.dev.SendFeatureReport(req); err != nil {
		return &Error{Op: "send feature report", Err: err}
	}
	t.logger.Debug("feature report sent", "type", joycore.MessageType(byteAt(req, 1)), "len", len(req))
	return nil
}

type featureResult struct {
	n   int
	err error
}

// awaitPending waits up to the read timeout for an abandoned GET_REPORT
// and discards its reply. Caller holds mu.
func (t *FeatureTransport) awaitPending(ctx context.Context) error {
	if t.pending == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(t.timeout):
		return fmt.Errorf("previous get feature report still blocked: %w", ErrTimeout)
	case res := <-t.pending:
		t.pending = nil
		t.logger.Debug("discarded late feature report", "len", res.n, "err", res.err)
		return nil
	}
}

func (t *FeatureTransport) receive(ctx context.Context) ([]byte, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if err := t.awaitPending(ctx); err != nil {
		return nil, err
	}

	buf := make([]byte, joycore.FrameSize)
	buf[0] = t.reportID

	// GET_REPORT blocks inside the HID library. A call still running when
	// this returns is kept in pending.
	done := make(chan featureResult, 1)
	go func() {
		n, err := t.dev.GetFeatureReport(buf)
		done <- featureResult{n: n, err: err}
	}()

	select {
	case <-ctx.Done():
		t.pending = done
		return nil, ctx.Err()
	case <-time.After(t.timeout):
		t.pending = done
		return nil, fmt.Errorf("get feature report: %w", ErrTimeout)
	case res := <-done:
		if res.err != nil {
			return nil, &Error{Op: "get feature report", Err: res.err}
		}
		if res.n <= 0 {
			return nil, fmt.Errorf("get feature report: empty reply: %w", ErrTimeout)
		}
		t.logger.Debug("feature report received", "type", joycore.MessageType(byteAt(buf, 1)), "len", res.n)
		return buf[:min(res.n, len(buf))], nil
	}
}

// Close releases the device.
func (t *FeatureTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.dev.Close()
}

func byteAt(b []byte, i int) byte {
	if i < len(b) {
		return b[i]
	}
	return 0
}
