// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session drives JoyCore configuration commands over a frame
// transport and console commands over a line transport.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/Thermoquad/joylink/pkg/transport"
)

// Result is the outcome of a command without a document payload.
type Result struct {
	Type   joycore.MessageType
	Status joycore.Status
	// Validation is set for VALIDATE_CONFIG replies.
	Validation *joycore.ValidationReport
}

// Session issues configuration commands one at a time.
type Session struct {
	tr       transport.FrameTransport
	codec    *joycore.Codec
	logger   joycore.Logger
	retries  int
	validate bool

	mu sync.Mutex
}

// Option configures a Session.
type Option func(*Session)

// WithCodec sets the codec used for documents.
func WithCodec(c *joycore.Codec) Option {
	return func(s *Session) {
		s.codec = c
	}
}

// WithLogger sets the session logger.
func WithLogger(l joycore.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithRetries sets how many times a frame exchange is repeated after a
// timeout. Other failures are never retried.
func WithRetries(n int) Option {
	return func(s *Session) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithHostValidation makes SetConfig refuse documents with validation
// errors before anything is sent.
func WithHostValidation(enabled bool) Option {
	return func(s *Session) {
		s.validate = enabled
	}
}

// New creates a session over tr.
func New(tr transport.FrameTransport, opts ...Option) *Session {
	s := &Session{
		tr:       tr,
		retries:  1,
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codec == nil {
		s.codec = joycore.NewCodec()
	}
	if s.logger == nil {
		s.logger = joycore.NopLogger{}
	}
	return s
}

// Codec returns the session's document codec.
func (s *Session) Codec() *joycore.Codec { return s.codec }

// Close closes the transport.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Close()
}

// GetConfigStatus reads the storage and configuration summary.
func (s *Session) GetConfigStatus(ctx context.Context) (*joycore.ConfigStatus, error) {
	payload, _, err := s.roundTrip(ctx, joycore.MsgGetStatus, nil)
	if err != nil {
		return nil, err
	}
	return joycore.DecodeStatus(payload)
}

// GetConfig reads and decodes the active configuration.
func (s *Session) GetConfig(ctx context.Context) (*joycore.Document, error) {
	raw, err := s.GetConfigBytes(ctx)
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(raw)
}

// GetConfigBytes reads the active configuration without decoding it.
func (s *Session) GetConfigBytes(ctx context.Context) ([]byte, error) {
	payload, _, err := s.roundTrip(ctx, joycore.MsgGetConfig, nil)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// SetConfig encodes doc and applies it on the device.
func (s *Session) SetConfig(ctx context.Context, doc *joycore.Document) (*Result, error) {
	if s.validate {
		findings := joycore.Validate(doc)
		for i := range findings {
			if !findings[i].Warning {
				return nil, fmt.Errorf("set config: %w", &findings[i])
			}
		}
	}
	raw, err := s.codec.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("set config: %w", err)
	}
	return s.SetConfigBytes(ctx, raw)
}

// SetConfigBytes sends an already encoded document. Documents failing the
// checksum check are rejected without contacting the device.
func (s *Session) SetConfigBytes(ctx context.Context, raw []byte) (*Result, error) {
	if err := s.codec.VerifyChecksum(raw); err != nil {
		return nil, fmt.Errorf("set config: %w", err)
	}
	return s.command(ctx, joycore.MsgSetConfig, raw)
}

// ValidateConfig asks the device to check doc without applying it. A
// rejected document returns both the Result with the device report and a
// *joycore.ProtocolError.
func (s *Session) ValidateConfig(ctx context.Context, doc *joycore.Document) (*Result, error) {
	raw, err := s.codec.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	payload, final, err := s.roundTrip(ctx, joycore.MsgValidateConfig, raw)
	if final == nil {
		return nil, err
	}

	res := &Result{Type: final.Type, Status: final.Status}
	report := final.Payload()
	if payload != nil {
		report = payload
	}
	if len(report) >= joycore.ValidationReportSize {
		if v, derr := joycore.DecodeValidationReport(report); derr == nil {
			res.Validation = v
		}
	}
	if err != nil && res.Validation != nil {
		var pe *joycore.ProtocolError
		if errors.As(err, &pe) && pe.Reason == "" {
			pe.Reason = res.Validation.FirstError
		}
	}
	return res, err
}

// ResetConfig restores factory defaults on the device.
func (s *Session) ResetConfig(ctx context.Context) (*Result, error) {
	return s.command(ctx, joycore.MsgResetConfig, nil)
}

// SaveConfig persists the active configuration to device storage.
func (s *Session) SaveConfig(ctx context.Context) (*Result, error) {
	return s.command(ctx, joycore.MsgSaveConfig, nil)
}

// LoadConfig reloads the configuration from device storage.
func (s *Session) LoadConfig(ctx context.Context) (*Result, error) {
	return s.command(ctx, joycore.MsgLoadConfig, nil)
}

func (s *Session) command(ctx context.Context, t joycore.MessageType, payload []byte) (*Result, error) {
	_, final, err := s.roundTrip(ctx, t, payload)
	if err != nil {
		return nil, err
	}
	return &Result{Type: final.Type, Status: final.Status}, nil
}

// roundTrip sends a request and collects its reply. Every request frame is
// acknowledged by the device; the reply to the last frame starts the
// response, and further response frames are polled until complete. final
// is the first response frame, set whenever one was received.
func (s *Session) roundTrip(ctx context.Context, t joycore.MessageType, payload []byte) ([]byte, *joycore.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames, err := joycore.BuildRequest(t, payload)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("request", "type", t, "bytes", len(payload), "frames", len(frames))

	var reply *joycore.Frame
	for i := range frames {
		wire, err := frames[i].MarshalBinary()
		if err != nil {
			return nil, nil, err
		}
		reply, err = s.exchange(ctx, wire)
		if err != nil {
			return nil, nil, fmt.Errorf("%s frame %d/%d: %w", t, i+1, len(frames), err)
		}
		if reply.Status != joycore.StatusOK {
			return nil, reply, replyError(t, reply)
		}
		if i < len(frames)-1 && reply.Type != t {
			return nil, reply, &joycore.ProtocolError{
				Op:     t.String(),
				Reason: fmt.Sprintf("acknowledged with %s", reply.Type),
			}
		}
	}

	r := joycore.NewReassembler()
	r.Expect(t)
	done, err := r.Add(reply)
	for err == nil && !done {
		var next *joycore.Frame
		next, err = s.receive(ctx)
		if err != nil {
			err = fmt.Errorf("%s reply frame %d/%d: %w", t, r.Received()+1, r.Total(), err)
			break
		}
		if next.Status != joycore.StatusOK {
			return nil, reply, replyError(t, next)
		}
		done, err = r.Add(next)
	}
	if err != nil {
		return nil, reply, err
	}

	out, err := r.Bytes()
	if err != nil {
		return nil, reply, err
	}
	s.logger.Debug("reply", "type", t, "bytes", len(out), "frames", r.Total())
	return out, reply, nil
}

func (s *Session) exchange(ctx context.Context, wire []byte) (*joycore.Frame, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying after timeout", "attempt", attempt, "err", lastErr)
		}
		b, err := s.tr.Exchange(ctx, wire)
		if err == nil {
			return joycore.ParseFrame(b)
		}
		if !errors.Is(err, transport.ErrTimeout) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Session) receive(ctx context.Context) (*joycore.Frame, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		b, err := s.tr.Receive(ctx)
		if err == nil {
			return joycore.ParseFrame(b)
		}
		if !errors.Is(err, transport.ErrTimeout) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// replyError converts a non-zero status reply into a ProtocolError. Error
// replies usually carry a NUL-terminated message.
func replyError(t joycore.MessageType, f *joycore.Frame) error {
	return &joycore.ProtocolError{
		Op:     t.String(),
		Status: f.Status,
		Reason: errorText(f.Payload()),
	}
}

// errorText returns the printable message in an error reply, or "" when the
// payload is not text.
func errorText(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if len(b) == 0 {
		return ""
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return ""
		}
	}
	return string(b)
}
