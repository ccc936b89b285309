// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

import "fmt"

// BuildRequest splits payload into ceil(len/56) frames sharing the same
// total count. An empty payload yields one empty frame.
func BuildRequest(t MessageType, payload []byte) ([]Frame, error) {
	if !t.Valid() {
		return nil, &ProtocolError{Op: "build request", Reason: fmt.Sprintf("invalid message type 0x%02X", uint8(t))}
	}
	count := (len(payload) + FramePayload - 1) / FramePayload
	if count == 0 {
		count = 1
	}
	if count > MaxFrames {
		return nil, &ProtocolError{Op: "build request", Reason: fmt.Sprintf("payload of %d bytes needs %d frames, max %d", len(payload), count, MaxFrames)}
	}

	frames := make([]Frame, count)
	for i := range frames {
		start := i * FramePayload
		end := min(start+FramePayload, len(payload))
		f := &frames[i]
		f.Type = t
		f.Sequence = uint8(i)
		f.Total = uint8(count)
		if start < end {
			f.DataLength = uint16(copy(f.Data[:], payload[start:end]))
		}
	}
	return frames, nil
}

// ReassemblyState tracks progress of an incoming multi-frame message.
type ReassemblyState int

const (
	StateIdle ReassemblyState = iota
	StateAwaiting
	StateReassembling
	StateComplete
	StateFailed
)

func (s ReassemblyState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaiting:
		return "AWAITING"
	case StateReassembling:
		return "REASSEMBLING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("STATE_%d", int(s))
	}
}

// Reassembler collects the frames of one message. Frames must arrive in
// order starting at sequence 0 with a constant type and total count.
type Reassembler struct {
	state    ReassemblyState
	msgType  MessageType
	total    uint8
	next     uint8
	buffer   []byte
	expected MessageType
	err      error
}

// NewReassembler returns a reassembler that accepts any message type.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Expect arms the reassembler for the reply to a request of type t. The
// first frame must then carry the same type.
func (r *Reassembler) Expect(t MessageType) {
	r.Reset()
	r.expected = t
	r.state = StateAwaiting
}

// State returns the current state.
func (r *Reassembler) State() ReassemblyState { return r.state }

// Type returns the message type of the frames accepted so far.
func (r *Reassembler) Type() MessageType { return r.msgType }

// Received returns the number of frames accepted so far.
func (r *Reassembler) Received() int { return int(r.next) }

// Total returns the announced frame count, or zero before the first frame.
func (r *Reassembler) Total() int { return int(r.total) }

// Err returns the failure that moved the reassembler to StateFailed.
func (r *Reassembler) Err() error { return r.err }

// Reset discards any partial message.
func (r *Reassembler) Reset() {
	r.state = StateIdle
	r.msgType = 0
	r.total = 0
	r.next = 0
	r.buffer = nil
	r.expected = 0
	r.err = nil
}

// Add feeds one frame. It returns true once the message is complete.
// Any rule violation moves the reassembler to StateFailed and drops the
// partial payload; Reset must be called before reuse.
func (r *Reassembler) Add(f *Frame) (bool, error) {
	switch r.state {
	case StateComplete:
		return false, r.fail(fmt.Sprintf("frame %d after message complete", f.Sequence), f.Status)
	case StateFailed:
		return false, r.err
	}

	if f.Status != StatusOK {
		return false, r.fail(fmt.Sprintf("device reported %s", StatusText(f.Status)), f.Status)
	}
	if f.DataLength > FramePayload {
		return false, r.fail(fmt.Sprintf("data length %d exceeds %d", f.DataLength, FramePayload), f.Status)
	}
	if f.Total == 0 || f.Sequence >= f.Total {
		return false, r.fail(fmt.Sprintf("sequence %d not below total %d", f.Sequence, f.Total), f.Status)
	}

	if r.state == StateIdle || r.state == StateAwaiting {
		if r.expected != 0 && f.Type != r.expected {
			return false, r.fail(fmt.Sprintf("reply type %s, expected %s", f.Type, r.expected), f.Status)
		}
		if f.Sequence != 0 {
			return false, r.fail(fmt.Sprintf("first frame has sequence %d", f.Sequence), f.Status)
		}
		r.msgType = f.Type
		r.total = f.Total
		r.buffer = make([]byte, 0, int(f.Total)*FramePayload)
		r.state = StateReassembling
	} else {
		if f.Type != r.msgType {
			return false, r.fail(fmt.Sprintf("type changed from %s to %s", r.msgType, f.Type), f.Status)
		}
		if f.Total != r.total {
			return false, r.fail(fmt.Sprintf("total changed from %d to %d", r.total, f.Total), f.Status)
		}
		if f.Sequence != r.next {
			return false, r.fail(fmt.Sprintf("sequence %d, expected %d", f.Sequence, r.next), f.Status)
		}
	}

	r.buffer = append(r.buffer, f.Payload()...)
	r.next++
	if r.next == r.total {
		r.state = StateComplete
		return true, nil
	}
	return false, nil
}

func (r *Reassembler) fail(reason string, status Status) error {
	r.state = StateFailed
	r.buffer = nil
	r.err = &ProtocolError{Op: "reassemble", Status: status, Reason: reason}
	return r.err
}

// Bytes returns the reassembled payload once the message is complete.
func (r *Reassembler) Bytes() ([]byte, error) {
	if r.state != StateComplete {
		return nil, &ProtocolError{Op: "reassemble", Reason: fmt.Sprintf("message incomplete (%s, %d of %d frames)", r.state, r.next, r.total)}
	}
	out := make([]byte, len(r.buffer))
	copy(out, r.buffer)
	return out, nil
}

// Reassemble joins a complete, ordered frame sequence.
func Reassemble(frames []Frame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, &ProtocolError{Op: "reassemble", Reason: "no frames"}
	}
	r := NewReassembler()
	for i := range frames {
		if _, err := r.Add(&frames[i]); err != nil {
			return nil, err
		}
	}
	return r.Bytes()
}
