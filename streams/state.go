package streams

import (
	"errors"

	"golang.org/x/net/http2"
)

// User errors: returned to the immediate caller for misuse, never sent to
// the peer and never fatal to the connection.
var (
	// ErrRejected means the concurrent stream budget is exhausted.
	ErrRejected = errors.New("stream would exceed the concurrent stream limit")

	// ErrUnexpectedFrameType means the frame is illegal for the current
	// role or stream state.
	ErrUnexpectedFrameType = errors.New("frame type not allowed in the current stream state")
)

// StateKind enumerates the send half of the stream lifecycle.
type StateKind uint8

const (
	StateIdle StateKind = iota
	StateOpen
	StateHalfClosedLocal
	StateClosed
	StateReset
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateHalfClosedLocal:
		return "half-closed-local"
	case StateClosed:
		return "closed"
	case StateReset:
		return "reset"
	}
	return "unknown"
}

// State is the send half of a stream's state machine. It decides which
// frame kinds may still be emitted; the receive half lives elsewhere.
type State struct {
	kind  StateKind
	reset http2.ErrCode
}

func (s *State) Kind() StateKind { return s.kind }

// SendOpen transitions an idle stream on its first HEADERS frame. With
// endStream set the send half closes immediately.
func (s *State) SendOpen(endStream bool) error {
	if s.kind != StateIdle {
		return ErrUnexpectedFrameType
	}
	if endStream {
		s.kind = StateHalfClosedLocal
	} else {
		s.kind = StateOpen
	}
	return nil
}

// SendClose closes the send half after the final DATA or trailers frame.
func (s *State) SendClose() {
	s.kind = StateClosed
}

// SetReset abruptly terminates the stream with the given reason.
func (s *State) SetReset(code http2.ErrCode) {
	s.kind = StateReset
	s.reset = code
}

// ResetReason returns the code the stream was reset with.
func (s *State) ResetReason() (http2.ErrCode, bool) {
	return s.reset, s.kind == StateReset
}

func (s *State) IsIdle() bool  { return s.kind == StateIdle }
func (s *State) IsReset() bool { return s.kind == StateReset }

// IsClosed reports whether the send half is done: either closed outright
// or half-closed by an END_STREAM flag.
func (s *State) IsClosed() bool {
	return s.kind == StateClosed || s.kind == StateHalfClosedLocal
}

// IsSendStreaming reports whether more DATA or trailer frames may follow.
func (s *State) IsSendStreaming() bool { return s.kind == StateOpen }
