// Package streams holds the per-stream send state the stream manager and
// the write scheduler share: the send-half state machine, the stream
// record with its flow-control window, the store indexing live streams
// and the concurrent-stream budget.
package streams

import (
	"github.com/ozontech/h2send/flowcontrol"
	"github.com/ozontech/h2send/frames"
)

// Stream is the send-side record of one stream. One goroutine drives the
// whole connection, so nothing here is locked.
type Stream struct {
	id uint32

	// State is the send half of the lifecycle; only the stream manager
	// transitions it.
	State State

	// SendFlow is this stream's send window. Assigned capacity is backed
	// by the connection window via the write scheduler.
	SendFlow flowcontrol.Window

	// BufferedSendData counts DATA bytes queued but not yet written, so
	// capacity is never granted twice for the same bytes.
	BufferedSendData uint32

	// SendCapacityInc is set when assigned capacity grew since the last
	// capacity poll and cleared when that poll observes it.
	SendCapacityInc bool

	// Owned by the write scheduler.
	PendingSend           []frames.Frame
	RequestedSendCapacity uint32
	Queued                bool
}

// New returns a stream record with the given id and initial send window.
func New(id uint32, initWindowSize uint32) *Stream {
	return &Stream{
		id:       id,
		SendFlow: flowcontrol.New(initWindowSize),
	}
}

func (s *Stream) ID() uint32 { return s.id }

// PendingSendEmpty reports whether every queued frame has been written.
func (s *Stream) PendingSendEmpty() bool { return len(s.PendingSend) == 0 }
