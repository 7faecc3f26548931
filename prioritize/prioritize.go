// Package prioritize is the write-scheduling side of the send path. It
// owns the connection-level send window, the per-stream frame queues and
// the mechanics of assigning connection capacity to streams; the stream
// manager owns state transitions and decides what is legal to queue.
package prioritize

import (
	"errors"
	"io"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ozontech/h2send/consts"
	"github.com/ozontech/h2send/flowcontrol"
	"github.com/ozontech/h2send/frames"
	"github.com/ozontech/h2send/streams"
)

// Status is the outcome of a non-blocking poll.
type Status uint8

const (
	// StatusNotReady means no progress is possible until the peer grants
	// more credit; the caller re-polls when new frames arrive.
	StatusNotReady Status = iota
	// StatusReady means the poll produced a value or drained everything.
	StatusReady
	// StatusDone means nothing will ever be produced again.
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusNotReady:
		return "not-ready"
	case StatusReady:
		return "ready"
	case StatusDone:
		return "done"
	}
	return "unknown"
}

// Prioritizer queues outbound frames and drains them to a writer as
// flow-control credit allows. Frames of one stream keep their queueing
// order; streams are served first-come first-served.
type Prioritizer struct {
	log *zap.Logger

	// connFlow's window is the connection credit still spendable on the
	// wire; its available balance is the unassigned remainder.
	connFlow flowcontrol.Window

	// pendingStreams holds ids of streams with queued frames, in the
	// order they first queued something.
	pendingStreams []uint32

	encodeBuf []byte
}

func New(log *zap.Logger) *Prioritizer {
	return &Prioritizer{
		log:      log.Named("prioritize"),
		connFlow: flowcontrol.NewConn(consts.DefaultInitialWindowSize),
	}
}

// ConnWindowAvailable is the unassigned connection capacity.
func (p *Prioritizer) ConnWindowAvailable() int32 { return p.connFlow.Available() }

// QueueFrame appends a frame to the stream's outbound queue.
func (p *Prioritizer) QueueFrame(f frames.Frame, stream *streams.Stream) {
	stream.PendingSend = append(stream.PendingSend, f)
	p.schedule(stream)
	p.log.Debug("frame queued",
		zap.Uint32("stream-id", stream.ID()),
		zap.Stringer("type", f.Kind()))
}

func (p *Prioritizer) schedule(stream *streams.Stream) {
	if stream.Queued {
		return
	}
	stream.Queued = true
	p.pendingStreams = append(p.pendingStreams, stream.ID())
}

// ClearQueue drops every frame still queued for the stream and releases
// the buffered-byte accounting of dropped DATA.
func (p *Prioritizer) ClearQueue(stream *streams.Stream) {
	for _, f := range stream.PendingSend {
		if data, ok := f.(*frames.Data); ok {
			stream.BufferedSendData -= data.FlowControlPrice()
		}
	}
	stream.PendingSend = stream.PendingSend[:0]
}

// SendData buffers a DATA frame for the stream and queues it. The bytes
// are charged against the stream's buffered count immediately; the
// windows are charged when the frame is actually written.
func (p *Prioritizer) SendData(f *frames.Data, stream *streams.Stream) error {
	if !stream.State.IsSendStreaming() {
		return streams.ErrUnexpectedFrameType
	}

	stream.BufferedSendData += f.FlowControlPrice()
	p.QueueFrame(f, stream)

	if f.IsEndStream() {
		stream.State.SendClose()
		// nothing can follow, release any reserved surplus
		p.ReserveCapacity(0, stream)
	} else {
		p.tryAssignCapacity(stream)
	}
	return nil
}

// ReserveCapacity records the stream's desired send capacity for future
// DATA frames. The target is absolute: reserving less than is currently
// assigned returns the surplus to the connection pool, reserving more
// pulls from it as credit allows.
func (p *Prioritizer) ReserveCapacity(capacity uint32, stream *streams.Stream) {
	stream.RequestedSendCapacity = capacity

	want := capacity
	if stream.BufferedSendData > want {
		want = stream.BufferedSendData
	}

	available := stream.SendFlow.Available()
	if available > int32(want) {
		surplus := uint32(available) - want
		stream.SendFlow.ClaimCapacity(surplus)
		p.connFlow.AssignCapacity(surplus)
		p.log.Debug("capacity released",
			zap.Uint32("stream-id", stream.ID()),
			zap.Uint32("surplus", surplus))
		return
	}

	p.tryAssignCapacity(stream)
}

// tryAssignCapacity moves connection capacity to the stream, bounded by
// what the stream asked for, what its own window allows and what the
// connection pool still holds.
func (p *Prioritizer) tryAssignCapacity(stream *streams.Stream) {
	if stream.State.IsReset() {
		return
	}

	want := int64(stream.RequestedSendCapacity)
	if buffered := int64(stream.BufferedSendData); buffered > want {
		want = buffered
	}

	available := int64(stream.SendFlow.Available())
	need := want - available
	if need <= 0 {
		return
	}

	// never assign past the peer's per-stream credit
	if room := int64(stream.SendFlow.WindowSize()) - available; room < need {
		need = room
	}
	if pool := int64(p.connFlow.Available()); pool < need {
		need = pool
	}
	if need <= 0 {
		return
	}

	p.connFlow.ClaimCapacity(uint32(need))
	stream.SendFlow.AssignCapacity(uint32(need))
	stream.SendCapacityInc = true

	p.log.Debug("capacity assigned",
		zap.Uint32("stream-id", stream.ID()),
		zap.Int64("assigned", need),
		zap.Int32("stream-available", stream.SendFlow.Available()),
		zap.Int32("conn-available", p.connFlow.Available()))
}

// AssignConnCapacity returns reclaimed capacity to the connection pool
// and immediately offers it to streams still waiting for credit.
func (p *Prioritizer) AssignConnCapacity(capacity uint32, store *streams.Store) {
	p.connFlow.AssignCapacity(capacity)

	_ = store.ForEach(func(stream *streams.Stream) error {
		if p.connFlow.Available() <= 0 {
			return errPoolDrained
		}
		p.tryAssignCapacity(stream)
		return nil
	})
}

var errPoolDrained = errors.New("connection capacity pool drained")

// RecvConnectionWindowUpdate grows the connection window and distributes
// the fresh credit.
func (p *Prioritizer) RecvConnectionWindowUpdate(inc uint32, store *streams.Store) error {
	if err := p.connFlow.IncWindow(inc); err != nil {
		return http2.ConnectionError(http2.ErrCodeFlowControl)
	}
	p.AssignConnCapacity(inc, store)
	return nil
}

// RecvStreamWindowUpdate grows one stream's window. A window overflow is
// reported as a stream-scoped FLOW_CONTROL_ERROR; remediation is the
// caller's call.
func (p *Prioritizer) RecvStreamWindowUpdate(inc uint32, stream *streams.Stream) error {
	if err := stream.SendFlow.IncWindow(inc); err != nil {
		return http2.StreamError{
			StreamID: stream.ID(),
			Code:     http2.ErrCodeFlowControl,
		}
	}
	p.tryAssignCapacity(stream)
	return nil
}

// PollComplete writes every currently writable queued frame to w. DATA
// frames are gated by the stream's assigned capacity and the connection
// window; other frame kinds always pass. It returns StatusReady when all
// queues drained and StatusNotReady when some stream is still blocked on
// flow control. Write errors abort the poll.
func (p *Prioritizer) PollComplete(
	store *streams.Store,
	counts *streams.Counts,
	w io.Writer,
) (Status, error) {
	blocked := false

	pending := p.pendingStreams
	p.pendingStreams = p.pendingStreams[len(p.pendingStreams):]

	for i, id := range pending {
		stream := store.Get(id)
		if stream == nil {
			continue
		}

		if err := p.drainStream(stream, w); err != nil {
			p.pendingStreams = append(p.pendingStreams, pending[i:]...)
			return StatusNotReady, err
		}

		if !stream.PendingSendEmpty() {
			blocked = true
			p.pendingStreams = append(p.pendingStreams, id)
			continue
		}

		stream.Queued = false
		if stream.State.IsClosed() || stream.State.IsReset() {
			store.Delete(id)
			counts.DecNumSendStreams()
			p.log.Debug("stream retired",
				zap.Uint32("stream-id", id),
				zap.Stringer("state", stream.State.Kind()))
		}
	}

	if blocked {
		return StatusNotReady, nil
	}
	return StatusReady, nil
}

func (p *Prioritizer) drainStream(stream *streams.Stream, w io.Writer) error {
	for !stream.PendingSendEmpty() {
		f := stream.PendingSend[0]

		var price uint32
		if data, ok := f.(*frames.Data); ok {
			price = data.FlowControlPrice()
			if price > 0 &&
				(stream.SendFlow.Available() < int32(price) ||
					p.connFlow.WindowSize() < int32(price)) {
				return nil // starved, keep the frame queued
			}
		}

		p.encodeBuf = f.Encode(p.encodeBuf[:0])
		if _, err := w.Write(p.encodeBuf); err != nil {
			return err
		}

		stream.PendingSend[0] = nil
		stream.PendingSend = stream.PendingSend[1:]

		if price > 0 {
			stream.SendFlow.DecWindow(price)
			p.connFlow.SpendWindow(price)
			stream.BufferedSendData -= price
		}
	}
	return nil
}
