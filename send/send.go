// Package send manages state transitions related to outbound frames: it
// allocates locally initiated stream ids, drives the send half of each
// stream's lifecycle and applies the peer's flow-control decisions before
// handing frames to the write scheduler.
package send

import (
	"io"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ozontech/h2send/consts"
	"github.com/ozontech/h2send/frames"
	"github.com/ozontech/h2send/prioritize"
	"github.com/ozontech/h2send/streams"
)

// Config carries the construction-time knobs of the send side.
type Config struct {
	// Server selects the even stream id space. Ordinary servers never
	// open streams through this path; they reserve via push promises.
	Server bool

	// InitialWindowSize is the peer's initial per-stream window until a
	// SETTINGS frame renegotiates it.
	InitialWindowSize uint32
}

func DefaultConfig() Config {
	return Config{InitialWindowSize: consts.DefaultInitialWindowSize}
}

// Send owns the per-connection send state: the next stream id, the
// negotiated initial window size and the write scheduler. One instance
// lives exactly as long as its connection, driven by a single goroutine.
type Send struct {
	log *zap.Logger

	server         bool
	nextStreamID   uint32
	initWindowSize uint32

	prioritize *prioritize.Prioritizer
}

func New(conf Config, log *zap.Logger) *Send {
	log = log.Named("send")

	nextStreamID := uint32(1)
	if conf.Server {
		nextStreamID = 2
	}
	return &Send{
		log:            log,
		server:         conf.Server,
		nextStreamID:   nextStreamID,
		initWindowSize: conf.InitialWindowSize,
		prioritize:     prioritize.New(log),
	}
}

// InitWindowSize is the window size newly opened streams start with.
func (s *Send) InitWindowSize() uint32 { return s.initWindowSize }

// Open reserves the next locally initiated stream id and a slot in the
// concurrent-stream budget. No frame is emitted; the first HEADERS frame
// does that. A failed open leaves the id counter untouched.
func (s *Send) Open(counts *streams.Counts) (uint32, error) {
	if err := s.ensureCanOpen(); err != nil {
		return 0, err
	}
	if !counts.CanIncNumSendStreams() {
		return 0, streams.ErrRejected
	}
	if s.nextStreamID > consts.MaxStreamID {
		// id space exhausted, the connection must be replaced
		return 0, streams.ErrRejected
	}

	id := s.nextStreamID
	s.nextStreamID += consts.StreamIDStep
	counts.IncNumSendStreams()

	s.log.Debug("stream opened", zap.Uint32("stream-id", id))
	return id, nil
}

func (s *Send) ensureCanOpen() error {
	if s.server {
		// servers reserve streams via push promises instead
		return streams.ErrUnexpectedFrameType
	}
	return nil
}

// SendHeaders emits the stream's first HEADERS frame, opening its send
// half. With END_STREAM set the send half closes at once.
func (s *Send) SendHeaders(f *frames.Headers, stream *streams.Stream) error {
	s.log.Debug("send headers",
		zap.Uint32("stream-id", stream.ID()),
		zap.Bool("end-stream", f.IsEndStream()),
		zap.Uint32("init-window", s.initWindowSize))

	if err := stream.State.SendOpen(f.IsEndStream()); err != nil {
		return err
	}
	s.prioritize.QueueFrame(f, stream)
	return nil
}

// SendData hands a DATA frame to the write scheduler, which owns the
// byte-budget bookkeeping.
func (s *Send) SendData(f *frames.Data, stream *streams.Stream) error {
	return s.prioritize.SendData(f, stream)
}

// SendTrailers closes the stream's send half with a trailing HEADERS
// frame and releases any reserved capacity, since no DATA can follow.
func (s *Send) SendTrailers(f *frames.Headers, stream *streams.Stream) error {
	if !stream.State.IsSendStreaming() {
		return streams.ErrUnexpectedFrameType
	}

	stream.State.SendClose()

	s.log.Debug("send trailers", zap.Uint32("stream-id", stream.ID()))
	s.prioritize.QueueFrame(f, stream)
	s.prioritize.ReserveCapacity(0, stream)
	return nil
}

// SendReset abruptly terminates the stream's send half. Repeated resets
// and resets of a stream that is closed with a flushed queue are no-ops.
// Queued frames are dropped, the stream's remaining capacity returns to
// the connection pool, and a RST_STREAM frame is queued before the
// reclaimed capacity is offered to other streams so the reset itself is
// never starved.
func (s *Send) SendReset(reason http2.ErrCode, stream *streams.Stream, store *streams.Store) {
	if stream.State.IsReset() {
		// don't double reset
		return
	}
	if stream.State.IsClosed() && stream.PendingSendEmpty() {
		// nothing in flight, nothing to reset
		return
	}

	stream.State.SetReset(reason)

	s.prioritize.ClearQueue(stream)

	var reclaimed uint32
	if available := stream.SendFlow.Available(); available > 0 {
		reclaimed = uint32(available)
		stream.SendFlow.ClaimCapacity(reclaimed)
	}

	s.log.Debug("send reset",
		zap.Uint32("stream-id", stream.ID()),
		zap.Stringer("reason", reason),
		zap.Uint32("reclaimed", reclaimed))

	s.prioritize.QueueFrame(frames.NewReset(stream.ID(), reason), stream)

	if reclaimed > 0 {
		s.prioritize.AssignConnCapacity(reclaimed, store)
	}
}

// PollComplete drains writable queued frames to w; see
// prioritize.Prioritizer.PollComplete.
func (s *Send) PollComplete(
	store *streams.Store,
	counts *streams.Counts,
	w io.Writer,
) (prioritize.Status, error) {
	return s.prioritize.PollComplete(store, counts, w)
}

// ReserveCapacity requests send capacity for future DATA frames.
func (s *Send) ReserveCapacity(capacity uint32, stream *streams.Stream) {
	s.prioritize.ReserveCapacity(capacity, stream)
}

// PollCapacity is a single-shot check for newly granted capacity.
// StatusDone means no capacity will ever be granted again; StatusNotReady
// means nothing new arrived since the last observation. Several grants
// between polls collapse into one StatusReady observation.
func (s *Send) PollCapacity(stream *streams.Stream) (uint32, prioritize.Status) {
	if !stream.State.IsSendStreaming() {
		return 0, prioritize.StatusDone
	}
	if !stream.SendCapacityInc {
		return 0, prioritize.StatusNotReady
	}
	stream.SendCapacityInc = false
	return s.Capacity(stream), prioritize.StatusReady
}

// Capacity is the stream's usable send capacity: assigned window minus
// bytes already buffered, floored at zero even when the window itself
// went negative.
func (s *Send) Capacity(stream *streams.Stream) uint32 {
	available := stream.SendFlow.Available()
	buffered := int64(stream.BufferedSendData)

	if int64(available) <= buffered {
		return 0
	}
	return uint32(int64(available) - buffered)
}

// RecvConnectionWindowUpdate applies a WINDOW_UPDATE addressed to the
// connection. Overflow is a connection-level error for the driver.
func (s *Send) RecvConnectionWindowUpdate(f *frames.WindowUpdate, store *streams.Store) error {
	return s.prioritize.RecvConnectionWindowUpdate(f.SizeIncrement(), store)
}

// RecvStreamWindowUpdate applies a WINDOW_UPDATE addressed to one stream.
// On a flow-control violation the offending stream is reset with
// FLOW_CONTROL_ERROR before the error propagates; the caller never needs
// a separate reset.
func (s *Send) RecvStreamWindowUpdate(
	inc uint32,
	stream *streams.Stream,
	store *streams.Store,
) error {
	if err := s.prioritize.RecvStreamWindowUpdate(inc, stream); err != nil {
		s.log.Debug("stream window update failed",
			zap.Uint32("stream-id", stream.ID()),
			zap.Error(err))
		s.SendReset(http2.ErrCodeFlowControl, stream, store)
		return err
	}
	return nil
}

// ApplyRemoteSettings applies the peer's SETTINGS values consumed by the
// send side.
//
// Per RFC 7540 §6.9.2 a SETTINGS_INITIAL_WINDOW_SIZE change adjusts every
// active stream's window by the difference between the new and old
// values, and the window may become negative; the sender must then hold
// new flow-controlled frames until WINDOW_UPDATE credit makes it positive
// again. The sweep is fail-fast: streams visited before a failing one
// keep their updated windows.
func (s *Send) ApplyRemoteSettings(
	settings *frames.Settings,
	store *streams.Store,
	counts *streams.Counts,
) error {
	if limit, ok := settings.MaxConcurrentStreams(); ok {
		counts.SetMaxSendStreams(limit)
	}

	val, ok := settings.InitialWindowSize()
	if !ok {
		return nil
	}

	old := s.initWindowSize
	s.initWindowSize = val

	switch {
	case val < old:
		dec := old - val
		s.log.Debug("decrementing all windows", zap.Uint32("dec", dec))

		return store.ForEach(func(stream *streams.Stream) error {
			stream.SendFlow.DecWindow(dec)
			// Capacity already assigned against the shrunk credit is not
			// reclaimed into the connection pool and producers blocked on
			// PollCapacity are not notified of the shrink. Known
			// limitation: the windows are correct, redistribution is not.
			return nil
		})
	case val > old:
		inc := val - old
		s.log.Debug("incrementing all windows", zap.Uint32("inc", inc))

		return store.ForEach(func(stream *streams.Stream) error {
			if err := s.RecvStreamWindowUpdate(inc, stream, store); err != nil {
				return http2.ConnectionError(http2.ErrCodeFlowControl)
			}
			return nil
		})
	}
	return nil
}

// EnsureNotIdle verifies the peer referenced a stream id this side has
// actually issued. Naming a still-idle stream in PRIORITY, WINDOW_UPDATE
// or RST_STREAM is a protocol error.
func (s *Send) EnsureNotIdle(id uint32) error {
	if id >= s.nextStreamID {
		return http2.ConnectionError(http2.ErrCodeProtocol)
	}
	return nil
}
