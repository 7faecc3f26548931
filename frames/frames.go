// Package frames holds the in-process frame objects the send side queues
// for transmission, plus just enough wire encoding to hand real bytes to
// an io.Writer. Header block fragments and DATA payloads stay opaque;
// HPACK is the caller's business.
package frames

import (
	"encoding/binary"

	"golang.org/x/net/http2"
)

// Frame is an outbound frame queued for transmission.
type Frame interface {
	StreamID() uint32
	Kind() http2.FrameType
	// Encode appends the frame's wire image, header included, to dst.
	Encode(dst []byte) []byte
}

// Headers carries a HEADERS frame (initial headers or trailers). The
// block fragment must already fit the peer's max frame size: a single
// frame is emitted, never a CONTINUATION sequence.
type Headers struct {
	streamID      uint32
	blockFragment []byte
	endStream     bool
}

func NewHeaders(streamID uint32, blockFragment []byte, endStream bool) *Headers {
	return &Headers{streamID, blockFragment, endStream}
}

// NewTrailers is a HEADERS frame that also ends the stream.
func NewTrailers(streamID uint32, blockFragment []byte) *Headers {
	return NewHeaders(streamID, blockFragment, true)
}

func (h *Headers) StreamID() uint32      { return h.streamID }
func (h *Headers) Kind() http2.FrameType { return http2.FrameHeaders }
func (h *Headers) IsEndStream() bool     { return h.endStream }

func (h *Headers) Encode(dst []byte) []byte {
	flags := http2.FlagHeadersEndHeaders
	if h.endStream {
		flags |= http2.FlagHeadersEndStream
	}
	header := NewFrameHeader()
	header.Fill(len(h.blockFragment), http2.FrameHeaders, flags, h.streamID)
	dst = append(dst, header...)
	return append(dst, h.blockFragment...)
}

// Data carries a DATA frame with an opaque payload.
type Data struct {
	streamID  uint32
	payload   []byte
	endStream bool
}

func NewData(streamID uint32, payload []byte, endStream bool) *Data {
	return &Data{streamID, payload, endStream}
}

func (d *Data) StreamID() uint32      { return d.streamID }
func (d *Data) Kind() http2.FrameType { return http2.FrameData }
func (d *Data) IsEndStream() bool     { return d.endStream }
func (d *Data) Payload() []byte       { return d.payload }

// FlowControlPrice is the number of flow-control bytes the frame costs.
func (d *Data) FlowControlPrice() uint32 { return uint32(len(d.payload)) }

func (d *Data) Encode(dst []byte) []byte {
	var flags http2.Flags
	if d.endStream {
		flags |= http2.FlagDataEndStream
	}
	header := NewFrameHeader()
	header.Fill(len(d.payload), http2.FrameData, flags, d.streamID)
	dst = append(dst, header...)
	return append(dst, d.payload...)
}

// Reset carries a RST_STREAM frame.
type Reset struct {
	streamID uint32
	code     http2.ErrCode
}

func NewReset(streamID uint32, code http2.ErrCode) *Reset {
	return &Reset{streamID, code}
}

func (r *Reset) StreamID() uint32      { return r.streamID }
func (r *Reset) Kind() http2.FrameType { return http2.FrameRSTStream }
func (r *Reset) Code() http2.ErrCode   { return r.code }

func (r *Reset) Encode(dst []byte) []byte {
	header := NewFrameHeader()
	header.Fill(4, http2.FrameRSTStream, 0, r.streamID)
	dst = append(dst, header...)
	return binary.BigEndian.AppendUint32(dst, uint32(r.code))
}

// WindowUpdate is a WINDOW_UPDATE frame received from the peer. Stream id
// zero addresses the connection window.
type WindowUpdate struct {
	streamID      uint32
	sizeIncrement uint32
}

func NewWindowUpdate(streamID, sizeIncrement uint32) *WindowUpdate {
	return &WindowUpdate{streamID, sizeIncrement}
}

func (w *WindowUpdate) StreamID() uint32      { return w.streamID }
func (w *WindowUpdate) Kind() http2.FrameType { return http2.FrameWindowUpdate }
func (w *WindowUpdate) SizeIncrement() uint32 { return w.sizeIncrement }

func (w *WindowUpdate) Encode(dst []byte) []byte {
	header := NewFrameHeader()
	header.Fill(4, http2.FrameWindowUpdate, 0, w.streamID)
	dst = append(dst, header...)
	return binary.BigEndian.AppendUint32(dst, w.sizeIncrement&(1<<31-1))
}

// Settings is a SETTINGS frame received from the peer. Only the values
// are consumed here; parsing belongs to the codec.
type Settings struct {
	settings []http2.Setting
}

func NewSettings(settings ...http2.Setting) *Settings {
	return &Settings{settings}
}

func (s *Settings) StreamID() uint32      { return 0 }
func (s *Settings) Kind() http2.FrameType { return http2.FrameSettings }

// Value returns the last occurrence of the given parameter, if present.
func (s *Settings) Value(id http2.SettingID) (val uint32, ok bool) {
	for _, setting := range s.settings {
		if setting.ID == id {
			val, ok = setting.Val, true
		}
	}
	return val, ok
}

func (s *Settings) InitialWindowSize() (uint32, bool) {
	return s.Value(http2.SettingInitialWindowSize)
}

func (s *Settings) MaxConcurrentStreams() (uint32, bool) {
	return s.Value(http2.SettingMaxConcurrentStreams)
}

func (s *Settings) Encode(dst []byte) []byte {
	header := NewFrameHeader()
	header.Fill(len(s.settings)*6, http2.FrameSettings, 0, 0)
	dst = append(dst, header...)
	for _, setting := range s.settings {
		dst = binary.BigEndian.AppendUint16(dst, uint16(setting.ID))
		dst = binary.BigEndian.AppendUint32(dst, setting.Val)
	}
	return dst
}
