package frames

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"golang.org/x/net/http2"
)

// FrameHeader is the 9-byte header every HTTP/2 frame starts with.
type FrameHeader []byte

func NewFrameHeader() FrameHeader { return make([]byte, 9) }

func (f FrameHeader) Fill(
	length int,
	t http2.FrameType,
	flags http2.Flags,
	streamID uint32,
) {
	_ = f[8]
	f[0] = byte(length >> 16)
	f[1] = byte(length >> 8)
	f[2] = byte(length)
	f[3] = byte(t)
	f[4] = byte(flags)
	f[5] = byte(streamID >> 24)
	f[6] = byte(streamID >> 16)
	f[7] = byte(streamID >> 8)
	f[8] = byte(streamID)
}

func (f FrameHeader) Length() int {
	_ = f[2]
	return (int(f[0])<<16 | int(f[1])<<8 | int(f[2]))
}

func (f FrameHeader) Type() http2.FrameType { return http2.FrameType(f[3]) }
func (f FrameHeader) Flags() http2.Flags    { return http2.Flags(f[4]) }
func (f FrameHeader) StreamID() uint32      { return binary.BigEndian.Uint32(f[5:]) & (1<<31 - 1) }

func (f FrameHeader) String() string {
	return f.Type().String() +
		"/ length=" + strconv.FormatUint(uint64(f.Length()), 10) +
		"/ streamID = " + strconv.FormatUint(uint64(f.StreamID()), 10) +
		"/ flags = " + fmt.Sprintf("%o", f.Flags())
}
