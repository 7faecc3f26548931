package frames

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
)

func decode(t *testing.T, b []byte) http2.Frame {
	t.Helper()
	framer := http2.NewFramer(nil, bytes.NewReader(b))
	f, err := framer.ReadFrame()
	require.NoError(t, err, "broken frame")
	return f
}

func TestHeadersEncode(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	block := []byte{0x82, 0x86}
	f := decode(t, NewHeaders(5, block, false).Encode(nil))

	hf, ok := f.(*http2.HeadersFrame)
	require.True(t, ok)
	a.EqualValues(5, hf.StreamID)
	a.True(hf.HeadersEnded())
	a.False(hf.StreamEnded())
	a.Equal(block, hf.HeaderBlockFragment())

	hf = decode(t, NewTrailers(5, block).Encode(nil)).(*http2.HeadersFrame)
	a.True(hf.StreamEnded())
}

func TestDataEncode(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	payload := []byte("hello world")
	data := NewData(3, payload, true)
	a.EqualValues(len(payload), data.FlowControlPrice())

	f := decode(t, data.Encode(nil))
	df, ok := f.(*http2.DataFrame)
	require.True(t, ok)
	a.EqualValues(3, df.StreamID)
	a.True(df.StreamEnded())
	a.Equal(payload, df.Data())
}

func TestResetEncode(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	f := decode(t, NewReset(7, http2.ErrCodeFlowControl).Encode(nil))
	rf, ok := f.(*http2.RSTStreamFrame)
	require.True(t, ok)
	a.EqualValues(7, rf.StreamID)
	a.Equal(http2.ErrCodeFlowControl, rf.ErrCode)
}

func TestWindowUpdateEncode(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	f := decode(t, NewWindowUpdate(9, 4096).Encode(nil))
	wf, ok := f.(*http2.WindowUpdateFrame)
	require.True(t, ok)
	a.EqualValues(9, wf.StreamID)
	a.EqualValues(4096, wf.Increment)
}

func TestSettingsValues(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	s := NewSettings(
		http2.Setting{ID: http2.SettingInitialWindowSize, Val: 1000},
		http2.Setting{ID: http2.SettingMaxConcurrentStreams, Val: 10},
		http2.Setting{ID: http2.SettingInitialWindowSize, Val: 2000},
	)

	val, ok := s.InitialWindowSize()
	a.True(ok)
	a.EqualValues(2000, val, "the last occurrence wins")

	val, ok = s.MaxConcurrentStreams()
	a.True(ok)
	a.EqualValues(10, val)

	_, ok = NewSettings().InitialWindowSize()
	a.False(ok)

	f := decode(t, s.Encode(nil))
	sf, ok := f.(*http2.SettingsFrame)
	require.True(t, ok)
	a.Equal(3, sf.NumSettings())
}
