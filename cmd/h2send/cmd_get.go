package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
	"golang.org/x/sync/errgroup"

	"github.com/ozontech/h2send/frames"
	"github.com/ozontech/h2send/prioritize"
	"github.com/ozontech/h2send/send"
	"github.com/ozontech/h2send/streams"
)

var clientPreface = []byte(http2.ClientPreface)

type GetCommand struct {
	Addr    string        `arg:"" required:"" help:"Server address (host:port), prior-knowledge HTTP/2."`
	Path    string        `default:"/" help:"Request path."`
	Count   int           `short:"n" default:"1" help:"Number of streams to open."`
	Body    string        `help:"Optional request body sent as DATA."`
	Timeout time.Duration `default:"11s" help:"Overall request timeout."`
}

func (c GetCommand) Run(ctx context.Context, log *zap.Logger) (err error) {
	conn, err := net.Dial("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.Addr, err)
	}
	defer func() { err = multierr.Append(err, conn.Close()) }()

	err = conn.SetDeadline(time.Now().Add(c.Timeout))
	if err != nil {
		return fmt.Errorf("set conn deadline: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return conn.SetDeadline(time.Now())
	})
	g.Go(func() error {
		defer cancel()
		return c.run(conn, log)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (c GetCommand) run(conn net.Conn, log *zap.Logger) error {
	framer, serverSettings, err := setupHTTP2(conn, log)
	if err != nil {
		return err
	}

	sendCore := send.New(send.DefaultConfig(), log)
	store := streams.NewStore()
	counts := streams.NewCounts(0)

	err = sendCore.ApplyRemoteSettings(serverSettings, store, counts)
	if err != nil {
		return fmt.Errorf("apply server settings: %w", err)
	}

	pending := make(map[uint32]struct{}, c.Count)
	headerBuf := bytes.NewBuffer(nil)
	enc := hpack.NewEncoder(headerBuf)

	for i := 0; i < c.Count; i++ {
		id, err := sendCore.Open(counts)
		if err != nil {
			return fmt.Errorf("open stream: %w", err)
		}
		stream := streams.New(id, sendCore.InitWindowSize())
		store.Insert(stream)
		pending[id] = struct{}{}

		headerBuf.Reset()
		method := "GET"
		if c.Body != "" {
			method = "POST"
		}
		for _, f := range []hpack.HeaderField{
			{Name: ":method", Value: method},
			{Name: ":scheme", Value: "http"},
			{Name: ":authority", Value: c.Addr},
			{Name: ":path", Value: c.Path},
		} {
			if err := enc.WriteField(f); err != nil {
				return fmt.Errorf("encode header field: %w", err)
			}
		}

		headers := frames.NewHeaders(id, bytes.Clone(headerBuf.Bytes()), c.Body == "")
		if err := sendCore.SendHeaders(headers, stream); err != nil {
			return fmt.Errorf("send headers: %w", err)
		}
		if c.Body != "" {
			data := frames.NewData(id, []byte(c.Body), true)
			if err := sendCore.SendData(data, stream); err != nil {
				return fmt.Errorf("send data: %w", err)
			}
		}
	}

	var received uint64
	start := time.Now()

	// Single goroutine drives the whole exchange: flush what the windows
	// allow, then block on the next inbound frame and feed it back into
	// the send core until every response finished.
	for len(pending) > 0 {
		status, err := sendCore.PollComplete(store, counts, conn)
		if err != nil {
			return fmt.Errorf("flush frames: %w", err)
		}
		if status == prioritize.StatusNotReady {
			log.Debug("sends blocked on flow control")
		}

		frame, err := framer.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		switch f := frame.(type) {
		case *http2.WindowUpdateFrame:
			if f.StreamID == 0 {
				err = sendCore.RecvConnectionWindowUpdate(
					frames.NewWindowUpdate(0, f.Increment), store)
			} else if stream := store.Get(f.StreamID); stream != nil {
				err = sendCore.RecvStreamWindowUpdate(f.Increment, stream, store)
			}
			if err != nil {
				return fmt.Errorf("window update: %w", err)
			}
		case *http2.SettingsFrame:
			if f.IsAck() {
				continue
			}
			err = sendCore.ApplyRemoteSettings(settingsFromFrame(f), store, counts)
			if err != nil {
				return fmt.Errorf("apply settings: %w", err)
			}
			if err = framer.WriteSettingsAck(); err != nil {
				return fmt.Errorf("write settings ack: %w", err)
			}
		case *http2.MetaHeadersFrame:
			if f.StreamEnded() {
				delete(pending, f.StreamID)
			}
		case *http2.DataFrame:
			received += uint64(len(f.Data()))
			if f.StreamEnded() {
				delete(pending, f.StreamID)
			}
		case *http2.RSTStreamFrame:
			log.Warn("stream reset by peer",
				zap.Uint32("stream-id", f.StreamID),
				zap.Stringer("code", f.ErrCode))
			if stream := store.Get(f.StreamID); stream != nil {
				sendCore.SendReset(http2.ErrCodeCancel, stream, store)
			}
			delete(pending, f.StreamID)
		case *http2.GoAwayFrame:
			return fmt.Errorf("server sent goaway: %s", f.ErrCode)
		}
	}

	fmt.Printf("%d streams done in %s, received %s\n",
		c.Count,
		time.Since(start).Round(time.Millisecond),
		humanize.IBytes(received))
	return nil
}

func setupHTTP2(conn net.Conn, log *zap.Logger) (*http2.Framer, *frames.Settings, error) {
	// Write must error out when n < len(clientPreface), no need to check n.
	_, err := conn.Write(clientPreface)
	if err != nil {
		return nil, nil, fmt.Errorf("write http2 preface: %w", err)
	}

	framer := http2.NewFramer(conn, conn)
	framer.ReadMetaHeaders = hpack.NewDecoder(4096, func(hpack.HeaderField) {})

	frame, err := framer.ReadFrame()
	if err != nil {
		return nil, nil, fmt.Errorf("read settings frame: %w", err)
	}
	sf, ok := frame.(*http2.SettingsFrame)
	if !ok {
		return nil, nil, errors.New("protocol error: first frame from server is not settings")
	}

	var logFields []zap.Field
	for i := 0; i < sf.NumSettings(); i++ {
		s := sf.Setting(i)
		logFields = append(logFields, zap.Uint32("setting_"+s.ID.String(), s.Val))
	}
	log.Info("got settings", logFields...)

	if err := framer.WriteSettings(); err != nil {
		return nil, nil, fmt.Errorf("write settings frame: %w", err)
	}
	if err := framer.WriteSettingsAck(); err != nil {
		return nil, nil, fmt.Errorf("write settings ack: %w", err)
	}

	return framer, settingsFromFrame(sf), nil
}

func settingsFromFrame(sf *http2.SettingsFrame) *frames.Settings {
	settings := make([]http2.Setting, 0, sf.NumSettings())
	for i := 0; i < sf.NumSettings(); i++ {
		settings = append(settings, sf.Setting(i))
	}
	return frames.NewSettings(settings...)
}
