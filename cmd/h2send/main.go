package main

import (
	"context"

	"github.com/alecthomas/kong"
	mangokong "github.com/alecthomas/mango-kong"
	"go.uber.org/zap"
)

var CLI struct {
	Get   GetCommand        `cmd:"" help:"Send GET requests over one HTTP/2 connection."`
	Man   mangokong.ManFlag `help:"Write man page." hidden:""`
	Debug bool              `help:"Enable debug logging."`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kongCtx := kong.Parse(
		&CLI,
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.ConfigureHelp(kong.HelpOptions{
			Tree:    true,
			Compact: true,
		}),
		kong.Description(`send-side HTTP/2 stream and flow-control demo client

Opens streams through the h2send core against a prior-knowledge (h2c)
server and reports how the peer's windows and settings shaped the send.
		`),
	)

	logConf := zap.NewProductionConfig()
	if CLI.Debug {
		logConf.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := logConf.Build()
	kongCtx.FatalIfErrorf(err)
	defer log.Sync() //nolint:errcheck

	kongCtx.Bind(log)
	err = kongCtx.Run()
	kongCtx.FatalIfErrorf(err)
}
