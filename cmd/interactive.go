package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/vadiminshakov/coinpurse/internal/app"
	"github.com/vadiminshakov/coinpurse/internal/setup"
	"github.com/vadiminshakov/coinpurse/internal/web"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the JSON API, a web view and the balance stream" }
func (*serveCmd) Usage() string {
	return `coinpurse serve [-addr :8080]

  Runs the HTTP server until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address, defaults to http.address from the config")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app.App) error {
		addr := c.addr
		if addr == "" {
			addr = a.Config.HTTP.Address
		}
		srv := web.NewServer(addr, a.Ledger, a.Portfolio, a.Events, a.Logger)
		if a.Journal != nil {
			srv.WithHistory(a.Journal)
		}
		return srv.Start(ctx)
	})
}

type promptCmd struct {
	clamp bool
}

func (*promptCmd) Name() string     { return "prompt" }
func (*promptCmd) Synopsis() string { return "manage holdings interactively" }
func (*promptCmd) Usage() string {
	return `coinpurse prompt [-clamp]
`
}

func (c *promptCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.clamp, "clamp", false, "let removals larger than the balance empty it")
}

func (c *promptCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app.App) error {
		return setup.NewPrompt(a.Ledger, a.Portfolio, os.Stdout, c.clamp).Run(ctx)
	})
}
