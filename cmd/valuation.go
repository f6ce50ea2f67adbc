package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/vadiminshakov/coinpurse/internal/app"
	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/render"
)

type showCmd struct {
	refresh bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display holdings with their USD value" }
func (*showCmd) Usage() string {
	return `coinpurse show [-refresh]

  Prints every held symbol with its amount and USD value, the total and the
  allocation. Values are n/a for symbols without a known rate.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.refresh, "refresh", false, "fetch rates before rendering")
}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app.App) error {
		if c.refresh {
			if err := a.Portfolio.Refresh(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: refresh failed: %v\n", err)
			}
		}

		holdings, err := a.Portfolio.GetHoldings(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, render.Holdings(holdings, a.Portfolio.RateStatus()))
		if len(holdings) == 0 {
			return nil
		}

		shares, err := a.Portfolio.Allocation(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, render.Allocation(shares))
		return nil
	})
}

type totalCmd struct {
	currency string
}

func (*totalCmd) Name() string     { return "total" }
func (*totalCmd) Synopsis() string { return "print the total value of all holdings" }
func (*totalCmd) Usage() string {
	return `coinpurse total [-c USD]
`
}

func (c *totalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", domain.QuoteCurrency, "quote currency, only USD is supported")
}

func (c *totalCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app.App) error {
		total, err := a.Portfolio.Total(ctx, c.currency)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, render.Total(total, c.currency))
		return nil
	})
}

type rateCmd struct {
	currency string
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "fetch the current rate of a symbol" }
func (*rateCmd) Usage() string {
	return `coinpurse rate [-c USD] <SYMBOL>

  Fetches the rate directly from the price source, bypassing the cache.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", domain.QuoteCurrency, "quote currency, only USD is supported")
}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "expected <SYMBOL>")
		return subcommands.ExitUsageError
	}
	symbol, err := domain.ParseSymbol(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	return run(ctx, func(ctx context.Context, a *app.App) error {
		rate, err := a.Portfolio.GetRate(ctx, symbol, c.currency)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "1 %s = %s\n", symbol, render.Money(rate))
		return nil
	})
}
