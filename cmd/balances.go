package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/coinpurse/internal/app"
	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/setup"
)

type addCmd struct{}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add an amount to a symbol balance" }
func (*addCmd) Usage() string {
	return `coinpurse add <SYMBOL> <AMOUNT>

  Adds a positive amount to the balance of SYMBOL, e.g. coinpurse add BTC 0.5
`
}
func (*addCmd) SetFlags(*flag.FlagSet) {}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, amount, err := parseSymbolAmount(f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	return run(ctx, func(ctx context.Context, a *app.App) error {
		if err := a.Ledger.Add(ctx, symbol, amount); err != nil {
			return err
		}
		printBalance(os.Stdout, symbol, a.Ledger.GetAmount(ctx, symbol))
		return nil
	})
}

type removeCmd struct {
	clamp bool
}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "remove an amount from a symbol balance" }
func (*removeCmd) Usage() string {
	return `coinpurse remove [-clamp] <SYMBOL> <AMOUNT>

  Removes a positive amount from the balance of SYMBOL. Removing more than is
  held is refused unless -clamp is given, the balance then drops to zero.
`
}

func (c *removeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.clamp, "clamp", false, "let the ledger clamp the balance to zero instead of refusing")
}

func (c *removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, amount, err := parseSymbolAmount(f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	return run(ctx, func(ctx context.Context, a *app.App) error {
		if err := removeBalance(ctx, a, symbol, amount, c.clamp); err != nil {
			return err
		}
		printBalance(os.Stdout, symbol, a.Ledger.GetAmount(ctx, symbol))
		return nil
	})
}

func removeBalance(ctx context.Context, a *app.App, symbol domain.Symbol, amount decimal.Decimal, clamp bool) error {
	if !clamp {
		if err := setup.CheckRemoval(a.Ledger.GetAmount(ctx, symbol), amount); err != nil {
			return errors.Wrapf(err, "%s (use -clamp to empty the balance)", symbol)
		}
	}
	return a.Ledger.Remove(ctx, symbol, amount)
}

type clearCmd struct {
	yes bool
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "remove every balance" }
func (*clearCmd) Usage() string {
	return `coinpurse clear [-yes]

  Deletes all stored balances. Asks for confirmation unless -yes is given.
`
}

func (c *clearCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "do not ask for confirmation")
}

func (c *clearCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		confirm := false
		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title("Remove every balance?").Value(&confirm),
		)).RunWithContext(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		if !confirm {
			return subcommands.ExitSuccess
		}
	}

	return run(ctx, func(ctx context.Context, a *app.App) error {
		if err := a.Ledger.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "All balances removed")
		return nil
	})
}

func parseSymbolAmount(args []string) (domain.Symbol, decimal.Decimal, error) {
	if len(args) != 2 {
		return "", decimal.Zero, errors.New("expected <SYMBOL> <AMOUNT>")
	}
	symbol, err := domain.ParseSymbol(args[0])
	if err != nil {
		return "", decimal.Zero, err
	}
	amount, err := domain.ParseAmount(args[1])
	if err != nil {
		return "", decimal.Zero, err
	}
	return symbol, amount, nil
}

func printBalance(w io.Writer, symbol domain.Symbol, amount decimal.Decimal) {
	fmt.Fprintf(w, "%s: %s\n", symbol, amount)
}

type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list recent balance changes" }
func (*historyCmd) Usage() string {
	return `coinpurse history [-n 20]

  Prints the latest balance changes. Requires storage.journal: true.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of changes to show")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app.App) error {
		if a.Journal == nil {
			return errors.New("balance journal is disabled, set storage.journal: true")
		}
		records, err := a.Journal.Last(c.limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stdout, "No changes recorded")
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(os.Stdout, "%6d  %s  %-5s %s -> %s\n",
				r.Index, r.Change.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Change.Symbol, r.Change.Previous, r.Change.Amount)
		}
		return nil
	})
}
