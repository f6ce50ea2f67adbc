package setup

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/render"
)

const (
	actionShow    = "show"
	actionAdd     = "add"
	actionRemove  = "remove"
	actionRefresh = "refresh"
	actionClear   = "clear"
	actionQuit    = "quit"
)

// Balances is the ledger surface used by the prompt.
type Balances interface {
	Add(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal) error
	Remove(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal) error
	GetAmount(ctx context.Context, symbol domain.Symbol) decimal.Decimal
	Clear(ctx context.Context) error
}

// Valuations is the pricing surface used by the prompt.
type Valuations interface {
	GetHoldings(ctx context.Context) (domain.Holdings, error)
	Allocation(ctx context.Context) ([]domain.Share, error)
	Refresh(ctx context.Context) error
	RateStatus() domain.RateStatus
}

// Prompt is an interactive loop over the ledger, the terminal counterpart of the popup view.
type Prompt struct {
	balances   Balances
	valuations Valuations
	out        io.Writer
	// clamp lets removals larger than the balance through to the ledger.
	clamp bool
}

func NewPrompt(balances Balances, valuations Valuations, out io.Writer, clamp bool) *Prompt {
	return &Prompt{balances: balances, valuations: valuations, out: out, clamp: clamp}
}

// Run shows the holdings and asks for actions until the user quits or ctx is done.
func (p *Prompt) Run(ctx context.Context) error {
	if err := p.show(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var action string
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("What next?").
					Options(
						huh.NewOption("Show holdings", actionShow),
						huh.NewOption("Add", actionAdd),
						huh.NewOption("Remove", actionRemove),
						huh.NewOption("Refresh rates", actionRefresh),
						huh.NewOption("Clear all balances", actionClear),
						huh.NewOption("Quit", actionQuit),
					).
					Value(&action),
			),
		).RunWithContext(ctx)
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return err
		}

		if action == actionQuit {
			return nil
		}
		if err := p.handle(ctx, action); err != nil {
			// mutation errors are shown and the loop goes on
			fmt.Fprintln(p.out, errorStyle.Render("✗ "+err.Error()))
		}
	}
}

func (p *Prompt) handle(ctx context.Context, action string) error {
	switch action {
	case actionShow:
		return p.show(ctx)
	case actionAdd, actionRemove:
		symbol, amount, err := p.askMutation(ctx, action)
		if err != nil {
			return err
		}
		if action == actionAdd {
			err = p.balances.Add(ctx, symbol, amount)
		} else {
			err = p.remove(ctx, symbol, amount)
		}
		if err != nil {
			return err
		}
		return p.show(ctx)
	case actionRefresh:
		if err := p.valuations.Refresh(ctx); err != nil {
			return err
		}
		return p.show(ctx)
	case actionClear:
		var confirm bool
		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title("Remove every balance?").Value(&confirm),
		)).RunWithContext(ctx)
		if err != nil || !confirm {
			return err
		}
		if err := p.balances.Clear(ctx); err != nil {
			return err
		}
		return p.show(ctx)
	default:
		return errors.Errorf("unknown action %q", action)
	}
}

func (p *Prompt) askMutation(ctx context.Context, action string) (domain.Symbol, decimal.Decimal, error) {
	var (
		symbol    domain.Symbol
		amountStr string
	)

	options := make([]huh.Option[domain.Symbol], 0, len(domain.Symbols()))
	for _, s := range domain.Symbols() {
		label := s.String()
		if held := p.balances.GetAmount(ctx, s); held.IsPositive() {
			label = fmt.Sprintf("%s (%s)", s, held)
		}
		options = append(options, huh.NewOption(label, s))
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[domain.Symbol]().
				Title("Symbol").
				Options(options...).
				Value(&symbol),
			huh.NewInput().
				Title(fmt.Sprintf("Amount to %s", action)).
				Value(&amountStr).
				Validate(func(s string) error {
					_, err := domain.ParseAmount(s)
					return err
				}),
		),
	).RunWithContext(ctx)
	if err != nil {
		return "", decimal.Zero, err
	}

	amount, err := domain.ParseAmount(amountStr)
	if err != nil {
		return "", decimal.Zero, err
	}
	return symbol, amount, nil
}

func (p *Prompt) remove(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal) error {
	if !p.clamp {
		if err := CheckRemoval(p.balances.GetAmount(ctx, symbol), amount); err != nil {
			return errors.Wrapf(err, "%s", symbol)
		}
	}
	return p.balances.Remove(ctx, symbol, amount)
}

func (p *Prompt) show(ctx context.Context) error {
	holdings, err := p.valuations.GetHoldings(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(p.out, render.Holdings(holdings, p.valuations.RateStatus()))

	if len(holdings) > 0 {
		shares, err := p.valuations.Allocation(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(p.out, render.Allocation(shares))
	}
	return nil
}

// CheckRemoval rejects removing more than held, within the comparison tolerance.
func CheckRemoval(held, amount decimal.Decimal) error {
	if amount.Sub(held).GreaterThan(domain.Tolerance) {
		return errors.Wrapf(domain.ErrInsufficientBalance, "cannot remove %s, only %s held", amount, held)
	}
	return nil
}
