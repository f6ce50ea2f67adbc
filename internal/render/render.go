// Package render formats holdings for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/coinpurse/internal/domain"
)

const (
	barWidth     = 20
	notAvailable = "n/a"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#D7A100", Dark: "#F2C94C"}

	headerStyle = lipgloss.NewStyle().Foreground(highlight).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	totalStyle  = lipgloss.NewStyle().Foreground(special).Bold(true).MarginTop(1)
	noticeStyle = lipgloss.NewStyle().Foreground(warning).Italic(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(subtle)
	barStyle    = lipgloss.NewStyle().Foreground(highlight)
)

// Money formats a USD value, e.g. $1,234.56.
func Money(v decimal.Decimal) string {
	cur := *money.New(0, domain.QuoteCurrency).Currency()
	minor := v.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// Holdings renders the holdings table followed by the total line.
func Holdings(h domain.Holdings, status domain.RateStatus) string {
	if len(h) == 0 {
		return mutedStyle.Render("No holdings yet")
	}

	rows := make([][]string, 0, len(h))
	for _, s := range h.Symbols() {
		holding := h[s]
		value := notAvailable
		if holding.HasValue() {
			value = Money(*holding.Value)
		}
		rows = append(rows, []string{s.String(), holding.Amount.String(), value})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		Headers("SYMBOL", "AMOUNT", "VALUE (USD)").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col > 0 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(totalStyle.Render("Total: " + Money(h.Total())))
	if notice := Status(status); notice != "" {
		b.WriteString("\n")
		b.WriteString(notice)
	}
	return b.String()
}

// Status returns a notice when rates are stale or missing, otherwise an empty string.
func Status(status domain.RateStatus) string {
	switch {
	case status.Known == 0 && status.FetchedAt.IsZero():
		return noticeStyle.Render("Rates unavailable, values are shown as n/a")
	case status.Stale:
		return noticeStyle.Render(fmt.Sprintf("Rates are stale, last updated %s", status.FetchedAt.Local().Format("2006-01-02 15:04:05")))
	default:
		return ""
	}
}

// Allocation renders one bar per share with its percentage to one decimal.
func Allocation(shares []domain.Share) string {
	if len(shares) == 0 {
		return mutedStyle.Render("No valued holdings")
	}

	lines := make([]string, 0, len(shares))
	for _, sh := range shares {
		filled := int(sh.Percent.Mul(decimal.NewFromInt(barWidth)).Div(decimal.NewFromInt(100)).Round(0).IntPart())
		filled = max(0, min(barWidth, filled))
		bar := barStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", barWidth-filled))
		lines = append(lines, fmt.Sprintf("%-5s %s %6s%%  %s", sh.Symbol, bar, sh.Percent.StringFixed(1), Money(sh.Value)))
	}
	return strings.Join(lines, "\n")
}

// Total renders a single total line.
func Total(v decimal.Decimal, currency string) string {
	return totalStyle.UnsetMarginTop().Render(fmt.Sprintf("Total (%s): %s", strings.ToUpper(currency), Money(v)))
}
