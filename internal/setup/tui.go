package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/coinpurse/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D7263D")).Bold(true)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collected by the config wizard.
type Answers struct {
	Source        string
	Backend       string
	RedisAddress  string
	RateTTL       string
	StrictRemoval bool
}

// RunWizard asks for the main settings and writes a config file to path.
func RunWizard(path string) error {
	answers := Answers{
		Source:       "coingecko",
		Backend:      "file",
		RedisAddress: "localhost:6379",
		RateTTL:      "1m",
	}
	var confirm bool

	screen := func(step string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("COINPURSE SETUP"))
		fmt.Println(stepStyle.Render(step))
	}

	screen("STEP 1: PRICES")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Where should USD rates come from?\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Price source").
				Options(
					huh.NewOption("CoinGecko", "coingecko"),
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
				).
				Value(&answers.Source),
			huh.NewInput().
				Title("Rate cache lifetime").
				Description("Go duration, e.g. 1m or 30s").
				Value(&answers.RateTTL).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: STORAGE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should balances be kept?").
				Options(
					huh.NewOption("JSON file", "file"),
					huh.NewOption("Write-ahead log", "wal"),
					huh.NewOption("Redis", "redis"),
					huh.NewOption("Memory (lost on exit)", "memory"),
				).
				Value(&answers.Backend),
		),
	).Run()
	if err != nil {
		return err
	}

	if answers.Backend == "redis" {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Redis address").
					Value(&answers.RedisAddress).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("address cannot be empty")
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	screen("STEP 3: REMOVALS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Reject removing more than you hold?").
				Description("When off, the balance is clamped to zero.").
				Value(&answers.StrictRemoval),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg, err := answers.Config()
	if err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Source: %s\nRate TTL: %s\nStorage: %s\nStrict removal: %t\n",
		cfg.Pricing.Source, cfg.Pricing.RateTTL, cfg.Storage.Backend, cfg.Ledger.StrictRemoval,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	if err := WriteConfig(path, cfg); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

// Config turns the answers into a validated configuration on top of the defaults.
func (a Answers) Config() (config.Config, error) {
	cfg := config.Default()
	cfg.Pricing.Source = a.Source
	cfg.Storage.Backend = a.Backend
	cfg.Ledger.StrictRemoval = a.StrictRemoval
	if a.Backend == "redis" {
		cfg.Storage.Redis.Address = a.RedisAddress
	}
	if a.RateTTL != "" {
		ttl, err := time.ParseDuration(a.RateTTL)
		if err != nil {
			return config.Config{}, errors.Wrap(err, "rate ttl")
		}
		cfg.Pricing.RateTTL = ttl
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// WriteConfig marshals cfg to yaml at path, creating the parent directory.
func WriteConfig(path string, cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a duration like 1m")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
