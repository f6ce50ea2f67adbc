package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/coinpurse/internal/services/portfolio"
	"github.com/vadiminshakov/coinpurse/internal/services/pricer"
)

const (
	envCoinGeckoKey  = "COINGECKO_API_KEY"
	envRedisPassword = "COINPURSE_REDIS_PASSWORD"
	envHome          = "COINPURSE_HOME"
	defaultDirName   = ".coinpurse"
)

// Config of the whole application.
type Config struct {
	Storage Storage `yaml:"storage"`
	Pricing Pricing `yaml:"pricing"`
	Ledger  Ledger  `yaml:"ledger"`
	HTTP    HTTP    `yaml:"http"`
	Log     Log     `yaml:"log"`
}

type Storage struct {
	Backend  string `yaml:"backend" validate:"regexp=^(memory|file|wal|redis)$"`
	FilePath string `yaml:"file_path"`
	WALDir   string `yaml:"wal_dir"`
	Redis    Redis  `yaml:"redis"`
	// Journal keeps a WAL history of every balance change in JournalDir.
	Journal    bool   `yaml:"journal"`
	JournalDir string `yaml:"journal_dir"`
}

type Redis struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`
	Prefix   string `yaml:"prefix"`
}

type Pricing struct {
	Source       string        `yaml:"source" validate:"regexp=^(coingecko|binance|bybit|hyperliquid)$"`
	CoinGeckoURL string        `yaml:"coingecko_url"`
	APIKey       string        `yaml:"api_key"`
	RateTTL      time.Duration `yaml:"rate_ttl" validate:"min=1"`
	TotalTTL     time.Duration `yaml:"total_ttl" validate:"min=1"`
	Timeout      time.Duration `yaml:"timeout" validate:"min=1"`
	Retries      int           `yaml:"retries" validate:"min=0,max=10"`
	RetryDelay   time.Duration `yaml:"retry_delay" validate:"min=0"`
	BatchSize    int           `yaml:"batch_size" validate:"min=1,max=50"`
	BatchDelay   time.Duration `yaml:"batch_delay" validate:"min=0"`
	Workers      int           `yaml:"workers" validate:"min=0"`
}

type Ledger struct {
	// StrictRemoval rejects removing more than is held instead of clamping to zero.
	StrictRemoval bool `yaml:"strict_removal"`
}

type HTTP struct {
	Address string `yaml:"address" validate:"nonzero"`
}

type Log struct {
	Level      string `yaml:"level" validate:"regexp=^(debug|info|warn|error)$"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	policy := pricer.DefaultPolicy()
	home := dataDir()

	return Config{
		Storage: Storage{
			Backend:    "file",
			FilePath:   filepath.Join(home, "balances.json"),
			WALDir:     filepath.Join(home, "wal"),
			Redis:      Redis{Address: "localhost:6379"},
			JournalDir: filepath.Join(home, "journal"),
		},
		Pricing: Pricing{
			Source:       "coingecko",
			CoinGeckoURL: pricer.DefaultCoinGeckoURL,
			RateTTL:      portfolio.DefaultRateTTL,
			TotalTTL:     portfolio.DefaultTotalTTL,
			Timeout:      policy.Timeout,
			Retries:      policy.Retries,
			RetryDelay:   policy.RetryDelay,
			BatchSize:    policy.BatchSize,
			BatchDelay:   policy.BatchDelay,
			Workers:      4,
		},
		HTTP: HTTP{Address: ":8080"},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the yaml file at path on top of the defaults. An empty path yields the defaults.
// Secrets missing from the file are taken from the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(f, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "incorrect yaml config %s", path)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.Storage.Backend == "redis" && c.Storage.Redis.Address == "" {
		return errors.New("invalid config: storage.redis.address is required for the redis backend")
	}
	if c.Storage.Journal && c.Storage.JournalDir == "" {
		return errors.New("invalid config: storage.journal_dir is required when the journal is enabled")
	}
	if c.Storage.Backend == "file" && c.Storage.FilePath == "" {
		return errors.New("invalid config: storage.file_path is required for the file backend")
	}
	return nil
}

// PricingPolicy converts the pricing section into fetcher limits.
func (c Config) PricingPolicy() pricer.Policy {
	return pricer.Policy{
		Timeout:    c.Pricing.Timeout,
		Retries:    c.Pricing.Retries,
		RetryDelay: c.Pricing.RetryDelay,
		BatchSize:  c.Pricing.BatchSize,
		BatchDelay: c.Pricing.BatchDelay,
	}
}

func applyEnv(cfg *Config) {
	if cfg.Pricing.APIKey == "" {
		cfg.Pricing.APIKey = os.Getenv(envCoinGeckoKey)
	}
	if cfg.Storage.Redis.Password == "" {
		cfg.Storage.Redis.Password = os.Getenv(envRedisPassword)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Pricing.Source = strings.ToLower(strings.TrimSpace(cfg.Pricing.Source))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
}

func dataDir() string {
	if dir := os.Getenv(envHome); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDirName
	}
	return filepath.Join(home, defaultDirName)
}
