package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"walletd/internal/network"
)

type Config struct {
	Port    string `env:"PORT" envDefault:"2121"`
	BaseURL string `env:"BASEURL" envDefault:"http://localhost:2121"`

	ProjectID       string        `env:"WALLETCONNECT_PROJECT_ID"`
	Network         string        `env:"WALLET_NETWORK" envDefault:"bsc"`
	ProviderURL     string        `env:"WALLET_PROVIDER_URL"`
	Headless        bool          `env:"WALLET_HEADLESS"`
	PollInterval    time.Duration `env:"WALLET_POLL_INTERVAL" envDefault:"2s"`
	ProviderTimeout time.Duration `env:"WALLET_PROVIDER_TIMEOUT" envDefault:"5s"`

	ThemeMode string `env:"WALLET_THEME_MODE" envDefault:"dark"`
	Accent    string `env:"WALLET_ACCENT" envDefault:"#5800C3"`
	Analytics bool   `env:"WALLET_ANALYTICS" envDefault:"true"`

	AllowOrigins     []string `env:"CORS_ALLOW_ORIGINS" envSeparator:","`
	RateLimit        int      `env:"RATE_LIMIT_PER_SECOND" envDefault:"10"`
	RateBurst        int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
	RateWindowMinute int      `env:"RATE_LIMIT_WINDOW_MINUTES" envDefault:"3"`

	EnableWebhook bool   `env:"WALLET_ENABLE_WEBHOOK"`
	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads the optional .env files (missing files are fine, e.g. in
// production) and then parses the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := network.Lookup(c.Network); err != nil {
		return fmt.Errorf("WALLET_NETWORK: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("WALLET_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("WALLET_PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	if c.EnableWebhook && c.WebhookURL == "" {
		return errors.New("WALLET_ENABLE_WEBHOOK is set but WEBHOOK_URL is empty")
	}
	for i, o := range c.AllowOrigins {
		c.AllowOrigins[i] = strings.TrimSpace(o)
	}
	return nil
}

// SelectedNetwork is the chain the wallet is switched to on connect.
// Validate guarantees the lookup succeeds.
func (c *Config) SelectedNetwork() network.Network {
	n, _ := network.Lookup(c.Network)
	return n
}

// NewLogger builds the process logger. LOG_FORMAT=json gives production
// encoding, anything else a console encoder.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	var zc zap.Config
	if strings.EqualFold(c.LogFormat, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
