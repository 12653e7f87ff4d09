package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "2121" || cfg.Network != "bsc" {
		t.Fatalf("unexpected defaults: port=%s network=%s", cfg.Port, cfg.Network)
	}
	if cfg.PollInterval != 2*time.Second || cfg.ProviderTimeout != 5*time.Second {
		t.Fatalf("unexpected timings: poll=%s timeout=%s", cfg.PollInterval, cfg.ProviderTimeout)
	}
	if !cfg.Analytics || cfg.ThemeMode != "dark" || cfg.Accent != "#5800C3" {
		t.Fatalf("unexpected theme defaults: %+v", cfg)
	}
	if cfg.SelectedNetwork().ChainID.Int64() != 56 {
		t.Fatalf("expected bsc mainnet, got %s", cfg.SelectedNetwork().ChainID)
	}
}

func TestLoadFromDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"WALLETCONNECT_PROJECT_ID=abc123",
		"WALLET_NETWORK=bsc-testnet",
		"WALLET_POLL_INTERVAL=500ms",
		"CORS_ALLOW_ORIGINS=http://a.test, http://b.test",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// godotenv never overrides variables that are already set, and t.Setenv
	// restores them afterwards.
	for _, k := range []string{"WALLETCONNECT_PROJECT_ID", "WALLET_NETWORK", "WALLET_POLL_INTERVAL", "CORS_ALLOW_ORIGINS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProjectID != "abc123" {
		t.Fatalf("project id not loaded: %q", cfg.ProjectID)
	}
	if cfg.SelectedNetwork().ChainID.Int64() != 97 {
		t.Fatalf("expected bsc testnet, got %s", cfg.SelectedNetwork().ChainID)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval: %s", cfg.PollInterval)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[1] != "http://b.test" {
		t.Fatalf("origins not trimmed: %q", cfg.AllowOrigins)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown network":   {"WALLET_NETWORK": "dogechain"},
		"zero poll":         {"WALLET_POLL_INTERVAL": "0s"},
		"malformed timeout": {"WALLET_PROVIDER_TIMEOUT": "soon"},
		"webhook no url":    {"WALLET_ENABLE_WEBHOOK": "true", "WEBHOOK_URL": ""},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Fatalf("expected error for %v", vars)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := &Config{LogLevel: "debug", LogFormat: format}
		logger, err := cfg.NewLogger()
		if err != nil {
			t.Fatalf("NewLogger(%s): %v", format, err)
		}
		if !logger.Core().Enabled(-1) {
			t.Fatalf("debug level not enabled for %s", format)
		}
	}

	if _, err := (&Config{LogLevel: "loud"}).NewLogger(); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
