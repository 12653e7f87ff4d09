// Command watch prints wallet session changes of a running walletd.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"walletd/config"
	"walletd/internal/apiclient"
)

type watchConfig struct {
	Port     string        `env:"PORT" envDefault:"2121"`
	Server   string        `env:"WATCH_SERVER"`
	Interval time.Duration `env:"WATCH_POLL_INTERVAL" envDefault:"2s"`
}

func main() {
	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../../.env")
	}

	var cfg watchConfig
	if err := config.ParseEnv(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Server == "" {
		cfg.Server = "http://localhost:" + cfg.Port
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 2. Wait for termination signal while watching
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching wallet session", zap.String("server", cfg.Server))
	w := NewWatcher(apiclient.New(cfg.Server), cfg.Interval, logger, func(s apiclient.Session) {
		logger.Info("session changed",
			zap.Bool("ready", s.IsReady),
			zap.Bool("connected", s.IsConnected),
			zap.String("address", s.ShortAddress),
			zap.String("source", string(s.Source)),
		)
	})
	w.Run(ctx)

	logger.Info("watch stopped")
}
