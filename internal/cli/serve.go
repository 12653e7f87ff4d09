package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"walletd/config"
	"walletd/internal/appkit"
	"walletd/internal/handler"
	"walletd/internal/model"
	"walletd/internal/service"
	"walletd/internal/wallet"
	"walletd/internal/ws"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session bridge and its HTTP/websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("feature flags",
		zap.String("network", cfg.Network),
		zap.Bool("headless", cfg.Headless),
		zap.Bool("webhook", cfg.EnableWebhook),
		zap.Bool("analytics", cfg.Analytics),
	)

	// A nil interface, not a nil *RPCProvider, means "no injected wallet".
	var injected wallet.Provider
	if cfg.ProviderURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
		p, err := wallet.Dial(dialCtx, cfg.ProviderURL, logger.Named("provider"))
		cancel()
		if err != nil {
			logger.Warn("wallet provider unavailable", zap.String("url", cfg.ProviderURL), zap.Error(err))
		} else {
			injected = p
			defer p.Close()
		}
	} else {
		logger.Info("WALLET_PROVIDER_URL is not set, wallet features disabled")
	}

	hub := ws.NewHub(logger.Named("hub"))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	var newSDK appkit.Constructor
	if injected != nil {
		newSDK = appkit.NewConstructor(injected, logger.Named("appkit"))
	}

	manager := service.NewSessionManager(service.SessionConfig{
		SDK:             sdkOptions(cfg),
		PollInterval:    cfg.PollInterval,
		ProviderTimeout: cfg.ProviderTimeout,
	}, service.SessionDeps{
		NewSDK: newSDK,
		Environment: service.EnvironmentFunc(func() bool {
			return injected != nil && !cfg.Headless
		}),
		Injected: injected,
		Hub:      hub,
		Logger:   logger.Named("session"),
	})
	defer manager.Close()

	if cfg.EnableWebhook {
		notifier := service.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, logger.Named("webhook"))
		defer notifier.Close()
		unsubscribe := manager.SubscribeState(func(s model.SessionState) { notifier.Notify(s) })
		defer unsubscribe()
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
	if _, err := manager.EnsureInitialized(initCtx); err != nil {
		// Not fatal: /api/session/connect retries initialization.
		logger.Warn("wallet session not initialized", zap.Error(err))
	}
	cancel()

	e := newEcho(cfg, logger)
	handler.RegisterRoutes(e, manager, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("server started", zap.String("addr", addr), zap.String("baseurl", cfg.BaseURL))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return e.Shutdown(shutdownCtx)
}

func sdkOptions(cfg *config.Config) appkit.Options {
	return appkit.Options{
		ProjectID: cfg.ProjectID,
		Network:   cfg.SelectedNetwork(),
		Metadata: appkit.Metadata{
			Name:        "DataAPI",
			Description: "The Unified Social Media Data API",
			URL:         cfg.BaseURL,
			Icons:       []string{strings.TrimRight(cfg.BaseURL, "/") + "/favicon.ico"},
		},
		ThemeMode: cfg.ThemeMode,
		ThemeVariables: map[string]string{
			"--w3m-accent":               cfg.Accent,
			"--w3m-border-radius-master": "2px",
		},
		Features: appkit.Features{Analytics: cfg.Analytics},
	}
}

func newEcho(cfg *config.Config, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	if len(cfg.AllowOrigins) == 0 {
		logger.Warn("CORS_ALLOW_ORIGINS is not set")
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
		},
		AllowCredentials: true,
	}))

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == "/ws" },
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: time.Duration(cfg.RateWindowMinute) * time.Minute,
			},
		),
	}))

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "Internal Server Error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		}
		if c.Response().Committed {
			return
		}
		_ = handler.ErrorResponse(c, code, message, strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_")), "")
	}
	return e
}
