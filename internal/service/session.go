package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"walletd/internal/appkit"
	"walletd/internal/model"
	"walletd/internal/signer"
	"walletd/internal/wallet"
	"walletd/internal/ws"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultProviderTimeout = 5 * time.Second
)

// Environment reports whether a wallet runtime exists at all. Without one
// (headless or server-side rendering) the session never initializes.
type Environment interface {
	Available() bool
}

// EnvironmentFunc adapts a func to Environment.
type EnvironmentFunc func() bool

func (f EnvironmentFunc) Available() bool { return f() }

// SessionConfig carries what the bootstrapper hands to the SDK.
type SessionConfig struct {
	SDK             appkit.Options
	PollInterval    time.Duration
	ProviderTimeout time.Duration
}

// SessionDeps are the collaborators of a SessionManager. Injected may be nil,
// in which case only SDK notifications drive the session.
type SessionDeps struct {
	NewSDK      appkit.Constructor
	Environment Environment
	Injected    wallet.Provider
	Hub         *ws.Hub
	Logger      *zap.Logger
	Now         func() time.Time
}

// SessionManager owns the single wallet SDK instance and the canonical
// session state every consumer reads.
type SessionManager struct {
	cfg      SessionConfig
	newSDK   appkit.Constructor
	env      Environment
	injected wallet.Provider
	hub      *ws.Hub
	stopHub  context.CancelFunc
	logger   *zap.Logger
	now      func() time.Time

	mu           sync.Mutex
	sdk          appkit.SDK
	initializing bool
	initDone     chan struct{}
	initErr      error
	state        model.SessionState
	stops        []func()
}

func NewSessionManager(cfg SessionConfig, deps SessionDeps) *SessionManager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	// A hub the caller did not supply is owned, and run, by the manager.
	stopHub := func() {}
	if deps.Hub == nil {
		deps.Hub = ws.NewHub(deps.Logger)
		var ctx context.Context
		ctx, stopHub = context.WithCancel(context.Background())
		go deps.Hub.Run(ctx)
	}
	if deps.Environment == nil {
		deps.Environment = EnvironmentFunc(func() bool { return true })
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &SessionManager{
		cfg:      cfg,
		newSDK:   deps.NewSDK,
		env:      deps.Environment,
		injected: deps.Injected,
		hub:      deps.Hub,
		stopHub:  stopHub,
		logger:   deps.Logger,
		now:      deps.Now,
	}
}

// EnsureInitialized constructs the SDK on first use and returns it on every
// later call. Concurrent callers share a single construction. Configuration
// and environment problems are logged and returned, never panicked.
func (m *SessionManager) EnsureInitialized(ctx context.Context) (appkit.SDK, error) {
	m.mu.Lock()
	if m.sdk != nil {
		sdk := m.sdk
		m.mu.Unlock()
		return sdk, nil
	}

	if m.initializing {
		done := m.initDone
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.sdk != nil {
			return m.sdk, nil
		}
		return nil, m.initErr
	}

	if !m.env.Available() {
		m.mu.Unlock()
		return nil, ErrEnvironmentUnsupported
	}
	if m.cfg.SDK.ProjectID == "" {
		m.mu.Unlock()
		m.logger.Warn("wallet project id is not defined, session disabled")
		return nil, ErrConfigurationMissing
	}
	if m.newSDK == nil {
		m.mu.Unlock()
		return nil, ErrEnvironmentUnsupported
	}

	m.initializing = true
	done := make(chan struct{})
	m.initDone = done
	m.mu.Unlock()

	sdk, err := m.newSDK(ctx, m.cfg.SDK)

	m.mu.Lock()
	m.initializing = false
	if err != nil {
		m.initErr = fmt.Errorf("construct wallet sdk: %w", err)
		close(done)
		m.mu.Unlock()
		m.logger.Error("wallet sdk initialization failed", zap.Error(err))
		return nil, m.initErr
	}
	m.sdk = sdk
	m.initErr = nil
	m.state = model.NewSessionState(true, sdk.Address(), model.SourceInit, m.now())
	m.hub.Publish(m.state)
	close(done)
	m.mu.Unlock()

	m.startBridge(sdk)

	m.logger.Info("wallet session ready",
		zap.String("network", m.cfg.SDK.Network.Key),
		zap.Bool("connected", sdk.Address() != ""))
	return sdk, nil
}

// SDK returns the live handle or nil before initialization.
func (m *SessionManager) SDK() appkit.SDK {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sdk
}

// State returns the canonical snapshot.
func (m *SessionManager) State() model.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SessionManager) IsReady() bool { return m.State().IsReady }

func (m *SessionManager) Address() string { return m.State().Address }

func (m *SessionManager) IsConnected() bool { return m.State().IsConnected }

// Subscribe registers l for every broadcast. Call the returned func when the
// consumer goes away; it is idempotent and never blocks.
func (m *SessionManager) Subscribe(l model.Listener) (unsubscribe func()) {
	return m.hub.Subscribe(func(s model.SessionState) {
		l(s.Address, s.IsConnected)
	})
}

// SubscribeState is Subscribe for consumers that want the full snapshot.
func (m *SessionManager) SubscribeState(fn func(model.SessionState)) (unsubscribe func()) {
	return m.hub.Subscribe(fn)
}

// OpenConnectModal starts the wallet's connect flow. Before initialization
// it does nothing.
func (m *SessionManager) OpenConnectModal(ctx context.Context) error {
	sdk := m.SDK()
	if sdk == nil {
		return nil
	}
	if err := sdk.Open(ctx); err != nil {
		m.logger.Warn("connect modal failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrModalOpen, err)
	}
	return nil
}

// GetSigningHandle wraps the active wallet provider in a fresh signer. The
// handle is never cached because the provider behind it may change.
func (m *SessionManager) GetSigningHandle(ctx context.Context) (*signer.Handle, error) {
	sdk := m.SDK()
	if sdk == nil {
		return nil, ErrNotInitialized
	}
	if !m.IsConnected() {
		return nil, ErrNotConnected
	}

	p, err := sdk.WalletProvider()
	if err != nil {
		m.logger.Debug("no wallet provider for signing", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSigningHandle, err)
	}
	h, err := signer.New(ctx, p)
	if err != nil {
		m.logger.Warn("signing handle creation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSigningHandle, err)
	}
	return h, nil
}

// Close stops the poller and every subscription the manager holds on the SDK
// and provider, then closes the SDK. A hub the manager created itself stops
// too; an injected hub is left to its owner.
func (m *SessionManager) Close() {
	m.shutdown()
	m.stopHub()
}

func (m *SessionManager) shutdown() {
	m.mu.Lock()
	stops := m.stops
	m.stops = nil
	sdk := m.sdk
	m.mu.Unlock()

	for i := len(stops) - 1; i >= 0; i-- {
		stops[i]()
	}
	if sdk != nil {
		sdk.Close()
	}
}

// Reset closes the manager and forgets the SDK and state so a test can
// initialize again.
func (m *SessionManager) Reset() {
	m.shutdown()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sdk = nil
	m.initErr = nil
	m.state = model.SessionState{}
}
