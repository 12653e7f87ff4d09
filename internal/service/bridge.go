package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"walletd/internal/appkit"
	"walletd/internal/model"
	"walletd/internal/wallet"
)

// update is one observation of the wallet from any detection path.
type update struct {
	address    string
	source     model.Source
	observedAt time.Time
}

// startBridge wires the three detection paths into apply: SDK notifications,
// the injected provider's accountsChanged event, and the eth_accounts poll.
func (m *SessionManager) startBridge(sdk appkit.SDK) {
	stops := []func(){
		sdk.SubscribeState(func(s appkit.State) {
			addr := ""
			if s.Connected {
				addr = s.Address
			}
			m.apply(update{address: addr, source: model.SourceSDK, observedAt: m.now()})
		}),
	}

	if m.injected != nil {
		remove, err := wallet.OnAccountsChanged(m.injected, func(accounts []string) {
			m.apply(update{address: firstAccount(accounts), source: model.SourceNative, observedAt: m.now()})
		})
		if err != nil {
			m.logger.Info("injected provider has no accountsChanged event, relying on polling", zap.Error(err))
		} else {
			stops = append(stops, remove)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go m.pollLoop(ctx, done)
		stops = append(stops, func() {
			cancel()
			<-done
		})
	}

	m.mu.Lock()
	m.stops = append(m.stops, stops...)
	m.mu.Unlock()
}

// apply merges an observation into the canonical state. The most recent
// observation wins: anything observed before the current state was written
// is stale and dropped. Every accepted observation is broadcast, including
// ones identical to the current state.
func (m *SessionManager) apply(u update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.IsReady {
		return
	}
	if u.observedAt.Before(m.state.UpdatedAt) {
		m.logger.Debug("dropping stale session observation",
			zap.String("source", string(u.source)),
			zap.Time("observed_at", u.observedAt),
			zap.Time("current_at", m.state.UpdatedAt))
		return
	}

	prev := m.state
	m.state = model.NewSessionState(true, u.address, u.source, u.observedAt)
	if prev.Address != m.state.Address {
		m.logger.Info("wallet session changed",
			zap.String("source", string(u.source)),
			zap.String("address", m.state.Address),
			zap.Bool("connected", m.state.IsConnected))
	}
	m.hub.Publish(m.state)
}

func (m *SessionManager) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

// pollOnce stamps the observation with the time the request was issued, so
// an event that lands while the request is in flight takes precedence over
// the answer.
func (m *SessionManager) pollOnce(ctx context.Context) {
	observedAt := m.now()

	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.ProviderTimeout)
	defer cancel()

	accounts, err := wallet.Accounts(reqCtx, m.injected)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Debug("eth_accounts poll failed, treating as disconnected", zap.Error(err))
		accounts = nil
	}
	m.apply(update{address: firstAccount(accounts), source: model.SourcePoll, observedAt: observedAt})
}

func firstAccount(accounts []string) string {
	if len(accounts) == 0 {
		return ""
	}
	return accounts[0]
}
