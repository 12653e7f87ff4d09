// Package appkit is the wallet-connection SDK the session layer bootstraps.
// It drives an EIP-1193 provider: authorization, chain selection and the
// account/chain change stream.
package appkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"walletd/internal/network"
	"walletd/internal/wallet"
)

var (
	ErrProjectIDMissing = errors.New("project id is required")
	ErrNotConnected     = errors.New("wallet not connected")
)

// codeUnrecognizedChain is returned by wallet_switchEthereumChain when the
// wallet has never seen the chain.
const codeUnrecognizedChain = 4902

// State is what the SDK reports to its subscribers.
type State struct {
	Address   string
	Connected bool
	ChainID   string
}

// SDK is the handle the session layer owns.
type SDK interface {
	// Open starts the connect flow (the "connect modal").
	Open(ctx context.Context) error
	// SubscribeState registers fn for every state change.
	SubscribeState(fn func(State)) (unsubscribe func())
	Address() string
	// WalletProvider returns the active provider, or ErrNotConnected.
	WalletProvider() (wallet.Provider, error)
	Close()
}

// Constructor builds the SDK. The session layer calls it at most once per
// successful initialization.
type Constructor func(ctx context.Context, opts Options) (SDK, error)

type Metadata struct {
	Name        string
	Description string
	URL         string
	Icons       []string
}

type Features struct {
	Analytics bool
}

type Options struct {
	ProjectID      string
	Network        network.Network
	Metadata       Metadata
	ThemeMode      string
	ThemeVariables map[string]string
	Features       Features
}

// Kit is the provider-backed SDK implementation.
type Kit struct {
	opts     Options
	provider wallet.Provider
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
	removers  []func()
}

// NewConstructor returns a Constructor that builds a Kit over provider.
func NewConstructor(provider wallet.Provider, logger *zap.Logger) Constructor {
	return func(ctx context.Context, opts Options) (SDK, error) {
		return New(ctx, opts, provider, logger)
	}
}

// New restores any existing authorization from the provider and starts
// listening for account and chain changes.
func New(ctx context.Context, opts Options, provider wallet.Provider, logger *zap.Logger) (*Kit, error) {
	if opts.ProjectID == "" {
		return nil, ErrProjectIDMissing
	}
	if provider == nil {
		return nil, errors.New("appkit: provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	k := &Kit{
		opts:      opts,
		provider:  provider,
		logger:    logger,
		listeners: make(map[int]func(State)),
	}

	accounts, err := wallet.Accounts(ctx, provider)
	if err != nil {
		logger.Debug("appkit: no restorable session", zap.Error(err))
	}
	k.state = stateFor(accounts)
	k.state.ChainID = k.queryChainID(ctx)

	if remove, err := wallet.OnAccountsChanged(provider, k.onAccounts); err != nil {
		logger.Info("appkit: provider has no account events", zap.Error(err))
	} else {
		k.removers = append(k.removers, remove)
	}
	if remove, err := provider.On(wallet.EventChainChanged, k.onChain); err != nil {
		logger.Info("appkit: provider has no chain events", zap.Error(err))
	} else {
		k.removers = append(k.removers, remove)
	}

	logger.Info("appkit initialized",
		zap.String("network", opts.Network.Key),
		zap.String("theme", opts.ThemeMode),
		zap.Bool("analytics", opts.Features.Analytics),
		zap.Bool("restored", k.state.Connected))
	return k, nil
}

func (k *Kit) Options() Options { return k.opts }

// Open asks the wallet for authorization and moves it to the configured network.
func (k *Kit) Open(ctx context.Context) error {
	accounts, err := wallet.RequestAccounts(ctx, k.provider)
	if err != nil {
		return err
	}
	k.set(func(s *State) {
		next := stateFor(accounts)
		s.Address, s.Connected = next.Address, next.Connected
	})

	if err := k.switchChain(ctx); err != nil {
		return fmt.Errorf("switch to %s: %w", k.opts.Network.Name, err)
	}
	return nil
}

func (k *Kit) switchChain(ctx context.Context) error {
	want := k.opts.Network.HexChainID()
	if k.State().ChainID == want {
		return nil
	}

	err := k.provider.Call(ctx, nil, "wallet_switchEthereumChain", map[string]string{"chainId": want})
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUnrecognizedChain {
		err = k.provider.Call(ctx, nil, "wallet_addEthereumChain", k.opts.Network.AddChainParams())
	}
	if err != nil {
		return err
	}
	k.set(func(s *State) { s.ChainID = want })
	return nil
}

func (k *Kit) SubscribeState(fn func(State)) func() {
	k.mu.Lock()
	id := k.nextID
	k.nextID++
	k.listeners[id] = fn
	k.mu.Unlock()

	return func() {
		k.mu.Lock()
		delete(k.listeners, id)
		k.mu.Unlock()
	}
}

func (k *Kit) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *Kit) Address() string { return k.State().Address }

func (k *Kit) WalletProvider() (wallet.Provider, error) {
	if !k.State().Connected {
		return nil, ErrNotConnected
	}
	return k.provider, nil
}

// Close drops the provider event subscriptions. The provider itself belongs
// to whoever dialed it.
func (k *Kit) Close() {
	k.mu.Lock()
	removers := k.removers
	k.removers = nil
	k.listeners = make(map[int]func(State))
	k.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
}

func (k *Kit) onAccounts(accounts []string) {
	k.set(func(s *State) {
		next := stateFor(accounts)
		s.Address, s.Connected = next.Address, next.Connected
	})
}

func (k *Kit) onChain(msg json.RawMessage) {
	var id hexutil.Big
	if err := id.UnmarshalJSON(msg); err != nil {
		k.logger.Debug("appkit: bad chainChanged payload", zap.ByteString("payload", msg))
		return
	}
	k.set(func(s *State) { s.ChainID = hexutil.EncodeBig(id.ToInt()) })
}

func (k *Kit) queryChainID(ctx context.Context) string {
	var id hexutil.Big
	if err := k.provider.Call(ctx, &id, "eth_chainId"); err != nil {
		k.logger.Debug("appkit: eth_chainId failed", zap.Error(err))
		return ""
	}
	return hexutil.EncodeBig(id.ToInt())
}

// set mutates the state and notifies listeners outside the lock.
func (k *Kit) set(mutate func(*State)) {
	k.mu.Lock()
	mutate(&k.state)
	state := k.state
	fns := make([]func(State), 0, len(k.listeners))
	for id := 0; id < k.nextID; id++ {
		if fn, ok := k.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	k.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func stateFor(accounts []string) State {
	if len(accounts) == 0 {
		return State{}
	}
	return State{Address: accounts[0], Connected: true}
}
