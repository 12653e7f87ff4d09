// Package wallet adapts an EIP-1193 style wallet provider reachable over
// JSON-RPC (websocket, http or ipc) for the session layer.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"walletd/internal/helper"
)

const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// ErrMalformedAccount is returned when the provider answers with something
// that is not a hex address.
var ErrMalformedAccount = errors.New("malformed account")

// Provider is the injected wallet provider surface the session layer needs.
type Provider interface {
	// Call performs a single request, like EIP-1193 request({method, params}).
	Call(ctx context.Context, result any, method string, args ...any) error
	// On registers fn for a provider event. The returned func removes it and
	// is safe to call more than once. Providers without push support return
	// an error.
	On(event string, fn func(json.RawMessage)) (remove func(), err error)
	Close()
}

// Accounts asks the provider for the currently authorized accounts
// (eth_accounts) and returns them checksummed.
func Accounts(ctx context.Context, p Provider) ([]string, error) {
	var raw []string
	if err := p.Call(ctx, &raw, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return NormalizeAccounts(raw)
}

// RequestAccounts asks the wallet to authorize this client (eth_requestAccounts).
func RequestAccounts(ctx context.Context, p Provider) ([]string, error) {
	var raw []string
	if err := p.Call(ctx, &raw, "eth_requestAccounts"); err != nil {
		return nil, fmt.Errorf("eth_requestAccounts: %w", err)
	}
	return NormalizeAccounts(raw)
}

// OnAccountsChanged decodes accountsChanged payloads. A payload that cannot
// be decoded is reported as an empty account list.
func OnAccountsChanged(p Provider, fn func(accounts []string)) (func(), error) {
	return p.On(EventAccountsChanged, func(msg json.RawMessage) {
		var raw []string
		if err := json.Unmarshal(msg, &raw); err != nil {
			fn(nil)
			return
		}
		accounts, err := NormalizeAccounts(raw)
		if err != nil {
			fn(nil)
			return
		}
		fn(accounts)
	})
}

// NormalizeAccounts validates and checksums every account.
func NormalizeAccounts(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		addr, ok := helper.NormalizeAddress(a)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformedAccount, a)
		}
		out = append(out, addr)
	}
	return out, nil
}

// RPCProvider is a Provider backed by a go-ethereum rpc client.
type RPCProvider struct {
	client *rpc.Client
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Dial connects to a provider endpoint. The scheme picks the transport
// (ws/wss, http/https, or an ipc path); only ws and ipc support events.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet provider: %w", err)
	}
	return NewRPCProvider(client, logger), nil
}

func NewRPCProvider(client *rpc.Client, logger *zap.Logger) *RPCProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCProvider{client: client, logger: logger}
}

func (p *RPCProvider) Call(ctx context.Context, result any, method string, args ...any) error {
	return p.client.CallContext(ctx, result, method, args...)
}

func (p *RPCProvider) On(event string, fn func(json.RawMessage)) (func(), error) {
	ch := make(chan json.RawMessage, 16)
	sub, err := p.client.Subscribe(context.Background(), "eth", ch, event)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", event, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg := <-ch:
				fn(msg)
			case err, ok := <-sub.Err():
				if ok && err != nil {
					p.logger.Warn("wallet subscription ended",
						zap.String("event", event),
						zap.Error(err))
				}
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			sub.Unsubscribe()
		})
	}, nil
}

func (p *RPCProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.client.Close()
}
