// Package wallettest runs an in-process EIP-1193 wallet over go-ethereum's
// rpc server so session, appkit and signer code can be exercised without a
// browser extension.
package wallettest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"walletd/internal/wallet"
)

// userRejected mirrors the EIP-1193 4001 error.
type userRejected struct{}

func (userRejected) Error() string  { return "user rejected the request" }
func (userRejected) ErrorCode() int { return 4001 }

// ErrUserRejected can be passed to RejectRequests.
var ErrUserRejected error = userRejected{}

// Wallet is a scriptable fake wallet. The zero value is not usable; call New.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	server  *rpc.Server

	mu            sync.Mutex
	accounts      []string
	chainID       *big.Int
	balance       *big.Int
	nonce         uint64
	failAccounts  error
	rejectRequest error
	accountsCalls int
	requestCalls  int
	switchCalls   []string
	sent          []*types.Transaction
	watchers      map[chan any]string
}

// New starts a wallet on chain 56 holding one freshly generated key.
// The key is not authorized until RequestAccounts or SetAccounts runs.
func New() *Wallet {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	w := &Wallet{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(56),
		balance:  big.NewInt(1_000_000_000_000_000_000),
		watchers: make(map[chan any]string),
	}
	w.server = rpc.NewServer()
	if err := w.server.RegisterName("eth", &ethService{w: w}); err != nil {
		panic(err)
	}
	if err := w.server.RegisterName("personal", &personalService{w: w}); err != nil {
		panic(err)
	}
	if err := w.server.RegisterName("wallet", &walletService{w: w}); err != nil {
		panic(err)
	}
	return w
}

// Provider dials the wallet in-process.
func (w *Wallet) Provider() *wallet.RPCProvider {
	return wallet.NewRPCProvider(rpc.DialInProc(w.server), nil)
}

// Close stops the rpc server and drops every subscription.
func (w *Wallet) Close() { w.server.Stop() }

// Address is the account the wallet signs with.
func (w *Wallet) Address() common.Address { return w.address }

// Key exposes the signing key for signature assertions.
func (w *Wallet) Key() *ecdsa.PrivateKey { return w.key }

// SetAccounts replaces the authorized accounts and emits accountsChanged.
func (w *Wallet) SetAccounts(accs ...string) {
	w.mu.Lock()
	w.accounts = append([]string(nil), accs...)
	w.mu.Unlock()
	w.emit(wallet.EventAccountsChanged, accs)
}

// SetAccountsSilently replaces the authorized accounts without any event,
// leaving only polling to notice.
func (w *Wallet) SetAccountsSilently(accs ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accounts = append([]string(nil), accs...)
}

// EmitRaw pushes an arbitrary payload for event.
func (w *Wallet) EmitRaw(event string, payload any) { w.emit(event, payload) }

// FailAccounts makes eth_accounts return err until called with nil.
func (w *Wallet) FailAccounts(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failAccounts = err
}

// RejectRequests makes eth_requestAccounts fail with err until called with nil.
func (w *Wallet) RejectRequests(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rejectRequest = err
}

func (w *Wallet) SetChainID(id int64) {
	w.mu.Lock()
	w.chainID = big.NewInt(id)
	w.mu.Unlock()
	w.emit(wallet.EventChainChanged, hexutil.EncodeBig(big.NewInt(id)))
}

func (w *Wallet) AccountsCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accountsCalls
}

func (w *Wallet) RequestCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.requestCalls
}

func (w *Wallet) SwitchCalls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.switchCalls...)
}

func (w *Wallet) Sent() []*types.Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*types.Transaction(nil), w.sent...)
}

func (w *Wallet) watch(event string) chan any {
	ch := make(chan any, 16)
	w.mu.Lock()
	w.watchers[ch] = event
	w.mu.Unlock()
	return ch
}

func (w *Wallet) unwatch(ch chan any) {
	w.mu.Lock()
	delete(w.watchers, ch)
	w.mu.Unlock()
}

func (w *Wallet) emit(event string, payload any) {
	w.mu.Lock()
	var targets []chan any
	for ch, ev := range w.watchers {
		if ev == event {
			targets = append(targets, ch)
		}
	}
	w.mu.Unlock()
	for _, ch := range targets {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (w *Wallet) subscribe(ctx context.Context, event string) (*rpc.Subscription, error) {
	notifier, ok := rpc.NotifierFromContext(ctx)
	if !ok {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	sub := notifier.CreateSubscription()
	ch := w.watch(event)
	go func() {
		defer w.unwatch(ch)
		for {
			select {
			case v := <-ch:
				_ = notifier.Notify(sub.ID, v)
			case <-sub.Err():
				return
			}
		}
	}()
	return sub, nil
}

func (w *Wallet) signTx(args txArgs) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if args.From != w.address {
		return nil, errors.New("unknown account")
	}
	nonce := w.nonce
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	}
	w.nonce = nonce + 1

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       args.To,
		Value:    args.Value.ToInt(),
		Gas:      uint64(args.Gas),
		GasPrice: args.GasPrice.ToInt(),
		Data:     args.Data,
	})
	return types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
}

type txArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Gas      hexutil.Uint64  `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Data     hexutil.Bytes   `json:"data"`
	Nonce    *hexutil.Uint64 `json:"nonce"`
}

type ethService struct{ w *Wallet }

func (s *ethService) Accounts() ([]string, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.accountsCalls++
	if s.w.failAccounts != nil {
		return nil, s.w.failAccounts
	}
	return append([]string{}, s.w.accounts...), nil
}

func (s *ethService) RequestAccounts() ([]string, error) {
	s.w.mu.Lock()
	s.w.requestCalls++
	if s.w.rejectRequest != nil {
		err := s.w.rejectRequest
		s.w.mu.Unlock()
		return nil, err
	}
	s.w.accounts = []string{s.w.address.Hex()}
	accs := append([]string{}, s.w.accounts...)
	s.w.mu.Unlock()

	s.w.emit(wallet.EventAccountsChanged, accs)
	return accs, nil
}

func (s *ethService) ChainId() *hexutil.Big {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return (*hexutil.Big)(new(big.Int).Set(s.w.chainID))
}

func (s *ethService) GetBalance(addr common.Address, block string) (*hexutil.Big, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if addr != s.w.address {
		return (*hexutil.Big)(new(big.Int)), nil
	}
	return (*hexutil.Big)(new(big.Int).Set(s.w.balance)), nil
}

func (s *ethService) SignTransaction(args txArgs) (hexutil.Bytes, error) {
	tx, err := s.w.signTx(args)
	if err != nil {
		return nil, err
	}
	return tx.MarshalBinary()
}

func (s *ethService) SendTransaction(args txArgs) (common.Hash, error) {
	tx, err := s.w.signTx(args)
	if err != nil {
		return common.Hash{}, err
	}
	s.w.mu.Lock()
	s.w.sent = append(s.w.sent, tx)
	s.w.mu.Unlock()
	return tx.Hash(), nil
}

func (s *ethService) AccountsChanged(ctx context.Context) (*rpc.Subscription, error) {
	return s.w.subscribe(ctx, wallet.EventAccountsChanged)
}

func (s *ethService) ChainChanged(ctx context.Context) (*rpc.Subscription, error) {
	return s.w.subscribe(ctx, wallet.EventChainChanged)
}

type personalService struct{ w *Wallet }

// Sign implements personal_sign(data, address).
func (s *personalService) Sign(data hexutil.Bytes, addr common.Address) (hexutil.Bytes, error) {
	if addr != s.w.address {
		return nil, errors.New("unknown account")
	}
	sig, err := crypto.Sign(accounts.TextHash(data), s.w.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

type walletService struct{ w *Wallet }

type chainParams struct {
	ChainID hexutil.Big `json:"chainId"`
}

func (s *walletService) SwitchEthereumChain(p chainParams) error {
	s.w.mu.Lock()
	s.w.switchCalls = append(s.w.switchCalls, hexutil.EncodeBig(p.ChainID.ToInt()))
	s.w.mu.Unlock()
	s.w.SetChainID(p.ChainID.ToInt().Int64())
	return nil
}

func (s *walletService) AddEthereumChain(p chainParams) error {
	return s.SwitchEthereumChain(p)
}
