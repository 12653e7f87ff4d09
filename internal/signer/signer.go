// Package signer turns an authorized wallet provider into a transaction and
// message signing capability.
package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"walletd/internal/wallet"
)

var ErrNoAccount = errors.New("provider has no authorized account")

// TxRequest is a transaction the wallet is asked to fill in and sign.
type TxRequest struct {
	To       *common.Address
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
	Data     []byte
	Nonce    *uint64
}

type txArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
}

func (r TxRequest) args(from common.Address) txArgs {
	a := txArgs{From: from, To: r.To, Data: r.Data}
	if r.Gas != 0 {
		gas := hexutil.Uint64(r.Gas)
		a.Gas = &gas
	}
	if r.GasPrice != nil {
		a.GasPrice = (*hexutil.Big)(r.GasPrice)
	}
	if r.Value != nil {
		a.Value = (*hexutil.Big)(r.Value)
	}
	if r.Nonce != nil {
		nonce := hexutil.Uint64(*r.Nonce)
		a.Nonce = &nonce
	}
	return a
}

// Handle signs through the wallet. It is bound to the account and chain the
// provider reported when it was created.
type Handle struct {
	provider wallet.Provider
	address  common.Address
	chainID  *big.Int
}

// New resolves the provider's active account and chain.
func New(ctx context.Context, p wallet.Provider) (*Handle, error) {
	if p == nil {
		return nil, errors.New("signer: nil provider")
	}
	accs, err := wallet.Accounts(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(accs) == 0 {
		return nil, ErrNoAccount
	}

	var id hexutil.Big
	if err := p.Call(ctx, &id, "eth_chainId"); err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}

	return &Handle{
		provider: p,
		address:  common.HexToAddress(accs[0]),
		chainID:  new(big.Int).Set(id.ToInt()),
	}, nil
}

func (h *Handle) Address() common.Address { return h.address }

func (h *Handle) ChainID() *big.Int { return new(big.Int).Set(h.chainID) }

func (h *Handle) Balance(ctx context.Context) (*big.Int, error) {
	var bal hexutil.Big
	if err := h.provider.Call(ctx, &bal, "eth_getBalance", h.address, "latest"); err != nil {
		return nil, fmt.Errorf("eth_getBalance: %w", err)
	}
	return bal.ToInt(), nil
}

// SignMessage asks for an EIP-191 personal_sign signature.
func (h *Handle) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := h.provider.Call(ctx, &sig, "personal_sign", hexutil.Bytes(msg), h.address); err != nil {
		return nil, fmt.Errorf("personal_sign: %w", err)
	}
	return sig, nil
}

// SignTransaction returns the wallet-signed transaction without broadcasting it.
func (h *Handle) SignTransaction(ctx context.Context, req TxRequest) (*types.Transaction, error) {
	var raw json.RawMessage
	if err := h.provider.Call(ctx, &raw, "eth_signTransaction", req.args(h.address)); err != nil {
		return nil, fmt.Errorf("eth_signTransaction: %w", err)
	}

	enc, err := decodeSignedTx(raw)
	if err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(enc); err != nil {
		return nil, fmt.Errorf("decode signed transaction: %w", err)
	}
	return tx, nil
}

// SendTransaction lets the wallet sign and broadcast.
func (h *Handle) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	var hash common.Hash
	if err := h.provider.Call(ctx, &hash, "eth_sendTransaction", req.args(h.address)); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return hash, nil
}

// Wallets answer eth_signTransaction either with the raw hex or with geth's
// {raw, tx} object.
func decodeSignedTx(raw json.RawMessage) ([]byte, error) {
	var enc hexutil.Bytes
	if err := json.Unmarshal(raw, &enc); err == nil {
		return enc, nil
	}
	var obj struct {
		Raw hexutil.Bytes `json:"raw"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj.Raw) == 0 {
		return nil, fmt.Errorf("unexpected eth_signTransaction result %s", string(raw))
	}
	return obj.Raw, nil
}

// RecoverMessageSigner returns the address that produced a personal_sign signature.
func RecoverMessageSigner(msg, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	s := make([]byte, len(sig))
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), s)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
