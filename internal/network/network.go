// Package network holds the EVM networks the wallet session can target.
package network

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Network describes an EVM chain in the shape wallets expect for
// wallet_addEthereumChain.
type Network struct {
	Key            string
	ChainID        *big.Int
	Name           string
	RPCURL         string
	CurrencyName   string
	CurrencySymbol string
	Decimals       int
	ExplorerURL    string
	Testnet        bool
}

var networks = map[string]Network{
	"bsc": {
		Key:            "bsc",
		ChainID:        big.NewInt(56),
		Name:           "BNB Smart Chain",
		RPCURL:         "https://bsc-dataseed.binance.org",
		CurrencyName:   "BNB",
		CurrencySymbol: "BNB",
		Decimals:       18,
		ExplorerURL:    "https://bscscan.com",
	},
	"bsc-testnet": {
		Key:            "bsc-testnet",
		ChainID:        big.NewInt(97),
		Name:           "BNB Smart Chain Testnet",
		RPCURL:         "https://data-seed-prebsc-1-s1.binance.org:8545",
		CurrencyName:   "tBNB",
		CurrencySymbol: "tBNB",
		Decimals:       18,
		ExplorerURL:    "https://testnet.bscscan.com",
		Testnet:        true,
	},
}

// Lookup returns the network registered under key (case-insensitive).
func Lookup(key string) (Network, error) {
	n, ok := networks[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q", key)
	}
	return n, nil
}

// All returns every known network ordered by chain id.
func All() []Network {
	out := make([]Network, 0, len(networks))
	for _, n := range networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID.Cmp(out[j].ChainID) < 0 })
	return out
}

// HexChainID is the 0x-prefixed chain id used by EIP-1193 wallet methods.
func (n Network) HexChainID() string {
	return hexutil.EncodeBig(n.ChainID)
}

// AddChainParams is the single parameter object of wallet_addEthereumChain.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

func (n Network) AddChainParams() AddChainParams {
	p := AddChainParams{
		ChainID:   n.HexChainID(),
		ChainName: n.Name,
		NativeCurrency: NativeCurrency{
			Name:     n.CurrencyName,
			Symbol:   n.CurrencySymbol,
			Decimals: n.Decimals,
		},
		RPCURLs: []string{n.RPCURL},
	}
	if n.ExplorerURL != "" {
		p.BlockExplorerURLs = []string{n.ExplorerURL}
	}
	return p
}
