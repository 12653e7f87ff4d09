package network

import "testing"

func TestLookupKnownNetworks(t *testing.T) {
	n, err := Lookup(" BSC ")
	if err != nil {
		t.Fatalf("lookup bsc: %v", err)
	}
	if n.ChainID.Int64() != 56 {
		t.Fatalf("expected chain id 56, got %s", n.ChainID)
	}
	if n.HexChainID() != "0x38" {
		t.Fatalf("expected 0x38, got %s", n.HexChainID())
	}

	tn, err := Lookup("bsc-testnet")
	if err != nil {
		t.Fatalf("lookup bsc-testnet: %v", err)
	}
	if !tn.Testnet || tn.HexChainID() != "0x61" {
		t.Fatalf("unexpected testnet entry: %+v", tn)
	}
}

func TestLookupUnknownNetwork(t *testing.T) {
	if _, err := Lookup("dogechain"); err == nil {
		t.Fatal("expected error for unknown network")
	}
}

func TestAllSortedByChainID(t *testing.T) {
	all := All()
	if len(all) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(all))
	}
	if all[0].Key != "bsc" || all[1].Key != "bsc-testnet" {
		t.Fatalf("unexpected order: %s, %s", all[0].Key, all[1].Key)
	}
}

func TestAddChainParams(t *testing.T) {
	n, _ := Lookup("bsc")
	p := n.AddChainParams()
	if p.ChainID != "0x38" || p.NativeCurrency.Symbol != "BNB" || len(p.RPCURLs) != 1 {
		t.Fatalf("unexpected params: %+v", p)
	}
	if len(p.BlockExplorerURLs) != 1 || p.BlockExplorerURLs[0] != "https://bscscan.com" {
		t.Fatalf("unexpected explorer urls: %v", p.BlockExplorerURLs)
	}
}
