package helper

import (
	"strings"
	"testing"
)

func TestShortAddress(t *testing.T) {
	cases := map[string]string{
		"":       "",
		"0x1234": "0x1234",
		"0x742d35Cc6634C0532925a3b844Bc9e7595f9c8a1": "0x742d...c8a1",
	}
	for in, want := range cases {
		if got := ShortAddress(in); got != want {
			t.Fatalf("ShortAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, ok := NormalizeAddress(" 0x742d35cc6634c0532925a3b844bc9e7595f9c8a1 ")
	if !ok {
		t.Fatal("expected valid address")
	}
	if !strings.EqualFold(got, "0x742d35cc6634c0532925a3b844bc9e7595f9c8a1") {
		t.Fatalf("unexpected normalized form %q", got)
	}
	if _, ok := NormalizeAddress("0xnope"); ok {
		t.Fatal("expected invalid address")
	}
}
