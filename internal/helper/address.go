package helper

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ShortAddress renders an address the way the UI shows it: 0x742d...c8a1.
// Empty or short input is returned unchanged.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// NormalizeAddress returns the checksummed form of addr, or false when addr
// is not a hex address.
func NormalizeAddress(addr string) (string, bool) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", false
	}
	return common.HexToAddress(addr).Hex(), true
}
