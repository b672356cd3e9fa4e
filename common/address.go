package common

import (
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// solanaPubKeyLen is the byte length of an ed25519 public key.
const solanaPubKeyLen = 32

// NormalizeAddress lowercases and trims an address for key construction, so
// case-variant inputs hit the same cache entry.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValidEVMAddress returns true for a 20 byte hex address with 0x prefix.
func IsValidEVMAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && ecommon.IsHexAddress(address)
}

// IsValidSolanaAddress returns true for a base58 encoded 32 byte public key.
func IsValidSolanaAddress(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil {
		return false
	}
	return len(decoded) == solanaPubKeyLen
}

// ValidAddress reports whether the address is structurally valid for the family.
func (f ChainFamily) ValidAddress(address string) bool {
	switch f {
	case EVMFamily:
		return IsValidEVMAddress(address)
	case SolanaFamily:
		return IsValidSolanaAddress(address)
	default:
		return false
	}
}
