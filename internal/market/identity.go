package market

import (
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// NormalizeAddress validates a 0x-hex address and lowercases it. All
// identities are stored lowercase so equality is plain string compare.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !ethcommon.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return strings.ToLower(ethcommon.HexToAddress(addr).Hex()), nil
}

// deriveAddress maps a fixed label to a deterministic pseudo-identity.
// Used for the ledger's internal actors and for registry addresses, so
// custody shows up in the books as a real balance-holding identity.
func deriveAddress(label string) string {
	h := ethcrypto.Keccak256([]byte(label))
	return strings.ToLower(ethcommon.BytesToAddress(h[12:]).Hex())
}

// EscrowAddress holds listed tokens between listing and sale.
func EscrowAddress() string { return deriveAddress("gomart/escrow/v1") }

// FeeVaultAddress holds listing fees between listing and sale when
// ReForwardFeeOnSale is enabled.
func FeeVaultAddress() string { return deriveAddress("gomart/feevault/v1") }

// RegistryAddress derives a registry's address from its name.
func RegistryAddress(name string) string {
	return deriveAddress("gomart/registry/v1/" + name)
}
