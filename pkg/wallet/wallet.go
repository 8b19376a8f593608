package wallet

import (
	"fmt"
	"strings"

	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// Dev identity derivation: marketplace callers are plain addresses, and
// during development they come from one BIP-39 mnemonic, one account
// per index.

type Derived struct {
	PrivateKeyHex string
	Address       string
	Path          string
}

// DerivationPath maps an account index to the standard Ethereum path.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/44'/60'/0'/0/%d", index)
}

// Derive returns the account at the given index of the mnemonic.
func Derive(mnemonic string, index uint32) (*Derived, error) {
	return DeriveAtPath(mnemonic, DerivationPath(index))
}

// DeriveAtPath derives an account at an explicit path.
func DeriveAtPath(mnemonic string, derivationPath string) (*Derived, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	derivationPath = strings.TrimSpace(derivationPath)
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic is required")
	}
	if derivationPath == "" {
		return nil, fmt.Errorf("derivation path is required")
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path: %w", err)
	}

	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive failed: %w", err)
	}

	pk, err := w.PrivateKeyHex(acct)
	if err != nil {
		return nil, fmt.Errorf("private key failed: %w", err)
	}

	return &Derived{
		PrivateKeyHex: pk,
		Address:       strings.ToLower(acct.Address.Hex()),
		Path:          derivationPath,
	}, nil
}
