package wallet

import (
	"strings"
	"testing"
)

// The well-known test mnemonic used by hardhat and ganache.
const testMnemonic = "myth like bonus scare over problem client lizard pioneer submit female collect"

func TestDeriveDeterministic(t *testing.T) {
	a, err := Derive(testMnemonic, 0)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := Derive(testMnemonic, 0)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if a.Address != b.Address || a.PrivateKeyHex != b.PrivateKeyHex {
		t.Fatalf("derivation not deterministic: %q vs %q", a.Address, b.Address)
	}
	if !strings.HasPrefix(a.Address, "0x") || len(a.Address) != 42 {
		t.Fatalf("bad address: %q", a.Address)
	}
	if a.Address != strings.ToLower(a.Address) {
		t.Fatalf("address not lowercased: %q", a.Address)
	}
}

func TestDeriveDistinctIndexes(t *testing.T) {
	a, err := Derive(testMnemonic, 0)
	if err != nil {
		t.Fatalf("derive 0: %v", err)
	}
	b, err := Derive(testMnemonic, 1)
	if err != nil {
		t.Fatalf("derive 1: %v", err)
	}
	if a.Address == b.Address {
		t.Fatalf("indexes collide: %q", a.Address)
	}
}

func TestDeriveRejectsBadInput(t *testing.T) {
	if _, err := Derive("", 0); err == nil {
		t.Fatalf("empty mnemonic accepted")
	}
	if _, err := Derive("definitely not a mnemonic", 0); err == nil {
		t.Fatalf("garbage mnemonic accepted")
	}
	if _, err := DeriveAtPath(testMnemonic, "not-a-path"); err == nil {
		t.Fatalf("bad path accepted")
	}
}
