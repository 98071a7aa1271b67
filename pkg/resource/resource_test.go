// Copyright 2025 Certen Protocol

package resource

import "testing"

func TestNewEVMResourceID_RoundTrip(t *testing.T) {
	var addr [20]byte
	for i := range addr {
		addr[i] = byte(i + 1)
	}
	id := NewEVMResourceID(addr, 11155111)

	if id.ChainType() != ChainTypeEVM {
		t.Errorf("chain type mismatch: got %v, want %v", id.ChainType(), ChainTypeEVM)
	}
	if id.ChainID() != 11155111 {
		t.Errorf("chain id mismatch: got %d, want 11155111", id.ChainID())
	}
	if got := id.EVMAddress(); got != addr {
		t.Errorf("address mismatch: got %x, want %x", got, addr)
	}
}

func TestNewSubstrateResourceID_RoundTrip(t *testing.T) {
	id := NewSubstrateResourceID(5, 42, 2000)

	if id.ChainType() != ChainTypeSubstrate {
		t.Errorf("chain type mismatch: got %v, want %v", id.ChainType(), ChainTypeSubstrate)
	}
	if id.ChainID() != 2000 {
		t.Errorf("chain id mismatch: got %d, want 2000", id.ChainID())
	}
	ts := id.TargetSystem()
	if ts[6] != 5 {
		t.Errorf("pallet index mismatch: got %d, want 5", ts[6])
	}
}

func TestFromBytes(t *testing.T) {
	var addr [20]byte
	want := NewEVMResourceID(addr, 1)

	got, err := FromBytes(want.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %x, want %x", got, want)
	}

	if _, err := FromBytes([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short byte slice, got nil")
	}
}

func TestChainTypeString(t *testing.T) {
	if ChainTypeEVM.String() != "evm" {
		t.Errorf("got %q, want %q", ChainTypeEVM.String(), "evm")
	}
	if ChainTypeSubstrate.String() != "substrate" {
		t.Errorf("got %q, want %q", ChainTypeSubstrate.String(), "substrate")
	}
	if got := ChainType(99).String(); got == "evm" || got == "substrate" {
		t.Errorf("unexpected string for unknown chain type: %q", got)
	}
}
