// Copyright 2025 Certen Protocol
//
// Resource Identifier — the 32-byte global primary key under which leaves,
// checkpoints, and bridge state are stored: 26 bytes of target system
// followed by 6 bytes of typed chain id.

package resource

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// ChainType tags the family a typed chain id belongs to.
type ChainType uint16

const (
	ChainTypeEVM       ChainType = 1
	ChainTypeSubstrate ChainType = 2
)

func (t ChainType) String() string {
	switch t {
	case ChainTypeEVM:
		return "evm"
	case ChainTypeSubstrate:
		return "substrate"
	default:
		return fmt.Sprintf("chaintype(%d)", uint16(t))
	}
}

// ID is a 32-byte Resource Identifier: 26-byte target system || 6-byte
// typed chain id (2-byte chain type tag || 4-byte numeric chain id).
type ID [32]byte

// NewEVMResourceID builds a Resource Identifier for a 20-byte EVM contract
// address, left-padded into the 26-byte target system slot.
func NewEVMResourceID(addr [20]byte, chainID uint32) ID {
	var id ID
	copy(id[6:26], addr[:])
	binary.BigEndian.PutUint16(id[26:28], uint16(ChainTypeEVM))
	binary.BigEndian.PutUint32(id[28:32], chainID)
	return id
}

// NewSubstrateResourceID builds a Resource Identifier for a (pallet_index,
// tree_id) target system.
func NewSubstrateResourceID(palletIndex uint8, treeID uint32, chainID uint32) ID {
	var id ID
	id[6] = palletIndex
	binary.BigEndian.PutUint32(id[7:11], treeID)
	binary.BigEndian.PutUint16(id[26:28], uint16(ChainTypeSubstrate))
	binary.BigEndian.PutUint32(id[28:32], chainID)
	return id
}

// TargetSystem returns the 26-byte target-system portion of the id.
func (id ID) TargetSystem() [26]byte {
	var out [26]byte
	copy(out[:], id[0:26])
	return out
}

// TypedChainID returns the 6-byte typed-chain-id portion of the id.
func (id ID) TypedChainID() [6]byte {
	var out [6]byte
	copy(out[:], id[26:32])
	return out
}

// ChainType reads the 2-byte chain family tag out of the typed chain id.
func (id ID) ChainType() ChainType {
	return ChainType(binary.BigEndian.Uint16(id[26:28]))
}

// ChainID reads the 32-bit numeric chain id out of the typed chain id.
func (id ID) ChainID() uint32 {
	return binary.BigEndian.Uint32(id[28:32])
}

// EVMAddress returns the 20-byte EVM address from an EVM-typed resource id.
// Behavior is undefined for a non-EVM id.
func (id ID) EVMAddress() [20]byte {
	var out [20]byte
	copy(out[:], id[6:26])
	return out
}

func (id ID) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, id[:])
	return out
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// FromBytes parses a 32-byte slice into a Resource Identifier.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != 32 {
		return id, fmt.Errorf("resource id must be 32 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}
