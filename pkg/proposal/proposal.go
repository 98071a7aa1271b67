// Copyright 2025 Certen Protocol
//
// Anchor Update Proposal: the message asserting "source chain at leaf_index
// has root R; please update my edge". Serializes to a fixed byte layout
// used both for signing and for on-chain submission (spec §3).

package proposal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/webb-tools/relayer/pkg/resource"
)

// Header carries the function selector and anti-replay nonce alongside the
// resource id the proposal targets.
type Header struct {
	ResourceID  resource.ID
	FunctionSig [4]byte
	Nonce       uint32
}

// Proposal is an Anchor Update Proposal, spec §3.
type Proposal struct {
	Header       Header
	SrcChainID   uint32
	LeafIndex    uint32
	MerkleRoot   [32]byte
	TargetSystem [26]byte
}

// headerLen + srcChainId(4) + leafIndex(4) + merkleRoot(32) + targetSystem(26)
const (
	headerLen = 32 + 4 + 4 // ResourceID || FunctionSig || Nonce
	bodyLen   = 4 + 4 + 32 + 26
	// Len is the total fixed wire size of a serialized proposal.
	Len = headerLen + bodyLen
)

// Serialize writes the proposal to its canonical fixed byte layout.
func (p *Proposal) Serialize() []byte {
	buf := make([]byte, Len)
	i := 0
	copy(buf[i:i+32], p.Header.ResourceID[:])
	i += 32
	copy(buf[i:i+4], p.Header.FunctionSig[:])
	i += 4
	binary.BigEndian.PutUint32(buf[i:i+4], p.Header.Nonce)
	i += 4
	binary.BigEndian.PutUint32(buf[i:i+4], p.SrcChainID)
	i += 4
	binary.BigEndian.PutUint32(buf[i:i+4], p.LeafIndex)
	i += 4
	copy(buf[i:i+32], p.MerkleRoot[:])
	i += 32
	copy(buf[i:i+26], p.TargetSystem[:])
	return buf
}

// Deserialize parses the canonical byte layout back into a Proposal.
// deserialize(serialize(p)) == p for every proposal (spec §8 round-trip law).
func Deserialize(buf []byte) (*Proposal, error) {
	if len(buf) != Len {
		return nil, fmt.Errorf("proposal: expected %d bytes, got %d", Len, len(buf))
	}
	var p Proposal
	i := 0
	copy(p.Header.ResourceID[:], buf[i:i+32])
	i += 32
	copy(p.Header.FunctionSig[:], buf[i:i+4])
	i += 4
	p.Header.Nonce = binary.BigEndian.Uint32(buf[i : i+4])
	i += 4
	p.SrcChainID = binary.BigEndian.Uint32(buf[i : i+4])
	i += 4
	p.LeafIndex = binary.BigEndian.Uint32(buf[i : i+4])
	i += 4
	copy(p.MerkleRoot[:], buf[i:i+32])
	i += 32
	copy(p.TargetSystem[:], buf[i:i+26])
	return &p, nil
}

// BridgeCommand is ExecuteProposalWithSignature{data, signature}, queued per
// (bridge_address, chain_id).
type BridgeCommand struct {
	Data      []byte
	Signature [65]byte
}

// QueueKey returns the 64-byte deterministic dedup key for a bridge command:
// keccak(data || signature), left-padded to 64 bytes with the low 32 bytes
// holding the hash (the remaining bytes are reserved, zero).
func (c *BridgeCommand) QueueKey(keccak func([]byte) [32]byte) [64]byte {
	h := keccak(append(append([]byte{}, c.Data...), c.Signature[:]...))
	var key [64]byte
	copy(key[32:], h[:])
	return key
}

type bridgeCommandJSON struct {
	Data      []byte `json:"data"`
	Signature []byte `json:"signature"`
}

// Marshal serializes the command for storage as a queue item.
func (c *BridgeCommand) Marshal() ([]byte, error) {
	return json.Marshal(bridgeCommandJSON{Data: c.Data, Signature: c.Signature[:]})
}

// UnmarshalBridgeCommand parses a queue item's bytes back into a BridgeCommand.
func UnmarshalBridgeCommand(b []byte) (*BridgeCommand, error) {
	var raw bridgeCommandJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if len(raw.Signature) != 65 {
		return nil, fmt.Errorf("bridge command: signature must be 65 bytes, got %d", len(raw.Signature))
	}
	cmd := &BridgeCommand{Data: raw.Data}
	copy(cmd.Signature[:], raw.Signature)
	return cmd, nil
}
