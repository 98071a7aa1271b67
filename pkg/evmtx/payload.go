// Copyright 2025 Certen Protocol
//
// Payload is the typed-transaction shape stored in a chain's main
// Transaction Queue: a destination, calldata, and the chain it targets.
// Both the on-chain voting signing backend and the Bridge Executor enqueue
// this shape; pkg/chain/evmsource.Submitter is what actually signs and
// broadcasts it.

package evmtx

import "encoding/json"

// Payload is the durable, queue-stored representation of one pending EVM
// transaction.
type Payload struct {
	To      [20]byte `json:"to"`
	Data    []byte   `json:"data"`
	ChainID uint32   `json:"chain_id"`
	// Value is wei to send with the call; zero for all proposal/bridge flows.
	Value []byte `json:"value,omitempty"`
}

// Marshal serializes the payload for storage as a queue item.
func (p *Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal parses a queue item's bytes back into a Payload.
func Unmarshal(b []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
