// Copyright 2025 Certen Protocol
//
// Signed-Proposal Handler: on a ProposalSigned event from a signing pallet,
// enqueues an ExecuteProposalWithSignature command under every configured
// signature bridge's queue (spec §4.2.3).

package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/webb-tools/relayer/pkg/chain/evmsource"
	"github.com/webb-tools/relayer/pkg/proposal"
	"github.com/webb-tools/relayer/pkg/queue"
	"github.com/webb-tools/relayer/pkg/watcher"
)

// SignedProposalHandler fans a signing pallet's ProposalSigned event out to
// every signature bridge in the relayer's universe.
type SignedProposalHandler struct {
	ProposalSignedArgs abi.Arguments // {data bytes, signature bytes}
	Bridges            []*queue.Queue
	TTL                time.Duration
}

func (h *SignedProposalHandler) CanHandle(ev watcher.RawEvent) bool {
	return ev.Kind == evmsource.KindProposalSigned
}

func (h *SignedProposalHandler) Handle(ctx context.Context, ev watcher.RawEvent) error {
	values, err := h.ProposalSignedArgs.Unpack(ev.Raw)
	if err != nil {
		return fmt.Errorf("unpack ProposalSigned event: %w", err)
	}
	if len(values) != 2 {
		return fmt.Errorf("ProposalSigned event: expected 2 fields, got %d", len(values))
	}
	data, ok := values[0].([]byte)
	if !ok {
		return fmt.Errorf("ProposalSigned event: data field has unexpected type %T", values[0])
	}
	sigBytes, ok := values[1].([]byte)
	if !ok {
		return fmt.Errorf("ProposalSigned event: signature field has unexpected type %T", values[1])
	}
	if len(sigBytes) != 65 {
		return fmt.Errorf("ProposalSigned event: signature must be 65 bytes, got %d", len(sigBytes))
	}

	cmd := proposal.BridgeCommand{Data: data}
	copy(cmd.Signature[:], sigBytes)
	payload, err := cmd.Marshal()
	if err != nil {
		return fmt.Errorf("marshal bridge command: %w", err)
	}
	key := cmd.QueueKey(func(b []byte) [32]byte { return [32]byte(crypto.Keccak256Hash(b)) })

	for _, bridge := range h.Bridges {
		if _, err := bridge.Enqueue(key, payload, h.TTL, time.Now()); err != nil {
			return fmt.Errorf("enqueue bridge command: %w", err)
		}
	}
	return nil
}
