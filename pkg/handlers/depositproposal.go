// Copyright 2025 Certen Protocol
//
// Deposit-to-Proposal Handler: on a leaf insertion at the source anchor,
// reads the current root, resolves linked anchors, and dispatches an Anchor
// Update Proposal per linked target to whichever signing backend accepts it
// (spec §4.2.2). Grounded on pkg/attestation/strategy/interface.go's
// can-handle/handle dispatch shape.

package handlers

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/webb-tools/relayer/pkg/chain/evmsource"
	"github.com/webb-tools/relayer/pkg/proposal"
	"github.com/webb-tools/relayer/pkg/resource"
	"github.com/webb-tools/relayer/pkg/signing"
	"github.com/webb-tools/relayer/pkg/watcher"
)

// UpdateEdgeFunctionSig is the selector for a linked anchor's
// updateEdge(uint32,uint32,bytes32,bytes) entrypoint — the function every
// Anchor Update Proposal in this relayer invokes on its target, absent a
// per-anchor override in configuration.
var UpdateEdgeFunctionSig = func() (sig [4]byte) {
	copy(sig[:], crypto.Keccak256([]byte("updateEdge(uint32,uint32,bytes32,bytes)"))[:4])
	return sig
}()

// RootReader reads a source anchor's current Merkle root (spec §4.2.2 step
//1 RPC call), abstracted so Substrate sources can satisfy it too.
type RootReader interface {
	GetRoot(ctx context.Context, id resource.ID) ([32]byte, error)
}

// LinkedAnchor is one edge in the linked-anchor graph (spec §9): from the
// source resource id that emitted an insertion, to a target resource id
// whose updateEdge selector must be invoked.
type LinkedAnchor struct {
	Target      resource.ID
	FunctionSig [4]byte
}

// DepositProposalHandler converts deposit events into Anchor Update
// Proposals for every linked anchor other than the source.
type DepositProposalHandler struct {
	Roots         RootReader
	LinkedAnchors map[resource.ID][]LinkedAnchor // keyed by source resource id
	Backends      []signing.Backend
}

func (h *DepositProposalHandler) CanHandle(ev watcher.RawEvent) bool {
	return ev.Kind == evmsource.KindLeafInsert && !ev.IsOutput
}

// Handle implements the two-UTXO filter policy (spec §4.2.2): when an
// anchor emits two insertion events per transaction, only the odd-indexed
// leaf (the second of the pair) triggers a proposal, so a linked target is
// not updated twice for one deposit.
func (h *DepositProposalHandler) Handle(ctx context.Context, ev watcher.RawEvent) error {
	if ev.LeafIndex%2 == 0 {
		return nil
	}

	root, err := h.Roots.GetRoot(ctx, ev.ResourceID)
	if err != nil {
		return fmt.Errorf("read root for resource %s: %w", ev.ResourceID, err)
	}

	targets := h.LinkedAnchors[ev.ResourceID]
	for _, linked := range targets {
		if linked.Target == ev.ResourceID {
			continue
		}
		p := &proposal.Proposal{
			Header: proposal.Header{
				ResourceID:  linked.Target,
				FunctionSig: linked.FunctionSig,
				Nonce:       ev.LeafIndex,
			},
			SrcChainID:   ev.ResourceID.ChainID(),
			LeafIndex:    ev.LeafIndex,
			MerkleRoot:   root,
			TargetSystem: linked.Target.TargetSystem(),
		}

		if err := h.dispatch(ctx, p); err != nil {
			return fmt.Errorf("dispatch proposal to target %s: %w", linked.Target, err)
		}
	}
	return nil
}

func (h *DepositProposalHandler) dispatch(ctx context.Context, p *proposal.Proposal) error {
	for _, backend := range h.Backends {
		if backend.CanHandle(p) {
			return backend.Handle(ctx, p)
		}
	}
	return fmt.Errorf("no signing backend can handle proposal for resource %s", p.Header.ResourceID)
}
