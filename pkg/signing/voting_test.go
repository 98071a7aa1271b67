// Copyright 2025 Certen Protocol

package signing

import (
	"context"
	"testing"
	"time"

	"github.com/webb-tools/relayer/pkg/evmtx"
	"github.com/webb-tools/relayer/pkg/proposal"
	"github.com/webb-tools/relayer/pkg/queue"
	"github.com/webb-tools/relayer/pkg/resource"
	"github.com/webb-tools/relayer/pkg/store"
)

func TestOnChainVoting_CanHandleAcceptsAnyProposal(t *testing.T) {
	v := NewOnChainVoting([20]byte{1}, [32]byte{2}, nil, 1, nil, time.Hour)
	var addr [20]byte
	id := resource.NewEVMResourceID(addr, 99)
	if !v.CanHandle(&proposal.Proposal{Header: proposal.Header{ResourceID: id}}) {
		t.Error("expected on-chain voting to accept every proposal")
	}
}

func TestOnChainVoting_Handle_EnqueuesVoteTx(t *testing.T) {
	q := queue.New(store.New(store.NewMemKV()), "evm:1:tx")
	v := NewOnChainVoting([20]byte{0xaa}, [32]byte{0xbb}, []byte("phase1"), 1, q, time.Hour)

	p := &proposal.Proposal{Header: proposal.Header{Nonce: 1}, LeafIndex: 2}
	if err := v.Handle(context.Background(), p); err != nil {
		t.Fatalf("handle: %v", err)
	}

	n, err := q.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Fatalf("queue length = %d, want 1", n)
	}

	item, ok, err := q.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	payload, err := evmtx.Unmarshal(item.Payload)
	if err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.To != v.VotingContract {
		t.Errorf("payload.To = %x, want %x", payload.To, v.VotingContract)
	}
	if payload.ChainID != v.ChainID {
		t.Errorf("payload.ChainID = %d, want %d", payload.ChainID, v.ChainID)
	}
}

func TestOnChainVoting_Handle_DeduplicatesIdenticalVote(t *testing.T) {
	q := queue.New(store.New(store.NewMemKV()), "evm:1:tx")
	v := NewOnChainVoting([20]byte{0xaa}, [32]byte{0xbb}, []byte("phase1"), 1, q, time.Hour)

	p := &proposal.Proposal{Header: proposal.Header{Nonce: 1}, LeafIndex: 2}
	if err := v.Handle(context.Background(), p); err != nil {
		t.Fatalf("first handle: %v", err)
	}
	if err := v.Handle(context.Background(), p); err != nil {
		t.Fatalf("second handle: %v", err)
	}

	n, err := q.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Errorf("queue length = %d, want 1 (duplicate vote should be deduped)", n)
	}
}
