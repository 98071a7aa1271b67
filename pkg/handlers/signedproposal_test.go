// Copyright 2025 Certen Protocol

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/webb-tools/relayer/pkg/chain/evmsource"
	"github.com/webb-tools/relayer/pkg/proposal"
	"github.com/webb-tools/relayer/pkg/queue"
	"github.com/webb-tools/relayer/pkg/store"
	"github.com/webb-tools/relayer/pkg/watcher"
)

func packProposalSigned(t *testing.T, data, signature []byte) []byte {
	t.Helper()
	args := evmsource.ProposalSignedDataArgs()
	packed, err := args.Pack(data, signature)
	if err != nil {
		t.Fatalf("pack ProposalSigned args: %v", err)
	}
	return packed
}

func TestSignedProposalHandler_CanHandle(t *testing.T) {
	h := &SignedProposalHandler{}
	if !h.CanHandle(watcher.RawEvent{Kind: evmsource.KindProposalSigned}) {
		t.Error("expected to accept a proposal-signed event")
	}
	if h.CanHandle(watcher.RawEvent{Kind: evmsource.KindLeafInsert}) {
		t.Error("expected to reject a leaf insertion event")
	}
}

func TestSignedProposalHandler_EnqueuesToEveryBridge(t *testing.T) {
	st := store.New(store.NewMemKV())
	bridgeA := queue.New(st, "evm:1:bridge:a")
	bridgeB := queue.New(st, "evm:1:bridge:b")

	sig := make([]byte, 65)
	sig[64] = 0x1b
	raw := packProposalSigned(t, []byte("proposal-data"), sig)

	h := &SignedProposalHandler{
		ProposalSignedArgs: evmsource.ProposalSignedDataArgs(),
		Bridges:            []*queue.Queue{bridgeA, bridgeB},
		TTL:                time.Hour,
	}

	ev := watcher.RawEvent{Kind: evmsource.KindProposalSigned, Raw: raw}
	if err := h.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	for name, bridge := range map[string]*queue.Queue{"a": bridgeA, "b": bridgeB} {
		n, err := bridge.Len()
		if err != nil {
			t.Fatalf("bridge %s len: %v", name, err)
		}
		if n != 1 {
			t.Errorf("bridge %s has %d items, want 1", name, n)
		}

		item, ok, err := bridge.Peek()
		if err != nil || !ok {
			t.Fatalf("bridge %s peek: %v, ok=%v", name, err, ok)
		}
		cmd, err := proposal.UnmarshalBridgeCommand(item.Payload)
		if err != nil {
			t.Fatalf("bridge %s unmarshal: %v", name, err)
		}
		if string(cmd.Data) != "proposal-data" {
			t.Errorf("bridge %s data = %q, want %q", name, cmd.Data, "proposal-data")
		}
	}
}

func TestSignedProposalHandler_RejectsShortSignature(t *testing.T) {
	raw := packProposalSigned(t, []byte("data"), make([]byte, 64))
	h := &SignedProposalHandler{ProposalSignedArgs: evmsource.ProposalSignedDataArgs()}

	ev := watcher.RawEvent{Kind: evmsource.KindProposalSigned, Raw: raw}
	if err := h.Handle(context.Background(), ev); err == nil {
		t.Error("expected error for a 64-byte signature")
	}
}
