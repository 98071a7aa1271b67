// Copyright 2025 Certen Protocol

package handlers

import (
	"context"
	"testing"

	"github.com/webb-tools/relayer/pkg/chain/evmsource"
	"github.com/webb-tools/relayer/pkg/resource"
	"github.com/webb-tools/relayer/pkg/store"
	"github.com/webb-tools/relayer/pkg/watcher"
)

func testResourceID() resource.ID {
	var addr [20]byte
	return resource.NewEVMResourceID(addr, 1)
}

func TestLeafCacheHandler_CanHandle(t *testing.T) {
	h := &LeafCacheHandler{}
	if !h.CanHandle(watcher.RawEvent{Kind: evmsource.KindLeafInsert}) {
		t.Error("expected to accept a leaf insertion event")
	}
	if h.CanHandle(watcher.RawEvent{Kind: evmsource.KindLeafInsert, IsOutput: true}) {
		t.Error("expected to reject an output event")
	}
	if h.CanHandle(watcher.RawEvent{Kind: evmsource.KindProposalSigned}) {
		t.Error("expected to reject a proposal-signed event")
	}
}

func TestLeafCacheHandler_Handle(t *testing.T) {
	st := store.New(store.NewMemKV())
	h := &LeafCacheHandler{Store: st}
	id := testResourceID()

	ev := watcher.RawEvent{ResourceID: id, Kind: evmsource.KindLeafInsert, LeafIndex: 0, Value: [32]byte{1}, BlockNumber: 100}
	if err := h.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	leaves, err := st.GetLeaves(id)
	if err != nil {
		t.Fatalf("get leaves: %v", err)
	}
	if len(leaves) != 1 || leaves[0].Value != ev.Value {
		t.Errorf("leaves = %+v, want one leaf with value %x", leaves, ev.Value)
	}
}

func TestOutputCacheHandler_CanHandle(t *testing.T) {
	h := &OutputCacheHandler{}
	if !h.CanHandle(watcher.RawEvent{Kind: evmsource.KindLeafInsert, IsOutput: true}) {
		t.Error("expected to accept an output event")
	}
	if h.CanHandle(watcher.RawEvent{Kind: evmsource.KindLeafInsert}) {
		t.Error("expected to reject a non-output leaf event")
	}
}

func TestOutputCacheHandler_Handle(t *testing.T) {
	st := store.New(store.NewMemKV())
	h := &OutputCacheHandler{Store: st}
	id := testResourceID()

	ev := watcher.RawEvent{ResourceID: id, Kind: evmsource.KindLeafInsert, IsOutput: true, LeafIndex: 0, Value: [32]byte{9}, BlockNumber: 50}
	if err := h.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	outputs, err := st.GetOutputs(id)
	if err != nil {
		t.Fatalf("get outputs: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Value != ev.Value {
		t.Errorf("outputs = %+v, want one output with value %x", outputs, ev.Value)
	}
}
