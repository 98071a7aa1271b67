// Copyright 2025 Certen Protocol
//
// Leaf / Encrypted-Output Cache Handler: appends a (index, value) pair under
// the source resource id and advances its last-deposit block, atomically
// (spec §4.2.1). Grounded on pkg/store/store.go's InsertLeaf/InsertOutput
// single-batch write.

package handlers

import (
	"context"
	"fmt"

	"github.com/webb-tools/relayer/pkg/chain/evmsource"
	"github.com/webb-tools/relayer/pkg/store"
	"github.com/webb-tools/relayer/pkg/watcher"
)

// LeafCacheHandler inserts every leaf-insertion event into the leaf cache.
// Duplicate delivery is already filtered upstream by the watcher's event
// hash set, so Handle is a straight append.
type LeafCacheHandler struct {
	Store *store.Store
}

func (h *LeafCacheHandler) CanHandle(ev watcher.RawEvent) bool {
	return ev.Kind == evmsource.KindLeafInsert && !ev.IsOutput
}

func (h *LeafCacheHandler) Handle(ctx context.Context, ev watcher.RawEvent) error {
	if err := h.Store.InsertLeaf(ev.ResourceID, ev.LeafIndex, ev.Value, ev.BlockNumber); err != nil {
		return fmt.Errorf("insert leaf (resource %s, index %d): %w", ev.ResourceID, ev.LeafIndex, err)
	}
	return nil
}

// OutputCacheHandler is LeafCacheHandler's analog for the encrypted-output
// namespace; the two are separate handlers so a source that only emits one
// kind need not register the other.
type OutputCacheHandler struct {
	Store *store.Store
}

func (h *OutputCacheHandler) CanHandle(ev watcher.RawEvent) bool {
	return ev.Kind == evmsource.KindLeafInsert && ev.IsOutput
}

func (h *OutputCacheHandler) Handle(ctx context.Context, ev watcher.RawEvent) error {
	if err := h.Store.InsertOutput(ev.ResourceID, ev.LeafIndex, ev.Value, ev.BlockNumber); err != nil {
		return fmt.Errorf("insert output (resource %s, index %d): %w", ev.ResourceID, ev.LeafIndex, err)
	}
	return nil
}
