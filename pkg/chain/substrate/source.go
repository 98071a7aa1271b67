// Copyright 2025 Certen Protocol
//
// Substrate Event Source: no Substrate RPC client exists anywhere in the
// reference corpus, so this package defines only the narrow contract the
// Watcher Engine needs and ships an in-memory fake for tests. A production
// build wires this to a real Substrate RPC client (e.g. a subxt-equivalent
// JSON-RPC client); that wiring is an intentional seam, not an omission
// (see DESIGN.md).

package substrate

import (
	"context"

	"github.com/webb-tools/relayer/pkg/resource"
)

// FinalizedBlock is one finalized Substrate block carrying the tree-deposit
// events the watcher dispatches to handlers.
type FinalizedBlock struct {
	Number uint64
	Events []TreeEvent
}

// TreeEvent mirrors the EVM log shape closely enough for handlers to treat
// both chain families uniformly: a leaf or output inserted at an index into
// a tree identified by its resource id.
type TreeEvent struct {
	ResourceID resource.ID
	LeafIndex  uint32
	Value      [32]byte
	IsOutput   bool
}

// Source is the Substrate-specific half of the Watcher Engine's EventSource
// contract: a channel of finalized blocks, starting at fromBlock.
// Implementations must only ever emit blocks the node considers
// finalized — Substrate finality (e.g. GRANDPA) means these blocks will
// never be reorganized, so the watcher applies no reorg handling for this
// chain family (spec §4.1 / §9 Open Question on Substrate reorgs).
type Source interface {
	FinalizedBlocks(ctx context.Context, fromBlock uint64) (<-chan FinalizedBlock, error)
	CurrentBlock(ctx context.Context) (uint64, error)
}

// FakeSource is an in-memory Source for tests: it replays a fixed sequence
// of finalized blocks and then blocks until ctx is cancelled.
type FakeSource struct {
	Blocks []FinalizedBlock
}

// CurrentBlock returns the last block's number, or 0 if no blocks are queued.
func (f *FakeSource) CurrentBlock(ctx context.Context) (uint64, error) {
	if len(f.Blocks) == 0 {
		return 0, nil
	}
	return f.Blocks[len(f.Blocks)-1].Number, nil
}

// FinalizedBlocks replays f.Blocks with Number >= fromBlock, in order, then
// holds the channel open until ctx is done.
func (f *FakeSource) FinalizedBlocks(ctx context.Context, fromBlock uint64) (<-chan FinalizedBlock, error) {
	ch := make(chan FinalizedBlock, len(f.Blocks))
	go func() {
		defer close(ch)
		for _, b := range f.Blocks {
			if b.Number < fromBlock {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case ch <- b:
			}
		}
		<-ctx.Done()
	}()
	return ch, nil
}
