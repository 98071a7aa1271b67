// Copyright 2025 Certen Protocol

package substrate

import (
	"context"
	"testing"
)

func TestFakeSource_CurrentBlock(t *testing.T) {
	f := &FakeSource{}
	n, err := f.CurrentBlock(context.Background())
	if err != nil {
		t.Fatalf("current block: %v", err)
	}
	if n != 0 {
		t.Errorf("current block with no queued blocks = %d, want 0", n)
	}

	f.Blocks = []FinalizedBlock{{Number: 5}, {Number: 9}}
	n, err = f.CurrentBlock(context.Background())
	if err != nil {
		t.Fatalf("current block: %v", err)
	}
	if n != 9 {
		t.Errorf("current block = %d, want 9 (the last queued block)", n)
	}
}

func TestFakeSource_FinalizedBlocks_SkipsBelowFromBlock(t *testing.T) {
	f := &FakeSource{Blocks: []FinalizedBlock{
		{Number: 1}, {Number: 2}, {Number: 3}, {Number: 4},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.FinalizedBlocks(ctx, 3)
	if err != nil {
		t.Fatalf("finalized blocks: %v", err)
	}

	var got []uint64
	for b := range ch {
		got = append(got, b.Number)
		if len(got) == 2 {
			cancel()
		}
	}

	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("got %v, want [3 4]", got)
	}
}
