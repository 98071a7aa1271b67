// Copyright 2025 Certen Protocol

package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/webb-tools/relayer/pkg/evmtx"
	"github.com/webb-tools/relayer/pkg/proposal"
	"github.com/webb-tools/relayer/pkg/queue"
	"github.com/webb-tools/relayer/pkg/store"
)

func newTestExecutor() (*Executor, *queue.Queue, *queue.Queue) {
	commands := queue.New(store.New(store.NewMemKV()), "evm:1:bridge:0")
	txQueue := queue.New(store.New(store.NewMemKV()), "evm:1:tx")
	e := New([20]byte{0xaa}, 1, commands, txQueue, time.Hour, nil)
	e.idleSleep = 0
	return e, commands, txQueue
}

func enqueueCommand(t *testing.T, q *queue.Queue, key [64]byte, data []byte, sig [65]byte) {
	t.Helper()
	cmd := &proposal.BridgeCommand{Data: data, Signature: sig}
	body, err := cmd.Marshal()
	if err != nil {
		t.Fatalf("marshal bridge command: %v", err)
	}
	if _, err := q.Enqueue(key, body, time.Hour, time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func TestExecutor_CycleEnqueuesExecuteProposalTx(t *testing.T) {
	e, commands, txQueue := newTestExecutor()
	var sig [65]byte
	sig[0] = 1
	enqueueCommand(t, commands, [64]byte{1}, []byte("proposal-bytes"), sig)

	if err := e.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	n, err := txQueue.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Fatalf("tx queue length = %d, want 1", n)
	}

	item, ok, err := txQueue.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	payload, err := evmtx.Unmarshal(item.Payload)
	if err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.To != e.BridgeAddress {
		t.Errorf("payload.To = %x, want %x", payload.To, e.BridgeAddress)
	}
	if len(payload.Data) < 4 {
		t.Fatalf("calldata too short to contain a function selector: %x", payload.Data)
	}
	if string(payload.Data[:4]) != string(executeProposalMethod.ID) {
		t.Error("calldata does not start with the executeProposal selector")
	}

	cmdItem, ok, err := commands.Peek()
	if err != nil || !ok {
		t.Fatalf("commands peek: %v, ok=%v", err, ok)
	}
	if cmdItem.Status != queue.StatusFinalized {
		t.Errorf("command status = %v, want finalized", cmdItem.Status)
	}
}

func TestExecutor_CycleDeduplicatesIdenticalCalldata(t *testing.T) {
	e, commands, txQueue := newTestExecutor()
	var sig [65]byte
	sig[0] = 1
	enqueueCommand(t, commands, [64]byte{1}, []byte("proposal-bytes"), sig)
	if err := e.cycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	enqueueCommand(t, commands, [64]byte{2}, []byte("proposal-bytes"), sig)
	if err := e.cycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	// The second cycle only rotates the finalized first command; the third
	// processes the second command.
	if err := e.cycle(context.Background()); err != nil {
		t.Fatalf("third cycle: %v", err)
	}

	n, err := txQueue.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Errorf("tx queue length = %d, want 1 (identical calldata should dedup)", n)
	}
}

func TestExecutor_CycleFailsOnUndecodableCommand(t *testing.T) {
	e, commands, txQueue := newTestExecutor()
	if _, err := commands.Enqueue([64]byte{9}, []byte("not a valid bridge command"), time.Hour, time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := e.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	n, err := txQueue.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Errorf("tx queue length = %d, want 0 (undecodable command must not reach the tx queue)", n)
	}

	item, ok, err := commands.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	if item.Status != queue.StatusFailed {
		t.Errorf("command status = %v, want failed", item.Status)
	}
}

func TestExecutor_CycleRotatesNonPendingHead(t *testing.T) {
	e, commands, _ := newTestExecutor()
	var sig [65]byte
	enqueueCommand(t, commands, [64]byte{1}, []byte("a"), sig)
	enqueueCommand(t, commands, [64]byte{2}, []byte("b"), sig)
	if err := commands.Update([64]byte{1}, func(it *queue.Item) error {
		it.Status = queue.StatusFailed
		return nil
	}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := e.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	item, ok, err := commands.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	if item.Key != [64]byte{2} {
		t.Errorf("head after rotation = %x, want the second item", item.Key)
	}
}
