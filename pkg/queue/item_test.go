// Copyright 2025 Certen Protocol

package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/webb-tools/relayer/pkg/relayerr"
	"github.com/webb-tools/relayer/pkg/store"
)

func key(b byte) [64]byte {
	var k [64]byte
	k[0] = b
	return k
}

func TestEnqueue_IdempotentOnDuplicateKey(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	now := time.Now()

	inserted, err := q.Enqueue(key(1), []byte("payload"), time.Hour, now)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if !inserted {
		t.Fatal("expected first enqueue to insert")
	}

	inserted, err = q.Enqueue(key(1), []byte("other payload"), time.Hour, now)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate-key enqueue to be a no-op")
	}

	n, err := q.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Errorf("queue length = %d, want 1", n)
	}
}

func TestPeek_FIFOOrder(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	now := time.Now()

	for i := byte(1); i <= 3; i++ {
		if _, err := q.Enqueue(key(i), []byte{i}, time.Hour, now); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	it, ok, err := q.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	if it.Key != key(1) {
		t.Errorf("head key = %x, want %x", it.Key, key(1))
	}
	if it.Status != StatusPending {
		t.Errorf("head status = %v, want pending", it.Status)
	}
}

func TestUpdate_MutatesInPlace(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	now := time.Now()
	if _, err := q.Enqueue(key(1), nil, time.Hour, now); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	err := q.Update(key(1), func(it *Item) error {
		it.Status = StatusProcessing
		it.Step = "broadcasting"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	it, ok, err := q.Peek()
	if err != nil || !ok {
		t.Fatalf("peek after update: %v, ok=%v", err, ok)
	}
	if it.Status != StatusProcessing {
		t.Errorf("status = %v, want processing", it.Status)
	}
	if it.Step != "broadcasting" {
		t.Errorf("step = %q, want %q", it.Step, "broadcasting")
	}
}

func TestShiftToEnd_MovesItemBehindLaterArrivals(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	now := time.Now()
	for i := byte(1); i <= 2; i++ {
		if _, err := q.Enqueue(key(i), nil, time.Hour, now); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	err := q.ShiftToEnd(key(1), func(it *Item) error {
		it.Status = StatusPending
		it.Reason = ""
		return nil
	})
	if err != nil {
		t.Fatalf("shift to end: %v", err)
	}

	it, ok, err := q.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	if it.Key != key(2) {
		t.Errorf("new head = %x, want %x (item 1 should be behind it)", it.Key, key(2))
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	it := &Item{CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour}
	if !it.Expired(now) {
		t.Error("expected item older than TTL to be expired")
	}

	fresh := &Item{CreatedAt: now, TTL: time.Hour}
	if fresh.Expired(now) {
		t.Error("expected fresh item to not be expired")
	}

	noTTL := &Item{CreatedAt: now.Add(-1000 * time.Hour), TTL: 0}
	if noTTL.Expired(now) {
		t.Error("expected zero TTL to mean no expiry")
	}
}

func TestUpdate_NotFoundReturnsError(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	err := q.Update(key(9), func(it *Item) error { return nil })
	if !errors.Is(err, relayerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a key that was never enqueued, got %v", err)
	}
}
