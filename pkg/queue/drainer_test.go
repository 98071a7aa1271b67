// Copyright 2025 Certen Protocol

package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/webb-tools/relayer/pkg/store"
)

type fakeSubmitter struct {
	dryRunErr error
	submitErr error
	statuses  []SubmitStatus
}

func (s *fakeSubmitter) DryRun(ctx context.Context, payload []byte) error {
	return s.dryRunErr
}

func (s *fakeSubmitter) Submit(ctx context.Context, payload []byte) (<-chan SubmitStatus, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	ch := make(chan SubmitStatus, len(s.statuses))
	for _, st := range s.statuses {
		ch <- st
	}
	close(ch)
	return ch, nil
}

func TestDrainer_CycleFinalizesOnSuccess(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	if _, err := q.Enqueue(key(1), []byte("payload"), time.Hour, time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sub := &fakeSubmitter{statuses: []SubmitStatus{{Step: "confirmed", Progress: 1.0, Done: true}}}
	d := NewDrainer(q, sub, time.Second, nil)
	d.idleSleep = 0

	if err := d.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	it, ok, err := q.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	if it.Status != StatusFinalized {
		t.Errorf("status = %v, want finalized", it.Status)
	}
}

func TestDrainer_CycleFailsOnDryRunError(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	if _, err := q.Enqueue(key(1), []byte("payload"), time.Hour, time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sub := &fakeSubmitter{dryRunErr: errors.New("insufficient balance")}
	d := NewDrainer(q, sub, time.Second, nil)
	d.idleSleep = 0

	if err := d.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	it, ok, err := q.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	if it.Status != StatusFailed {
		t.Errorf("status = %v, want failed", it.Status)
	}
	if it.Reason != "insufficient balance" {
		t.Errorf("reason = %q, want %q", it.Reason, "insufficient balance")
	}
}

func TestDrainer_CycleRotatesNonPendingHead(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	now := time.Now()
	if _, err := q.Enqueue(key(1), nil, time.Hour, now); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	if _, err := q.Enqueue(key(2), nil, time.Hour, now); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}
	if err := q.Update(key(1), func(it *Item) error {
		it.Status = StatusFailed
		return nil
	}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	sub := &fakeSubmitter{}
	d := NewDrainer(q, sub, time.Second, nil)
	d.idleSleep = 0

	if err := d.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	it, ok, err := q.Peek()
	if err != nil || !ok {
		t.Fatalf("peek: %v, ok=%v", err, ok)
	}
	if it.Key != key(2) {
		t.Errorf("head after rotation = %x, want %x (item 1 should have moved to the tail)", it.Key, key(2))
	}
}

func TestDrainer_CycleRemovesExpiredHead(t *testing.T) {
	q := New(store.New(store.NewMemKV()), "evm:1:tx")
	past := time.Now().Add(-2 * time.Hour)
	if _, err := q.Enqueue(key(1), nil, time.Hour, past); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sub := &fakeSubmitter{}
	d := NewDrainer(q, sub, time.Second, nil)
	d.idleSleep = 0

	if err := d.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	n, err := q.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Errorf("queue length = %d, want 0 (expired item should be removed)", n)
	}
}

func TestDrainer_DesyncSleepWithinWindow(t *testing.T) {
	d := NewDrainer(New(store.New(store.NewMemKV()), "evm:1:tx"), &fakeSubmitter{}, 5*time.Second, nil)
	for i := 0; i < 50; i++ {
		got := d.desyncSleep()
		if got < time.Second || got > 5*time.Second {
			t.Fatalf("desync sleep = %v, want within [1s, 5s]", got)
		}
	}
}

func TestNewDrainer_EnforcesMinimumMaxSleep(t *testing.T) {
	d := NewDrainer(New(store.New(store.NewMemKV()), "evm:1:tx"), &fakeSubmitter{}, 10*time.Millisecond, nil)
	if d.MaxSleep != time.Second {
		t.Errorf("MaxSleep = %v, want clamped to 1s", d.MaxSleep)
	}
}
