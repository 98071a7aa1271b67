// Copyright 2025 Certen Protocol
//
// Transaction Queue: a durable FIFO per (chain, queue-kind) with an
// externally observable item-state machine, per spec §4.4. This file owns
// the Item type and the enqueue/peek/dequeue/update primitives; drainer.go
// owns the state-machine loop that drains a queue on-chain.

package queue

import (
	"time"

	"github.com/webb-tools/relayer/pkg/relayerr"
	"github.com/webb-tools/relayer/pkg/store"
)

// Status is the Queue Item's state, a closed set per spec §9's guidance on
// avoiding open variant hierarchies on hot paths.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusFinalized  Status = "finalized"
)

// Item is the friendly view of a store.QueueItemRecord for one (chain, kind)
// queue.
type Item struct {
	Key       [64]byte
	Payload   []byte
	Status    Status
	Step      string
	Progress  float64
	Reason    string
	CreatedAt time.Time
	TTL       time.Duration
}

func fromRecord(r *store.QueueItemRecord) *Item {
	return &Item{
		Key:       r.Key,
		Payload:   r.Payload,
		Status:    Status(r.Status),
		Step:      r.Step,
		Progress:  r.Progress,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
		TTL:       r.TTL,
	}
}

func (it *Item) applyTo(r *store.QueueItemRecord) {
	r.Status = string(it.Status)
	r.Step = it.Step
	r.Progress = it.Progress
	r.Reason = it.Reason
}

// Expired reports whether now - created_at > ttl. A zero TTL never expires.
func (it *Item) Expired(now time.Time) bool {
	return it.TTL > 0 && now.Sub(it.CreatedAt) > it.TTL
}

// Queue is a durable FIFO for one (chain, kind) pair, backed by the shared
// Store.
type Queue struct {
	st   *store.Store
	kind string
}

// New returns a handle onto one (chain, kind) queue. kind should already be
// namespaced by chain (e.g. "evm:5:tx", "evm:5:bridge:0xabc...") so distinct
// chains never share a FIFO.
func New(st *store.Store, kind string) *Queue {
	return &Queue{st: st, kind: kind}
}

// Enqueue inserts an item if its key does not already exist (no-op
// otherwise — spec §8 idempotent-enqueue law).
func (q *Queue) Enqueue(key [64]byte, payload []byte, ttl time.Duration, now time.Time) (inserted bool, err error) {
	rec := &store.QueueItemRecord{
		Payload:   payload,
		Status:    string(StatusPending),
		CreatedAt: now,
		TTL:       ttl,
	}
	return q.st.EnqueueItem(q.kind, key, rec)
}

// Peek returns the head of the FIFO without removing it.
func (q *Queue) Peek() (*Item, bool, error) {
	rec, ok, err := q.st.PeekItem(q.kind)
	if err != nil || !ok {
		return nil, ok, err
	}
	return fromRecord(rec), true, nil
}

// Has reports whether a key is currently queued.
func (q *Queue) Has(key [64]byte) (bool, error) {
	return q.st.HasItem(q.kind, key)
}

// Len returns the number of items currently resident in this queue.
func (q *Queue) Len() (int, error) {
	return q.st.CountItems(q.kind)
}

// Kind returns the queue's namespace string (e.g. "evm:5:tx").
func (q *Queue) Kind() string {
	return q.kind
}

// Remove deletes an item outright (Finalized reap, TTL expiry).
func (q *Queue) Remove(key [64]byte) error {
	return q.st.RemoveItem(q.kind, key)
}

// Update applies fn to the current item in place (same position in the FIFO).
func (q *Queue) Update(key [64]byte, fn func(*Item) error) error {
	return q.st.UpdateItem(q.kind, key, func(r *store.QueueItemRecord) error {
		it := fromRecord(r)
		if err := fn(it); err != nil {
			return err
		}
		it.applyTo(r)
		return nil
	})
}

// ShiftToEnd removes the key's current FIFO position and re-enqueues it at
// the tail, optionally mutating the item (e.g. clearing a Failed status back
// to Pending, or leaving status untouched when rotating a stuck head).
func (q *Queue) ShiftToEnd(key [64]byte, fn func(*Item) error) error {
	return q.st.ShiftToEnd(q.kind, key, func(r *store.QueueItemRecord) error {
		it := fromRecord(r)
		if fn != nil {
			if err := fn(it); err != nil {
				return err
			}
		}
		it.applyTo(r)
		return nil
	})
}

// ErrEmpty is returned by operations that require a head item when the
// queue has none.
var ErrEmpty = relayerr.ErrQueueEmpty
