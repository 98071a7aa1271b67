// Copyright 2025 Certen Protocol
//
// Queue backend: durable FIFO storage per (chain, kind) queue, with a
// monotonically increasing sequence index maintaining insertion order. This
// is the storage primitive pkg/queue's drainer state machine is built on;
// the queue package owns state-transition semantics, this file only owns
// persistence and ordering.

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/webb-tools/relayer/pkg/relayerr"
)

// QueueItemRecord is the persisted shape of a spec §3 Queue Item.
type QueueItemRecord struct {
	Key         [64]byte  `json:"-"`
	Payload     []byte    `json:"payload"`
	Status      string    `json:"status"`
	Step        string    `json:"step,omitempty"`
	Progress    float64   `json:"progress"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
	seq         uint64
}

func (r *QueueItemRecord) marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Seq returns the record's current ordering sequence number.
func (r *QueueItemRecord) Seq() uint64 {
	return r.seq
}

func unmarshalQueueItem(key [64]byte, seq uint64, b []byte) (*QueueItemRecord, error) {
	var r QueueItemRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	r.Key = key
	r.seq = seq
	return &r, nil
}

// EnqueueItem inserts an item if its key is not already present. Returns
// inserted=false (no-op, idempotent) if the key already exists.
func (s *Store) EnqueueItem(kind string, key [64]byte, rec *QueueItemRecord) (inserted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ik := queueItemKey(kind, key)
	exists, err := s.kv.Has(ik)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	seq, err := s.nextQueueSeq(kind)
	if err != nil {
		return false, err
	}

	rec.Key = key
	body, err := rec.marshal()
	if err != nil {
		return false, err
	}

	batch := s.kv.NewBatch()
	defer batch.Close()
	if err := batch.Set(ik, body); err != nil {
		return false, err
	}
	if err := batch.Set(queueIndexKey(kind, seq, 0), key[:]); err != nil {
		return false, err
	}
	if err := batch.WriteSync(); err != nil {
		return false, err
	}
	return true, nil
}

// PeekItem returns the item at the head of the FIFO without removing it.
func (s *Store) PeekItem(kind string) (*QueueItemRecord, bool, error) {
	prefix := queueIndexPrefix(kind)
	it, err := s.kv.Iterator(prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, false, err
	}
	defer it.Close()
	if !it.Valid() {
		return nil, false, nil
	}
	var key [64]byte
	copy(key[:], it.Value())
	seq := binary.BigEndian.Uint64(it.Key()[len(it.Key())-16 : len(it.Key())-8])

	body, err := s.kv.Get(queueItemKey(kind, key))
	if err != nil {
		return nil, false, err
	}
	if body == nil {
		// index entry survived a crash between removing the item and its
		// index row; treat as absent rather than panicking (spec §8 boundary case).
		return nil, false, nil
	}
	rec, err := unmarshalQueueItem(key, seq, body)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// HasItem reports whether a key is currently queued.
func (s *Store) HasItem(kind string, key [64]byte) (bool, error) {
	return s.kv.Has(queueItemKey(kind, key))
}

// CountItems returns the number of items currently resident in one queue,
// for depth metrics.
func (s *Store) CountItems(kind string) (int, error) {
	prefix := queueIndexPrefix(kind)
	it, err := s.kv.Iterator(prefix, prefixUpperBound(prefix))
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for ; it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

// RemoveItem deletes an item and its index entry.
func (s *Store) RemoveItem(kind string, key [64]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeItemLocked(kind, key)
}

func (s *Store) removeItemLocked(kind string, key [64]byte) error {
	seq, found, err := s.findSeq(kind, key)
	if err != nil {
		return err
	}
	batch := s.kv.NewBatch()
	defer batch.Close()
	if err := batch.Delete(queueItemKey(kind, key)); err != nil {
		return err
	}
	if found {
		if err := batch.Delete(queueIndexKey(kind, seq, 0)); err != nil {
			return err
		}
	}
	return batch.WriteSync()
}

// UpdateItem applies fn to the current record (compare-and-swap over the
// stored bytes: fn receives the freshly read record and the whole update is
// performed under the Store's write lock, so it behaves as if atomic).
func (s *Store) UpdateItem(kind string, key [64]byte, fn func(*QueueItemRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, found, err := s.findSeq(kind, key)
	if err != nil {
		return err
	}
	if !found {
		return relayerr.ErrNotFound
	}
	body, err := s.kv.Get(queueItemKey(kind, key))
	if err != nil {
		return err
	}
	if body == nil {
		return relayerr.ErrNotFound
	}
	rec, err := unmarshalQueueItem(key, seq, body)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	newBody, err := rec.marshal()
	if err != nil {
		return err
	}
	return s.kv.Set(queueItemKey(kind, key), newBody)
}

// ShiftToEnd removes the key's current index entry and re-inserts it with a
// fresh (larger) sequence number, optionally mutating the record via fn.
// Used for the Failed→Pending rotation and for bypassing a non-Pending head.
func (s *Store) ShiftToEnd(kind string, key [64]byte, fn func(*QueueItemRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSeq, found, err := s.findSeq(kind, key)
	if err != nil {
		return err
	}
	if !found {
		return relayerr.ErrNotFound
	}
	body, err := s.kv.Get(queueItemKey(kind, key))
	if err != nil {
		return err
	}
	rec, err := unmarshalQueueItem(key, oldSeq, body)
	if err != nil {
		return err
	}
	if fn != nil {
		if err := fn(rec); err != nil {
			return err
		}
	}
	newBody, err := rec.marshal()
	if err != nil {
		return err
	}
	newSeq, err := s.nextQueueSeq(kind)
	if err != nil {
		return err
	}

	batch := s.kv.NewBatch()
	defer batch.Close()
	if err := batch.Delete(queueIndexKey(kind, oldSeq, 0)); err != nil {
		return err
	}
	if err := batch.Set(queueIndexKey(kind, newSeq, 0), key[:]); err != nil {
		return err
	}
	if err := batch.Set(queueItemKey(kind, key), newBody); err != nil {
		return err
	}
	return batch.WriteSync()
}

func (s *Store) findSeq(kind string, key [64]byte) (uint64, bool, error) {
	prefix := queueIndexPrefix(kind)
	it, err := s.kv.Iterator(prefix, prefixUpperBound(prefix))
	if err != nil {
		return 0, false, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if [64]byte(it.Value()[:64]) == key {
			k := it.Key()
			seq := binary.BigEndian.Uint64(k[len(k)-16 : len(k)-8])
			return seq, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) nextQueueSeq(kind string) (uint64, error) {
	ck := queueSeqCursorKey(kind)
	v, err := s.kv.Get(ck)
	if err != nil {
		return 0, err
	}
	var cur uint64
	if v != nil {
		if len(v) != 8 {
			return 0, fmt.Errorf("corrupt queue sequence cursor for %q", kind)
		}
		cur = binary.BigEndian.Uint64(v)
	}
	next := cur + 1
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, next)
	if err := s.kv.Set(ck, b); err != nil {
		return 0, err
	}
	return next, nil
}
