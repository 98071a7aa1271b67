// Copyright 2025 Certen Protocol
//
// Store is the shared persistence layer described in spec §3: an ordered
// byte-keyed map supplying the leaf cache, encrypted-output cache,
// checkpoint map, event-hash set, and queue backend. Multi-step writes (leaf
// and output inserts, queue operations) are serialized by mu, mirroring the single-writer contract
// documented on LedgerStore in pkg/ledger/store.go — callers should not hold
// a Store handle live across an unrelated blocking call.

package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/webb-tools/relayer/pkg/relayerr"
	"github.com/webb-tools/relayer/pkg/resource"
)

// LeafRecord is an (index, value) pair in the leaf or encrypted-output
// cache. Per resource id, indices form a contiguous sequence from 0.
type LeafRecord struct {
	Index uint32
	Value [32]byte
}

// Store wraps a KV backend with the relayer's domain-specific namespaces.
type Store struct {
	kv KV
	mu sync.Mutex
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

// GetLeaves returns every leaf record for a resource id in index order.
func (s *Store) GetLeaves(id resource.ID) ([]LeafRecord, error) {
	return s.scanRecords(leafPrefix(id))
}

// GetOutputs returns every encrypted-output record for a resource id.
func (s *Store) GetOutputs(id resource.ID) ([]LeafRecord, error) {
	return s.scanRecords(outputPrefix(id))
}

func (s *Store) scanRecords(prefix []byte) ([]LeafRecord, error) {
	end := prefixUpperBound(prefix)
	it, err := s.kv.Iterator(prefix, end)
	if err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	defer it.Close()

	var out []LeafRecord
	for ; it.Valid(); it.Next() {
		v := it.Value()
		if len(v) != 32 {
			return nil, fmt.Errorf("corrupt record value length %d", len(v))
		}
		key := it.Key()
		idx := binary.BigEndian.Uint32(key[len(key)-4:])
		var rec LeafRecord
		rec.Index = idx
		copy(rec.Value[:], v)
		out = append(out, rec)
	}
	return out, nil
}

// InsertLeaf appends a leaf at the given index and advances the resource's
// last-deposit block atomically: both writes land in one batch, so a crash
// between them is impossible to observe. Returns relayerr.ErrNonContiguousLeaf
// if index does not equal the current leaf count.
func (s *Store) InsertLeaf(id resource.ID, index uint32, value [32]byte, blockNumber uint64) error {
	return s.insertRecord(leafKey(id, index), leafPrefix(id), lastDepositKey(id), index, value, blockNumber)
}

// InsertOutput is InsertLeaf's analog for the encrypted-output namespace.
func (s *Store) InsertOutput(id resource.ID, index uint32, value [32]byte, blockNumber uint64) error {
	return s.insertRecord(outputKey(id, index), outputPrefix(id), lastDepositKey(id), index, value, blockNumber)
}

func (s *Store) insertRecord(key, prefix, depositKey []byte, index uint32, value [32]byte, blockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.countRecords(prefix)
	if err != nil {
		return relayerr.New(relayerr.KindStore, "insertRecord: count existing records", err)
	}
	if uint32(count) != index {
		return fmt.Errorf("insert leaf at index %d: expected next index %d: %w", index, count, relayerr.ErrNonContiguousLeaf)
	}

	batch := s.kv.NewBatch()
	defer batch.Close()
	if err := batch.Set(key, value[:]); err != nil {
		return relayerr.New(relayerr.KindStore, "insertRecord: stage value", err)
	}
	blockBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(blockBytes, blockNumber)
	if err := batch.Set(depositKey, blockBytes); err != nil {
		return relayerr.New(relayerr.KindStore, "insertRecord: stage deposit block", err)
	}
	if err := batch.WriteSync(); err != nil {
		return relayerr.New(relayerr.KindStore, "insertRecord: commit batch", err)
	}
	return nil
}

func (s *Store) countRecords(prefix []byte) (int, error) {
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

// GetLastDepositBlock returns the block number of the most recent leaf or
// output insertion for a resource id, or 0 if none has occurred.
func (s *Store) GetLastDepositBlock(id resource.ID) (uint64, error) {
	v, err := s.kv.Get(lastDepositKey(id))
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

// GetCheckpoint returns the last-processed block for a resource id, or def
// if no checkpoint has been recorded yet.
func (s *Store) GetCheckpoint(id resource.ID, def uint64) (uint64, error) {
	v, err := s.kv.Get(checkpointKey(id))
	if err != nil {
		return 0, err
	}
	if v == nil {
		return def, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

// SetCheckpoint advances the checkpoint for a resource id. Callers own
// monotonicity (the watcher never calls this with a value below the current
// checkpoint).
func (s *Store) SetCheckpoint(id resource.ID, block uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, block)
	return s.kv.Set(checkpointKey(id), b)
}

// HasEvent reports whether an event digest is already in the event-hash set.
func (s *Store) HasEvent(digest [32]byte) (bool, error) {
	return s.kv.Has(eventHashKey(digest))
}

// MarkEvent records an event digest as processed.
func (s *Store) MarkEvent(digest [32]byte) error {
	return s.kv.Set(eventHashKey(digest), []byte{1})
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, for use as an exclusive iterator end bound.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	// prefix is all 0xff bytes; no finite upper bound, scan everything after it.
	return nil
}
