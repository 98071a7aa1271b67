// Copyright 2025 Certen Protocol

package store

import (
	"encoding/binary"

	"github.com/webb-tools/relayer/pkg/resource"
)

// Namespace prefixes, one byte each, per the persisted state layout: L leaf
// cache, O encrypted output cache, B last-seen-block (checkpoint), E
// event-hash set, Q<kind> queue items, QI<kind> queue index.
const (
	nsLeaf           byte = 'L'
	nsOutput         byte = 'O'
	nsCheckpoint     byte = 'B'
	nsLastDeposit    byte = 'D'
	nsEventHash      byte = 'E'
	nsQueueItem      byte = 'Q'
	nsQueueIndex     byte = 'I'
	nsQueueSeqCursor byte = 'S'
)

func leafKey(id resource.ID, index uint32) []byte {
	k := make([]byte, 1+32+4)
	k[0] = nsLeaf
	copy(k[1:33], id[:])
	binary.BigEndian.PutUint32(k[33:37], index)
	return k
}

func leafPrefix(id resource.ID) []byte {
	k := make([]byte, 1+32)
	k[0] = nsLeaf
	copy(k[1:33], id[:])
	return k
}

func outputKey(id resource.ID, index uint32) []byte {
	k := leafKey(id, index)
	k[0] = nsOutput
	return k
}

func outputPrefix(id resource.ID) []byte {
	k := leafPrefix(id)
	k[0] = nsOutput
	return k
}

func checkpointKey(id resource.ID) []byte {
	k := make([]byte, 1+32)
	k[0] = nsCheckpoint
	copy(k[1:33], id[:])
	return k
}

func lastDepositKey(id resource.ID) []byte {
	k := checkpointKey(id)
	k[0] = nsLastDeposit
	return k
}

func eventHashKey(digest [32]byte) []byte {
	k := make([]byte, 1+32)
	k[0] = nsEventHash
	copy(k[1:33], digest[:])
	return k
}

// queueItemKey composes Q<kind><item key>.
func queueItemKey(kind string, itemKey [64]byte) []byte {
	k := make([]byte, 1+len(kind)+1+64)
	i := 0
	k[i] = nsQueueItem
	i++
	copy(k[i:], kind)
	i += len(kind)
	k[i] = 0 // separator, kind is not itself 64 bytes so no ambiguity with fixed-width item key
	i++
	copy(k[i:], itemKey[:])
	return k
}

func queueItemPrefix(kind string) []byte {
	k := make([]byte, 1+len(kind)+1)
	k[0] = nsQueueItem
	copy(k[1:], kind)
	k[1+len(kind)] = 0
	return k
}

// queueIndexKey composes QI<kind><16-byte seq> -> item key. Sequence numbers
// are monotonically increasing so an ascending scan yields FIFO order.
func queueIndexKey(kind string, seq uint64, tiebreak uint64) []byte {
	k := make([]byte, 2+len(kind)+1+16)
	i := 0
	k[i] = nsQueueItem
	i++
	k[i] = nsQueueIndex
	i++
	copy(k[i:], kind)
	i += len(kind)
	k[i] = 0
	i++
	binary.BigEndian.PutUint64(k[i:i+8], seq)
	binary.BigEndian.PutUint64(k[i+8:i+16], tiebreak)
	return k
}

func queueIndexPrefix(kind string) []byte {
	k := make([]byte, 2+len(kind)+1)
	k[0] = nsQueueItem
	k[1] = nsQueueIndex
	copy(k[2:], kind)
	k[2+len(kind)] = 0
	return k
}

func queueSeqCursorKey(kind string) []byte {
	k := make([]byte, 2+len(kind))
	k[0] = nsQueueSeqCursor
	k[1] = nsQueueIndex
	copy(k[2:], kind)
	return k
}
