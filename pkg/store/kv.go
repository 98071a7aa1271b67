// Copyright 2025 Certen Protocol
//
// KV is the ordered byte-keyed persistent map the rest of the relayer is
// built on. It is backed by CometBFT's dbm.DB, the same integration point
// pkg/kvdb/adapter.go establishes for the validator.

package store

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KV is the minimal ordered byte-keyed map contract the Store needs.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Iterator(start, end []byte) (dbm.Iterator, error)
	NewBatch() dbm.Batch
}

// dbAdapter wraps a CometBFT dbm.DB and exposes the KV interface, durably
// (SetSync) for single writes outside of an explicit batch.
type dbAdapter struct {
	db dbm.DB
}

// NewKV wraps the given CometBFT database as a Store KV backend.
func NewKV(db dbm.DB) KV {
	return &dbAdapter{db: db}
}

func (a *dbAdapter) Get(key []byte) ([]byte, error) {
	return a.db.Get(key)
}

func (a *dbAdapter) Has(key []byte) (bool, error) {
	return a.db.Has(key)
}

func (a *dbAdapter) Set(key, value []byte) error {
	return a.db.SetSync(key, value)
}

func (a *dbAdapter) Delete(key []byte) error {
	return a.db.DeleteSync(key)
}

func (a *dbAdapter) Iterator(start, end []byte) (dbm.Iterator, error) {
	return a.db.Iterator(start, end)
}

func (a *dbAdapter) NewBatch() dbm.Batch {
	return a.db.NewBatch()
}

// NewMemKV returns an in-memory KV backend, used by tests and by any
// component that does not need durability across restarts.
func NewMemKV() KV {
	return NewKV(dbm.NewMemDB())
}
