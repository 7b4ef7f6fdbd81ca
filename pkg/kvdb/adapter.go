// Copyright 2025 BPI Labs
//
// KV adapter wrapping cometbft-db's dbm.DB to implement the small
// Get/Set interface the ledger and receipt stores expect.

package kvdb

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
)

// KVAdapter wraps a CometBFT dbm.DB and exposes the Get/Set contract
// pkg/ledger.KV and pkg/receipt.KV expect. Keys are prefixed by
// namespace so the receipt WAL and the ledger block store can share
// one physical dbm.DB without colliding on key space; each gets its
// own KVAdapter via NewNamespacedKVAdapter.
type KVAdapter struct {
	db        dbm.DB
	namespace string
}

// NewKVAdapter wraps db with no namespace prefix: the caller's keys
// are used as-is. Use this only when db is dedicated to a single
// logical store.
func NewKVAdapter(db dbm.DB) *KVAdapter {
	return &KVAdapter{db: db}
}

// NewNamespacedKVAdapter wraps db, prefixing every key with
// "<namespace>/" so several independent logical stores can share one
// underlying db.
func NewNamespacedKVAdapter(db dbm.DB, namespace string) *KVAdapter {
	return &KVAdapter{db: db, namespace: namespace}
}

func (a *KVAdapter) prefixed(key []byte) []byte {
	if a.namespace == "" {
		return key
	}
	out := make([]byte, 0, len(a.namespace)+1+len(key))
	out = append(out, a.namespace...)
	out = append(out, '/')
	out = append(out, key...)
	return out
}

// Get implements ledger.KV.Get and receipt.KV.Get.
func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}

	v, err := a.db.Get(a.prefixed(key))
	if err != nil {
		return nil, fmt.Errorf("kvdb: get in namespace %q: %w", a.namespace, err)
	}
	// v may be nil if key not found – that's fine, callers treat nil as "not present".
	return v, nil
}

// Set implements ledger.KV.Set and receipt.KV.Set.
func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}

	// SetSync for durable writes at commit time.
	if err := a.db.SetSync(a.prefixed(key), value); err != nil {
		return fmt.Errorf("kvdb: set in namespace %q: %w", a.namespace, err)
	}
	return nil
}
