// Package persistence declares the plugin contract a caller can implement to
// back the data store with durable storage (e.g. Redis, a filesystem cache).
// No concrete implementation ships here; wiring a store is the embedding
// application's responsibility.
package persistence

import "github.com/flagshipsdk/flagship-go/ldmodel"

// SerializedItem is a persisted item in its wire-ready form: a version and
// the item's serialized bytes, or nil bytes for a tombstone.
type SerializedItem struct {
	Version int
	Data    []byte
}

// Store is implemented by a durable backing store for flag/segment data. All
// methods may be called concurrently.
type Store interface {
	// Init atomically replaces all persisted data for the given kind.
	Init(kind ldmodel.Kind, items map[string]SerializedItem) error
	// Get returns the persisted item for (kind, key), or ok=false if absent.
	Get(kind ldmodel.Kind, key string) (item SerializedItem, ok bool, err error)
	// All returns every persisted item of the given kind, keyed by item key.
	All(kind ldmodel.Kind) (map[string]SerializedItem, error)
	// Upsert applies item under (kind, key) if its version is newer than
	// what's stored, returning whether it was applied.
	Upsert(kind ldmodel.Kind, key string, item SerializedItem) (applied bool, err error)
	// Initialized reports whether Init has ever succeeded.
	Initialized() (bool, error)
	// Close releases any resources held by the store.
	Close() error
}
