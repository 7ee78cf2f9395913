// Package datastore holds the in-memory flag/segment data store that
// receives updates from a data source and serves them to the evaluator.
package datastore

import (
	"sync"

	"github.com/flagshipsdk/flagship-go/ldmodel"
)

type key struct {
	kind ldmodel.Kind
	name string
}

// Store is a thread-safe map from (kind, key) to descriptor, guarded by a
// read/write mutex. Reads hold the read lock only while they look up or copy
// entries; they never hold the lock across caller-supplied work.
type Store struct {
	mu          sync.RWMutex
	items       map[key]ldmodel.Descriptor
	initialized bool
}

// New creates an empty, uninitialized store.
func New() *Store {
	return &Store{items: make(map[key]ldmodel.Descriptor)}
}

// Init atomically replaces all data with the given set, keyed by kind then
// item key. Marks the store initialized.
func (s *Store) Init(data map[ldmodel.Kind]map[string]ldmodel.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[key]ldmodel.Descriptor)
	for kind, byKey := range data {
		for k, d := range byKey {
			next[key{kind, k}] = d
		}
	}
	s.items = next
	s.initialized = true
}

// Get returns the descriptor for (kind, k), or (Descriptor{}, false) if
// nothing has ever been stored under that key.
func (s *Store) Get(kind ldmodel.Kind, k string) (ldmodel.Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.items[key{kind, k}]
	return d, ok
}

// All returns a snapshot of every descriptor of the given kind, including
// tombstones, keyed by item key.
func (s *Store) All(kind ldmodel.Kind) map[string]ldmodel.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ldmodel.Descriptor)
	for k, d := range s.items {
		if k.kind == kind {
			out[k.name] = d
		}
	}
	return out
}

// Upsert applies descriptor d under (kind, k) if and only if d.Version is
// greater than any existing descriptor's version (including a tombstone's),
// or no descriptor currently exists. Returns whether it was applied.
func (s *Store) Upsert(kind ldmodel.Kind, k string, d ldmodel.Descriptor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ik := key{kind, k}
	if existing, ok := s.items[ik]; ok && existing.Version >= d.Version {
		return false
	}
	s.items[ik] = d
	return true
}

// Initialized reports whether Init has ever been called.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// GetFlag is a typed convenience wrapper over Get for the flag kind.
func (s *Store) GetFlag(k string) (*ldmodel.Flag, bool) {
	d, ok := s.Get(ldmodel.KindFlag, k)
	if !ok || d.IsTombstone() {
		return nil, false
	}
	f, ok := d.FlagItem()
	return f, ok
}

// GetSegment is a typed convenience wrapper over Get for the segment kind.
func (s *Store) GetSegment(k string) (*ldmodel.Segment, bool) {
	d, ok := s.Get(ldmodel.KindSegment, k)
	if !ok || d.IsTombstone() {
		return nil, false
	}
	seg, ok := d.SegmentItem()
	return seg, ok
}

// AllFlags returns every non-tombstoned flag, keyed by key.
func (s *Store) AllFlags() map[string]*ldmodel.Flag {
	out := make(map[string]*ldmodel.Flag)
	for k, d := range s.All(ldmodel.KindFlag) {
		if d.IsTombstone() {
			continue
		}
		if f, ok := d.FlagItem(); ok {
			out[k] = f
		}
	}
	return out
}
