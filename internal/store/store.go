// Package store is the in-memory control plane behind the dev server: it
// holds the current flags and segments, assigns them monotonic versions on
// each mutation, and notifies subscribers so the streaming and polling
// endpoints can relay put/patch/delete events to connected SDKs.
//
// It intentionally does not persist anything. A durable backing store
// (Postgres, Redis, ...) is the kind of persistent-store plugin the data
// model leaves as an interface without shipping an implementation; the dev
// server exists to demonstrate the wire protocol, not to be a production
// flag-management backend.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/flagshipsdk/flagship-go/ldmodel"
)

// ChangeEvent is one put/patch/delete notification, already encoded in the
// wire shape the streaming handler forwards verbatim as an SSE event.
type ChangeEvent struct {
	Name    string // "patch" or "delete"
	Payload []byte
}

type subCh = chan ChangeEvent

// Store holds the current set of flags and segments plus their versions. It
// is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	flags    map[string]*ldmodel.Flag
	segments map[string]*ldmodel.Segment
	etag     string

	subMu sync.Mutex
	subs  map[subCh]struct{}
}

// New returns an empty Store.
func New() *Store {
	s := &Store{
		flags:    make(map[string]*ldmodel.Flag),
		segments: make(map[string]*ldmodel.Segment),
		subs:     make(map[subCh]struct{}),
	}
	s.etag = s.computeETagLocked()
	return s
}

// Subscribe registers a listener for change events and returns its channel
// along with an unsubscribe function.
func (s *Store) Subscribe() (subCh, func()) {
	ch := make(subCh, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	unsub := func() {
		s.subMu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, unsub
}

func (s *Store) publish(ev ChangeEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than block the writer
		}
	}
}

// ETag reports a content hash of the current flags and segments, suitable
// for conditional polling via If-None-Match.
func (s *Store) ETag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.etag
}

// AllFlags returns a snapshot copy of every flag keyed by its key.
func (s *Store) AllFlags() map[string]*ldmodel.Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*ldmodel.Flag, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out
}

// AllSegments returns a snapshot copy of every segment keyed by its key.
func (s *Store) AllSegments() map[string]*ldmodel.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*ldmodel.Segment, len(s.segments))
	for k, v := range s.segments {
		out[k] = v
	}
	return out
}

// GetFlag returns a single flag by key.
func (s *Store) GetFlag(key string) (*ldmodel.Flag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flags[key]
	return f, ok
}

// GetSegment returns a single segment by key.
func (s *Store) GetSegment(key string) (*ldmodel.Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segments[key]
	return seg, ok
}

// PutFlag creates or replaces a flag via mutate (which receives the
// existing flag, or nil on create), assigns it the next version, and
// publishes a patch event. It returns the previous and the stored flag.
func (s *Store) PutFlag(key string, mutate func(existing *ldmodel.Flag) *ldmodel.Flag) (before, after *ldmodel.Flag) {
	s.mu.Lock()
	before = s.flags[key]
	version := 1
	if before != nil {
		version = before.Version + 1
	}
	f := mutate(before)
	f.Key = key
	f.Version = version
	s.flags[key] = f
	s.etag = s.computeETagLocked()
	s.mu.Unlock()

	s.publishPatch(ldmodel.KindFlag, key, f)
	return before, f
}

// DeleteFlag tombstones a flag by removing it from the live set and
// publishing a delete event carrying the next version.
func (s *Store) DeleteFlag(key string) (before *ldmodel.Flag, existed bool) {
	s.mu.Lock()
	before, existed = s.flags[key]
	version := 1
	if existed {
		version = before.Version + 1
	}
	delete(s.flags, key)
	s.etag = s.computeETagLocked()
	s.mu.Unlock()

	if existed {
		s.publishDelete(ldmodel.KindFlag, key, version)
	}
	return before, existed
}

// PutSegment mirrors PutFlag for segments.
func (s *Store) PutSegment(key string, mutate func(existing *ldmodel.Segment) *ldmodel.Segment) (before, after *ldmodel.Segment) {
	s.mu.Lock()
	before = s.segments[key]
	version := 1
	if before != nil {
		version = before.Version + 1
	}
	seg := mutate(before)
	seg.Key = key
	seg.Version = version
	s.segments[key] = seg
	s.etag = s.computeETagLocked()
	s.mu.Unlock()

	s.publishPatch(ldmodel.KindSegment, key, seg)
	return before, seg
}

// DeleteSegment mirrors DeleteFlag for segments.
func (s *Store) DeleteSegment(key string) (before *ldmodel.Segment, existed bool) {
	s.mu.Lock()
	before, existed = s.segments[key]
	version := 1
	if existed {
		version = before.Version + 1
	}
	delete(s.segments, key)
	s.etag = s.computeETagLocked()
	s.mu.Unlock()

	if existed {
		s.publishDelete(ldmodel.KindSegment, key, version)
	}
	return before, existed
}

func (s *Store) publishPatch(kind ldmodel.Kind, key string, item interface{}) {
	data, err := json.Marshal(item)
	if err != nil {
		return
	}
	payload, err := json.Marshal(patchPayload{Path: pathFor(kind, key), Data: data})
	if err != nil {
		return
	}
	s.publish(ChangeEvent{Name: "patch", Payload: payload})
}

func (s *Store) publishDelete(kind ldmodel.Kind, key string, version int) {
	payload, err := json.Marshal(deletePayload{Path: pathFor(kind, key), Version: version})
	if err != nil {
		return
	}
	s.publish(ChangeEvent{Name: "delete", Payload: payload})
}

func pathFor(kind ldmodel.Kind, key string) string {
	if kind == ldmodel.KindSegment {
		return "/segments/" + key
	}
	return "/flags/" + key
}

type patchPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

type deletePayload struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

type putData struct {
	Flags    map[string]*ldmodel.Flag    `json:"flags"`
	Segments map[string]*ldmodel.Segment `json:"segments"`
}

type putPayload struct {
	Path string  `json:"path"`
	Data putData `json:"data"`
}

// FullPutPayload returns the complete flags+segments data set encoded in
// the wire shape the streaming "put" event and the polling response body
// both use.
func (s *Store) FullPutPayload() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(putPayload{
		Path: "/",
		Data: putData{Flags: s.flags, Segments: s.segments},
	})
}

func (s *Store) computeETagLocked() string {
	data, _ := json.Marshal(putData{Flags: s.flags, Segments: s.segments})
	sum := sha256.Sum256(data)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}
