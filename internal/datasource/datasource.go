// Package datasource synchronizes a datastore.Store from a remote source of
// truth, either by streaming (SSE put/patch/delete events) or by polling
// (periodic GET/REPORT). Transport (the actual HTTP/SSE connection) is an
// abstract collaborator supplied by the caller; this package owns only the
// event interpretation and state-machine bookkeeping.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/datastore"
	"github.com/flagshipsdk/flagship-go/interfaces"
	"github.com/flagshipsdk/flagship-go/ldmodel"
)

// StreamEvent is one SSE event as delivered by the streaming transport.
type StreamEvent struct {
	Name string
	Data []byte
}

// StreamClient abstracts one established SSE connection; the HTTP request
// behind it is the implementation's responsibility. It does not reconnect:
// when the connection ends or reports an error, StreamingDataSource closes
// it and, unless the error is permanent, obtains a new one from its
// Connector after a backoff delay.
type StreamClient interface {
	Events() <-chan StreamEvent
	Errors() <-chan StreamError
	Close()
}

// StreamError reports a transport failure, classified as permanent (the
// data source goes off and stops) or transient (the data source drops the
// connection and reconnects with backoff).
type StreamError struct {
	Permanent  bool
	StatusCode int
	Err        error
}

// Requester abstracts a single polling request/response cycle.
type Requester interface {
	// Poll performs one GET or REPORT request. statusCode 304 means "no
	// change"; body is nil in that case. A permanent error (401/403/410)
	// is reported via PermanentErr.
	Poll(ctx context.Context) (statusCode int, body []byte, permanentErr error, err error)
}

type putPayload struct {
	Path string `json:"path"`
	Data struct {
		Flags    map[string]*ldmodel.Flag    `json:"flags"`
		Segments map[string]*ldmodel.Segment `json:"segments"`
	} `json:"data"`
}

type patchPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

type deletePayload struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

func kindAndKeyFromPath(path string) (ldmodel.Kind, string, error) {
	switch {
	case len(path) > len("/flags/") && path[:len("/flags/")] == "/flags/":
		return ldmodel.KindFlag, path[len("/flags/"):], nil
	case len(path) > len("/segments/") && path[:len("/segments/")] == "/segments/":
		return ldmodel.KindSegment, path[len("/segments/"):], nil
	default:
		return "", "", fmt.Errorf("unrecognized data source path %q", path)
	}
}

// applyPut replaces all store data from a put event's payload.
func applyPut(store *datastore.Store, raw []byte) error {
	var p putPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("malformed put payload: %w", err)
	}
	data := make(map[ldmodel.Kind]map[string]ldmodel.Descriptor)
	flags := make(map[string]ldmodel.Descriptor, len(p.Data.Flags))
	for k, f := range p.Data.Flags {
		flags[k] = ldmodel.NewDescriptor(f.Version, f)
	}
	segments := make(map[string]ldmodel.Descriptor, len(p.Data.Segments))
	for k, s := range p.Data.Segments {
		segments[k] = ldmodel.NewDescriptor(s.Version, s)
	}
	data[ldmodel.KindFlag] = flags
	data[ldmodel.KindSegment] = segments
	store.Init(data)
	return nil
}

// applyPatch upserts a single item from a patch event's payload.
func applyPatch(store *datastore.Store, raw []byte) error {
	var p patchPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("malformed patch payload: %w", err)
	}
	kind, key, err := kindAndKeyFromPath(p.Path)
	if err != nil {
		return err
	}
	switch kind {
	case ldmodel.KindFlag:
		var f ldmodel.Flag
		if err := json.Unmarshal(p.Data, &f); err != nil {
			return fmt.Errorf("malformed flag patch: %w", err)
		}
		store.Upsert(kind, key, ldmodel.NewDescriptor(f.Version, &f))
	case ldmodel.KindSegment:
		var s ldmodel.Segment
		if err := json.Unmarshal(p.Data, &s); err != nil {
			return fmt.Errorf("malformed segment patch: %w", err)
		}
		store.Upsert(kind, key, ldmodel.NewDescriptor(s.Version, &s))
	}
	return nil
}

// applyDelete tombstones an item from a delete event's payload.
func applyDelete(store *datastore.Store, raw []byte) error {
	var p deletePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("malformed delete payload: %w", err)
	}
	kind, key, err := kindAndKeyFromPath(p.Path)
	if err != nil {
		return err
	}
	store.Upsert(kind, key, ldmodel.NewTombstone(p.Version))
	return nil
}

// Clock abstracts time.Now for deterministic tests of the state machine.
type Clock func() time.Time

var systemClock Clock = time.Now
