package webhook

import (
	"net/http"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/auth"
	"github.com/go-chi/chi/v5/middleware"
)

// EventBuilder provides a fluent API for constructing webhook events.
//
// Usage:
//
//	event := webhook.NewEventBuilder(r).
//		ForFlag(flagKey, env).
//		WithStates(beforeState, afterState).
//		WithChanges(changes).
//		Build()
//
//	dispatcher.Dispatch(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder creates a builder seeded with request metadata.
func NewEventBuilder(r *http.Request) *EventBuilder {
	metadata := Metadata{
		RequestID: middleware.GetReqID(r.Context()),
		IPAddress: ipFromRequest(r),
	}
	if role, ok := auth.GetRoleFromContext(r.Context()); ok {
		metadata.Role = string(role)
	}
	return &EventBuilder{event: Event{Timestamp: time.Now(), Metadata: metadata}}
}

// ForFlag sets the resource to a flag with the given key and environment.
func (b *EventBuilder) ForFlag(key, env string) *EventBuilder {
	b.event.Resource = Resource{Type: "flag", Key: key}
	b.event.Environment = env
	return b
}

// ForSegment sets the resource to a segment with the given key and environment.
func (b *EventBuilder) ForSegment(key, env string) *EventBuilder {
	b.event.Resource = Resource{Type: "segment", Key: key}
	b.event.Environment = env
	return b
}

// WithStates sets the before/after states and infers the event type:
// before=nil -> created, after=nil -> deleted, both set -> updated.
func (b *EventBuilder) WithStates(before, after map[string]any) *EventBuilder {
	b.event.Data.Before = before
	b.event.Data.After = after
	switch {
	case before == nil && after != nil:
		b.event.Type = eventTypeFor(b.event.Resource.Type, "created")
	case before != nil && after == nil:
		b.event.Type = eventTypeFor(b.event.Resource.Type, "deleted")
	case before != nil && after != nil:
		b.event.Type = eventTypeFor(b.event.Resource.Type, "updated")
	}
	return b
}

func eventTypeFor(resource, verb string) string {
	if resource == "" {
		resource = "flag"
	}
	return resource + "." + verb
}

// WithChanges sets the changes payload for the event.
func (b *EventBuilder) WithChanges(changes map[string]any) *EventBuilder {
	b.event.Data.Changes = changes
	return b
}

// Build returns the constructed Event.
func (b *EventBuilder) Build() Event {
	return b.event
}

func ipFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
