// Package ldcontext implements the multi-kind evaluation context model:
// a set of kind -> attributes entries, attribute-reference paths used by
// both evaluation and event context filtering, and canonical-key computation.
package ldcontext

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/flagshipsdk/flagship-go/ldvalue"
)

var kindPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

const (
	// DefaultKind is used for single-kind contexts that don't name a kind.
	DefaultKind = "user"
	// MultiKind is the reserved kind name for a multi-kind context; it is
	// never a valid single-kind name.
	MultiKind = "multi"
)

// Attributes holds one kind's worth of context data.
type Attributes struct {
	Key       string
	Name      string
	Anonymous bool
	Custom    map[string]ldvalue.Value
	Private   []AttrRef
}

// Context is either single-kind (one kind + one Attributes) or multi-kind
// (a map from kind to Attributes).
type Context struct {
	multi  bool
	single struct {
		kind string
		attr Attributes
	}
	kinds map[string]Attributes
	errs  []string
}

// New builds a single-kind context of DefaultKind with the given key.
func New(key string) Context {
	return NewWithKind(DefaultKind, key)
}

// NewWithKind builds a single-kind context.
func NewWithKind(kind, key string) Context {
	c := Context{}
	c.single.kind = kind
	c.single.attr = Attributes{Key: key}
	c.validateSingle(kind, key)
	return c
}

// NewMulti builds a multi-kind context out of single-kind contexts. Each
// input must itself be a valid single-kind context; errors accumulate.
func NewMulti(contexts ...Context) Context {
	c := Context{multi: true, kinds: make(map[string]Attributes, len(contexts))}
	if len(contexts) == 0 {
		c.errs = append(c.errs, "multi-kind context must have at least one kind")
		return c
	}
	for _, sub := range contexts {
		if sub.multi {
			c.errs = append(c.errs, "cannot nest a multi-kind context inside another")
			continue
		}
		if len(sub.errs) > 0 {
			c.errs = append(c.errs, sub.errs...)
			continue
		}
		if _, exists := c.kinds[sub.single.kind]; exists {
			c.errs = append(c.errs, "duplicate context kind: "+sub.single.kind)
			continue
		}
		c.kinds[sub.single.kind] = sub.single.attr
	}
	return c
}

func (c *Context) validateSingle(kind, key string) {
	if kind == "" {
		kind = DefaultKind
		c.single.kind = kind
	}
	if !kindPattern.MatchString(kind) {
		c.errs = append(c.errs, "context kind \""+kind+"\" contains disallowed characters")
	}
	if kind == MultiKind {
		c.errs = append(c.errs, "context kind must not be \"multi\"")
	}
	if kind == "kind" {
		c.errs = append(c.errs, "context kind must not be \"kind\"")
	}
	if key == "" {
		c.errs = append(c.errs, "context key must not be empty")
	}
}

// IsMulti reports whether this is a multi-kind context.
func (c Context) IsMulti() bool { return c.multi }

// Valid reports whether the context has no accumulated errors and at least
// one kind.
func (c Context) Valid() bool {
	return len(c.errs) == 0
}

// Errors returns the accumulated build errors as one string, or "" if valid.
func (c Context) Errors() string {
	return strings.Join(c.errs, "; ")
}

// Kinds returns all kind names present, sorted.
func (c Context) Kinds() []string {
	if !c.multi {
		if c.single.kind == "" {
			return nil
		}
		return []string{c.single.kind}
	}
	kinds := make([]string, 0, len(c.kinds))
	for k := range c.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// AttributesFor returns the Attributes for the given kind, or (Attributes{}, false)
// if the context has no such kind.
func (c Context) AttributesFor(kind string) (Attributes, bool) {
	if !c.multi {
		if c.single.kind == kind {
			return c.single.attr, true
		}
		return Attributes{}, false
	}
	a, ok := c.kinds[kind]
	return a, ok
}

// KeyFor returns the key for the given kind, defaulting to "" if absent.
func (c Context) KeyFor(kind string) string {
	a, ok := c.AttributesFor(kind)
	if !ok {
		return ""
	}
	return a.Key
}

// HasKind reports whether the context includes the given kind, accounting
// for single-kind contexts matching only their own kind and multi-kind
// contexts matching any of their member kinds. Used by clause evaluation of
// the synthetic "kind" attribute.
func (c Context) HasKind(kind string) bool {
	_, ok := c.AttributesFor(kind)
	return ok
}

// CanonicalKey computes the deterministic identity key described in spec.md
// §3.3: "key" for a single user-kind context, "{kind}:{key}" (percent-encoded)
// for any other single kind, and kind:key pairs sorted by kind and joined
// with ":" for multi-kind contexts.
func (c Context) CanonicalKey() string {
	if !c.multi {
		return singleCanonicalKey(c.single.kind, c.single.attr.Key)
	}
	kinds := c.Kinds()
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k + ":" + percentEncodeKey(c.kinds[k].Key)
	}
	return strings.Join(parts, ":")
}

func singleCanonicalKey(kind, key string) string {
	if kind == "" || kind == DefaultKind {
		return key
	}
	return kind + ":" + percentEncodeKey(key)
}

func percentEncodeKey(key string) string {
	key = strings.ReplaceAll(key, "%", "%25")
	key = strings.ReplaceAll(key, ":", "%3A")
	return key
}

// PercentEncodeURLComponent is exported for callers (e.g. polling GET requests)
// that need the full URL-safe encoding of a canonical key, not just the ':' / '%'
// escaping used for identity comparisons.
func PercentEncodeURLComponent(s string) string {
	return url.QueryEscape(s)
}

// GetValue resolves an attribute reference against a single kind's Attributes,
// returning the value and whether it was found. Supports the built-in
// attributes (key, name, anonymous) plus arbitrary nested custom attribute
// paths.
func (a Attributes) GetValue(ref AttrRef) (ldvalue.Value, bool) {
	if !ref.IsValid() || ref.Depth() == 0 {
		return ldvalue.Null, false
	}
	switch ref.Component(0) {
	case "key":
		if ref.Depth() == 1 {
			return ldvalue.String(a.Key), true
		}
		return ldvalue.Null, false
	case "name":
		if ref.Depth() == 1 {
			if a.Name == "" {
				return ldvalue.Null, false
			}
			return ldvalue.String(a.Name), true
		}
		return ldvalue.Null, false
	case "anonymous":
		if ref.Depth() == 1 {
			return ldvalue.Bool(a.Anonymous), true
		}
		return ldvalue.Null, false
	}
	if a.Custom == nil {
		return ldvalue.Null, false
	}
	v, ok := a.Custom[ref.Component(0)]
	if !ok {
		return ldvalue.Null, false
	}
	for i := 1; i < ref.Depth(); i++ {
		obj := v.AsObject()
		if obj == nil {
			return ldvalue.Null, false
		}
		v, ok = obj[ref.Component(i)]
		if !ok {
			return ldvalue.Null, false
		}
	}
	return v, true
}

// IsPrivateLocally reports whether a local (context-level) private-attribute
// reference list marks ref as private. Built-ins that CanBePrivate()==false
// are never private regardless of configuration.
func (a Attributes) IsPrivateLocally(ref AttrRef) bool {
	if !ref.CanBePrivate() {
		return false
	}
	for _, p := range a.Private {
		if p.Equal(ref) {
			return true
		}
	}
	return false
}
