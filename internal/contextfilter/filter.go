// Package contextfilter redacts private attributes from a context before
// it's embedded in an event, producing a plain JSON-ready value plus a
// `_meta.redactedAttributes` list.
package contextfilter

import (
	"strings"

	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

// Config controls which attributes get redacted.
type Config struct {
	AllAttributesPrivate    bool
	GlobalPrivateAttributes []ldcontext.AttrRef
}

// Filter produces the event-ready representation of a context: a map from
// kind to its filtered attributes object (or a flat object for a
// single-kind context), with each kind's `_meta.redactedAttributes` listing
// what was removed.
func Filter(c ldcontext.Context, cfg Config) map[string]interface{} {
	if !c.IsMulti() {
		kind := c.Kinds()
		k := ldcontext.DefaultKind
		if len(kind) > 0 {
			k = kind[0]
		}
		attrs, _ := c.AttributesFor(k)
		out := filterKind(attrs, cfg)
		out["kind"] = k
		return out
	}
	result := make(map[string]interface{})
	result["kind"] = ldcontext.MultiKind
	for _, k := range c.Kinds() {
		attrs, _ := c.AttributesFor(k)
		result[k] = filterKind(attrs, cfg)
	}
	return result
}

// filterKind redacts one kind's attributes via a depth-first walk that
// visits object keys in sorted order, returning a plain map plus a redactedAttributes list under
// _meta. Arrays are treated atomically: a path into an array element can't
// be individually redacted, so the walk never descends into one.
func filterKind(attrs ldcontext.Attributes, cfg Config) map[string]interface{} {
	out := make(map[string]interface{})
	out["key"] = attrs.Key
	out["anonymous"] = attrs.Anonymous

	var redacted []string
	if attrs.Name != "" {
		ref := ldcontext.NewLiteralRef("name")
		red, value := walk(ref, ldvalue.String(attrs.Name), cfg, attrs, &redacted)
		if !red {
			out["name"] = value
		}
	}
	if attrs.Custom != nil {
		keys := ldvalue.SortedObjectKeys(attrs.Custom)
		for _, name := range keys {
			v := attrs.Custom[name]
			ref := ldcontext.NewLiteralRef(name)
			red, value := walk(ref, v, cfg, attrs, &redacted)
			if red {
				continue
			}
			out[name] = value
		}
	}
	meta := map[string]interface{}{}
	if len(redacted) > 0 {
		meta["redactedAttributes"] = redacted
	}
	out["_meta"] = meta
	return out
}

// walk decides whether ref is redacted; if so, its redaction name is
// appended to redacted. Otherwise, if the value is an object, it recurses
// into nested fields so each leaf path can be independently redacted and
// reported.
func walk(ref ldcontext.AttrRef, v ldvalue.Value, cfg Config, attrs ldcontext.Attributes, redacted *[]string) (isRed bool, value interface{}) {
	if isRedacted(ref, cfg, attrs) {
		*redacted = append(*redacted, ref.RedactionName())
		return true, nil
	}
	if v.Type() != ldvalue.ObjectType {
		return false, v.ToAny()
	}
	obj := v.AsObject()
	keys := ldvalue.SortedObjectKeys(obj)
	out := make(map[string]interface{}, len(obj))
	for _, k := range keys {
		cref := childRef(ref, k)
		red, child := walk(cref, obj[k], cfg, attrs, redacted)
		if red {
			continue
		}
		out[k] = child
	}
	return false, out
}

// childRef extends a parent reference with one more path component, built
// from the parent's own components rather than its original input string so
// a literal top-level reference (no leading "/") still nests correctly.
func childRef(parent ldcontext.AttrRef, name string) ldcontext.AttrRef {
	parts := make([]string, 0, parent.Depth()+1)
	for i := 0; i < parent.Depth(); i++ {
		parts = append(parts, escapeComponent(parent.Component(i)))
	}
	parts = append(parts, escapeComponent(name))
	return ldcontext.NewRef("/" + strings.Join(parts, "/"))
}

func escapeComponent(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

func isRedacted(ref ldcontext.AttrRef, cfg Config, attrs ldcontext.Attributes) bool {
	if !ref.CanBePrivate() {
		return false
	}
	if cfg.AllAttributesPrivate {
		return true
	}
	for _, g := range cfg.GlobalPrivateAttributes {
		if g.Equal(ref) {
			return true
		}
	}
	return attrs.IsPrivateLocally(ref)
}
