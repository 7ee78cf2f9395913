package ldcontext

import "github.com/flagshipsdk/flagship-go/ldvalue"

// Builder incrementally constructs a single-kind Context.
type Builder struct {
	kind string
	key  string
	name string
	anon bool
	cust map[string]ldvalue.Value
	priv []AttrRef
}

// NewBuilder starts building a context of the given kind.
func NewBuilder(kind, key string) *Builder {
	return &Builder{kind: kind, key: key}
}

// Name sets the optional display name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Anonymous marks the context as anonymous.
func (b *Builder) Anonymous(anon bool) *Builder {
	b.anon = anon
	return b
}

// Set assigns a custom attribute.
func (b *Builder) Set(attr string, v ldvalue.Value) *Builder {
	if b.cust == nil {
		b.cust = make(map[string]ldvalue.Value)
	}
	b.cust[attr] = v
	return b
}

// Private marks one or more attribute references as private for this kind.
func (b *Builder) Private(refs ...AttrRef) *Builder {
	b.priv = append(b.priv, refs...)
	return b
}

// Build produces the Context, accumulating any validation errors.
func (b *Builder) Build() Context {
	c := NewWithKind(b.kind, b.key)
	c.single.attr.Name = b.name
	c.single.attr.Anonymous = b.anon
	c.single.attr.Custom = b.cust
	c.single.attr.Private = b.priv
	return c
}
