package ldmodel

// Kind identifies which namespace a stored item belongs to.
type Kind string

const (
	KindFlag    Kind = "flag"
	KindSegment Kind = "segment"
)

// Descriptor is a versioned wrapper around a stored item, or a tombstone if
// Item is nil. Tombstones are retained (not removed) so an out-of-order
// update carrying a lower version can be rejected by comparing against the
// tombstone's version rather than treating the key as absent.
type Descriptor struct {
	Version int
	Item    interface{}
}

// IsTombstone reports whether this descriptor represents a deletion.
func (d Descriptor) IsTombstone() bool { return d.Item == nil }

// NewTombstone builds a deleted-item descriptor at the given version.
func NewTombstone(version int) Descriptor {
	return Descriptor{Version: version, Item: nil}
}

// NewDescriptor wraps a live item at the given version.
func NewDescriptor(version int, item interface{}) Descriptor {
	return Descriptor{Version: version, Item: item}
}

// FlagItem returns the item as *Flag, or (nil, false) if it isn't one or is
// a tombstone.
func (d Descriptor) FlagItem() (*Flag, bool) {
	f, ok := d.Item.(*Flag)
	return f, ok
}

// SegmentItem returns the item as *Segment, or (nil, false) if it isn't one
// or is a tombstone.
func (d Descriptor) SegmentItem() (*Segment, bool) {
	s, ok := d.Item.(*Segment)
	return s, ok
}
