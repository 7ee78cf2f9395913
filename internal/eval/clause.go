package eval

import (
	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldmodel"
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

// SegmentResolver looks up a segment by key, as stored by the data store.
type SegmentResolver func(key string) (*ldmodel.Segment, bool)

// resolveAttribute produces the one-or-many values a clause compares
// against: the synthetic "kind" attribute resolves against the context's
// kind set, everything else resolves through the chosen kind's attributes,
// with arrays flattened into individual candidates.
func resolveAttribute(c ldcontext.Context, contextKind, attribute string) ([]ldvalue.Value, bool) {
	kind := contextKind
	if kind == "" {
		kind = ldcontext.DefaultKind
	}
	if attribute == "kind" {
		if c.IsMulti() {
			values := make([]ldvalue.Value, 0, len(c.Kinds()))
			for _, k := range c.Kinds() {
				values = append(values, ldvalue.String(k))
			}
			return values, true
		}
		return []ldvalue.Value{ldvalue.String(kind)}, true
	}
	attrs, ok := c.AttributesFor(kind)
	if !ok {
		return nil, false
	}
	v, found := attrs.GetValue(attrRefFor(attribute))
	if !found {
		return nil, false
	}
	if v.Type() == ldvalue.ArrayType {
		return v.AsArray(), true
	}
	return []ldvalue.Value{v}, true
}

// clauseMatches evaluates one clause against a context, handling negation,
// array-valued attributes, and the segmentMatch operator (which recurses
// into segment matching). malformed is true if segment matching hit a cycle
// or exceeded the maximum recursion depth.
func clauseMatches(c ldcontext.Context, clause ldmodel.Clause, resolver SegmentResolver) (matched bool, malformed bool) {
	if clause.Op == ldmodel.OpSegmentMatch {
		for _, v := range clause.Values {
			if v.Type() != ldvalue.StringType {
				continue
			}
			m, bad := matchSegment(c, v.StringValue(), resolver, make(map[string]bool), 0)
			if bad {
				return false, true
			}
			if m {
				return applyNegate(clause.Negate, true), false
			}
		}
		return applyNegate(clause.Negate, false), false
	}

	fn, ok := operatorFns[clause.Op]
	if !ok {
		return applyNegate(clause.Negate, false), false
	}
	values, found := resolveAttribute(c, clause.ContextKind, clause.Attribute)
	if !found {
		return applyNegate(clause.Negate, false), false
	}
	for _, av := range values {
		for _, cv := range clause.Values {
			if fn(av, cv) {
				return applyNegate(clause.Negate, true), false
			}
		}
	}
	return applyNegate(clause.Negate, false), false
}

func applyNegate(negate, result bool) bool {
	if negate {
		return !result
	}
	return result
}

// ruleMatches reports whether every clause in a rule's clause list matches.
func ruleMatches(c ldcontext.Context, clauses []ldmodel.Clause, resolver SegmentResolver) (matched bool, malformed bool) {
	for _, clause := range clauses {
		m, bad := clauseMatches(c, clause, resolver)
		if bad {
			return false, true
		}
		if !m {
			return false, false
		}
	}
	return true, false
}
