package eval

import (
	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldmodel"
)

// maxSegmentRecursionDepth bounds segmentMatch-within-segmentMatch
// recursion; exceeding it is treated the same as a detected cycle.
const maxSegmentRecursionDepth = 20

// matchSegment evaluates whether a context is a member of the named
// segment. malformed is true if a cycle was detected or the recursion depth
// was exceeded, in which case the caller must treat the flag as malformed
// rather than trust the returned match.
func matchSegment(c ldcontext.Context, key string, resolver SegmentResolver, visited map[string]bool, depth int) (matched bool, malformed bool) {
	if depth >= maxSegmentRecursionDepth || visited[key] {
		return false, true
	}
	visited[key] = true

	seg, ok := resolver(key)
	if !ok {
		return false, false
	}

	kind := seg.UnboundedContextKind
	if kind == "" {
		kind = ldcontext.DefaultKind
	}
	contextKeyForKind := c.KeyFor(kind)

	if kind == ldcontext.DefaultKind {
		for _, excluded := range seg.Excluded {
			if excluded == contextKeyForKind && c.HasKind(kind) {
				return false, false
			}
		}
	}
	for _, ec := range seg.ExcludedContexts {
		ecKind := ec.ContextKind
		if ecKind == "" {
			ecKind = ldcontext.DefaultKind
		}
		k := c.KeyFor(ecKind)
		if !c.HasKind(ecKind) {
			continue
		}
		for _, v := range ec.Values {
			if v == k {
				return false, false
			}
		}
	}

	if kind == ldcontext.DefaultKind {
		for _, included := range seg.Included {
			if included == contextKeyForKind && c.HasKind(kind) {
				return true, false
			}
		}
	}
	for _, ic := range seg.IncludedContexts {
		icKind := ic.ContextKind
		if icKind == "" {
			icKind = ldcontext.DefaultKind
		}
		if !c.HasKind(icKind) {
			continue
		}
		k := c.KeyFor(icKind)
		for _, v := range ic.Values {
			if v == k {
				return true, false
			}
		}
	}

	for _, rule := range seg.Rules {
		m, bad := segmentRuleMatches(c, rule, seg, resolver, visited, depth)
		if bad {
			return false, true
		}
		if m {
			return true, false
		}
	}
	return false, false
}

func segmentRuleMatches(c ldcontext.Context, rule ldmodel.SegmentRule, seg *ldmodel.Segment, resolver SegmentResolver, visited map[string]bool, depth int) (matched bool, malformed bool) {
	for _, clause := range rule.Clauses {
		if clause.Op == ldmodel.OpSegmentMatch {
			m, bad := clauseMatchesNested(c, clause, resolver, visited, depth)
			if bad {
				return false, true
			}
			if !m {
				return false, false
			}
			continue
		}
		m, bad := clauseMatches(c, clause, resolver)
		if bad {
			return false, true
		}
		if !m {
			return false, false
		}
	}
	if rule.Weight == nil {
		return true, false
	}
	kind := rule.RolloutContextKind
	if kind == "" {
		kind = ldcontext.DefaultKind
	}
	bucketByName := rule.BucketBy
	if bucketByName == "" {
		bucketByName = "key"
	}
	bucketByRef := attrRefFor(bucketByName)
	bucketVal, status := bucket(c, kind, seg.Key, seg.Salt, nil, bucketByRef)
	if status != bucketOK {
		return false, false
	}
	return bucketVal < float64(*rule.Weight)/100000.0, false
}

// clauseMatchesNested recurses into segment matching while threading the
// same visited set and depth counter through, so a cycle anywhere in the
// chain is caught regardless of which rule introduced it.
func clauseMatchesNested(c ldcontext.Context, clause ldmodel.Clause, resolver SegmentResolver, visited map[string]bool, depth int) (bool, bool) {
	matched := false
	for _, v := range clause.Values {
		sv, ok := stringValue(v)
		if !ok {
			continue
		}
		m, bad := matchSegment(c, sv, resolver, visited, depth+1)
		if bad {
			return false, true
		}
		if m {
			matched = true
			break
		}
	}
	return applyNegate(clause.Negate, matched), false
}
