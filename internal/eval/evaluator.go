// Package eval implements flag evaluation: targeting rules, clauses,
// rollout bucketing, and segment matching, against the pure data types in
// ldmodel. Evaluate is pure relative to its inputs — it never mutates the
// store or context, and signals prerequisite evaluations to the caller via
// a sink instead of producing events itself.
package eval

import (
	"strings"

	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldmodel"
	"github.com/flagshipsdk/flagship-go/ldreason"
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

// FlagResolver looks up a flag by key, as stored by the data store.
type FlagResolver func(key string) (*ldmodel.Flag, bool)

// PrerequisiteEvent is emitted once per prerequisite flag evaluated while
// resolving another flag, so the caller can construct nested evaluation
// events without the evaluator knowing anything about event shapes.
type PrerequisiteEvent struct {
	Key    string
	Flag   *ldmodel.Flag
	Detail ldreason.Detail
}

// EventSink receives one PrerequisiteEvent per prerequisite evaluation.
type EventSink func(PrerequisiteEvent)

func malformed(defaultValue ldvalue.Value) ldreason.Detail {
	return ldreason.NewDetailWithoutVariation(defaultValue, ldreason.NewErrorReason(ldreason.ErrorKindMalformedFlag))
}

func offResult(flag *ldmodel.Flag, defaultValue ldvalue.Value, reason ldreason.Reason) ldreason.Detail {
	if flag.OffVariation == nil {
		return ldreason.NewDetailWithoutVariation(defaultValue, reason)
	}
	v, ok := flag.Variation(*flag.OffVariation)
	if !ok {
		return malformed(defaultValue)
	}
	return ldreason.NewDetail(v, *flag.OffVariation, reason)
}

func attrRefFor(name string) ldcontext.AttrRef {
	if strings.HasPrefix(name, "/") {
		return ldcontext.NewRef(name)
	}
	return ldcontext.NewLiteralRef(name)
}

// resolveVariationOrRollout picks a variation index from a fixed variation
// or by bucketing, per §4.3.1.
func resolveVariationOrRollout(vr ldmodel.VariationOrRollout, c ldcontext.Context, key, salt string) (index int, inExperiment bool, ok bool, isMalformed bool) {
	if vr.Variation != nil {
		return *vr.Variation, false, true, false
	}
	if vr.Rollout == nil || len(vr.Rollout.Variations) == 0 {
		return 0, false, false, true
	}
	r := vr.Rollout
	kind := r.ContextKind
	if kind == "" {
		kind = ldcontext.DefaultKind
	}
	bucketByName := r.BucketBy
	if bucketByName == "" {
		bucketByName = "key"
	}
	bucketVal, status := bucket(c, kind, key, salt, r.Seed, attrRefFor(bucketByName))
	switch status {
	case bucketKindAbsent:
		bucketVal = 0
	case bucketInvalidAttr:
		if r.IsExperiment() {
			return 0, false, false, true
		}
		last := r.Variations[len(r.Variations)-1]
		return last.Variation, false, true, false
	}
	wv, gotVariation := variationForBucket(r.Variations, bucketVal)
	if !gotVariation {
		return 0, false, false, true
	}
	inExp := r.IsExperiment() && !wv.Untracked && c.HasKind(kind)
	return wv.Variation, inExp, true, false
}

// Evaluate resolves a flag against a context, per §4.3's algorithm.
func Evaluate(flag *ldmodel.Flag, c ldcontext.Context, flags FlagResolver, segments SegmentResolver, defaultValue ldvalue.Value, sink EventSink) ldreason.Detail {
	if !c.Valid() {
		return ldreason.NewDetailWithoutVariation(defaultValue, ldreason.NewErrorReason(ldreason.ErrorKindUserNotSpecified))
	}
	if !flag.On {
		return offResult(flag, defaultValue, ldreason.NewOffReason())
	}

	for _, prereq := range flag.Prerequisites {
		prereqFlag, ok := flags(prereq.Key)
		if !ok || prereqFlag.Deleted {
			return offResult(flag, defaultValue, ldreason.NewPrerequisiteFailedReason(prereq.Key))
		}
		prereqDetail := Evaluate(prereqFlag, c, flags, segments, ldvalue.Null, sink)
		if sink != nil {
			sink(PrerequisiteEvent{Key: prereq.Key, Flag: prereqFlag, Detail: prereqDetail})
		}
		if !prereqFlag.On || !prereqDetail.HasVariation || prereqDetail.VariationIndex != prereq.Variation {
			return offResult(flag, defaultValue, ldreason.NewPrerequisiteFailedReason(prereq.Key))
		}
	}

	if detail, matched := matchTargets(flag, c, defaultValue); matched {
		return detail
	}

	for i, rule := range flag.Rules {
		ruleMatched, isMalformed := ruleMatches(c, rule.Clauses, segmentResolverFor(segments))
		if isMalformed {
			return malformed(defaultValue)
		}
		if !ruleMatched {
			continue
		}
		index, inExp, ok, bad := resolveVariationOrRollout(rule.VariationOrRollout, c, flag.Key, flag.Salt)
		if bad || !ok {
			return malformed(defaultValue)
		}
		v, ok := flag.Variation(index)
		if !ok {
			return malformed(defaultValue)
		}
		return ldreason.NewDetail(v, index, ldreason.NewRuleMatchReason(i, rule.ID, inExp))
	}

	index, inExp, ok, bad := resolveVariationOrRollout(flag.Fallthrough, c, flag.Key, flag.Salt)
	if bad || !ok {
		return malformed(defaultValue)
	}
	v, ok := flag.Variation(index)
	if !ok {
		return malformed(defaultValue)
	}
	return ldreason.NewDetail(v, index, ldreason.NewFallthroughReason(inExp))
}

func matchTargets(flag *ldmodel.Flag, c ldcontext.Context, defaultValue ldvalue.Value) (ldreason.Detail, bool) {
	allTargets := make([]ldmodel.Target, 0, len(flag.ContextTargets)+len(flag.Targets))
	allTargets = append(allTargets, flag.ContextTargets...)
	allTargets = append(allTargets, flag.Targets...)
	for _, t := range allTargets {
		kind := t.ContextKind
		if kind == "" {
			kind = ldcontext.DefaultKind
		}
		if !c.HasKind(kind) {
			continue
		}
		key := c.KeyFor(kind)
		for _, v := range t.Values {
			if v != key {
				continue
			}
			val, ok := flag.Variation(t.Variation)
			if !ok {
				return malformed(defaultValue), true
			}
			return ldreason.NewDetail(val, t.Variation, ldreason.NewTargetMatchReason()), true
		}
	}
	return ldreason.Detail{}, false
}

func segmentResolverFor(segments SegmentResolver) SegmentResolver {
	if segments == nil {
		return func(string) (*ldmodel.Segment, bool) { return nil, false }
	}
	return segments
}
