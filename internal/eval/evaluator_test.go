package eval

import (
	"testing"

	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldmodel"
	"github.com/flagshipsdk/flagship-go/ldreason"
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

func noFlags(string) (*ldmodel.Flag, bool)       { return nil, false }
func noSegments(string) (*ldmodel.Segment, bool) { return nil, false }

func TestOffFlagReturnsOffVariation(t *testing.T) {
	off := 0
	flag := &ldmodel.Flag{
		Key:          "flag",
		On:           false,
		OffVariation: &off,
		Variations:   []ldvalue.Value{ldvalue.Bool(false), ldvalue.Bool(true)},
	}
	d := Evaluate(flag, ldcontext.New("u1"), noFlags, noSegments, ldvalue.Bool(false), nil)
	if d.Reason.Kind != ldreason.KindOff {
		t.Fatalf("expected off reason, got %v", d.Reason.Kind)
	}
	if d.Value.BoolValue() != false {
		t.Fatalf("expected off variation value")
	}
}

func TestInvalidContextReturnsDefault(t *testing.T) {
	flag := &ldmodel.Flag{Key: "flag", On: true, Variations: []ldvalue.Value{ldvalue.Bool(true)}}
	invalid := ldcontext.New("")
	d := Evaluate(flag, invalid, noFlags, noSegments, ldvalue.String("fallback"), nil)
	if d.Reason.Kind != ldreason.KindError || d.Reason.ErrorKind != ldreason.ErrorKindUserNotSpecified {
		t.Fatalf("expected userNotSpecified error, got %+v", d.Reason)
	}
	if !d.IsDefaultValue() {
		t.Fatalf("expected default value to be returned")
	}
}

func TestRuleMatchWithInOperator(t *testing.T) {
	variation := 1
	flag := &ldmodel.Flag{
		Key:        "flag",
		On:         true,
		Variations: []ldvalue.Value{ldvalue.String("default"), ldvalue.String("treatment")},
		Rules: []ldmodel.Rule{
			{
				ID: "rule-0",
				Clauses: []ldmodel.Clause{
					{Attribute: "email", Op: ldmodel.OpIn, Values: []ldvalue.Value{ldvalue.String("a@x")}},
				},
				VariationOrRollout: ldmodel.VariationOrRollout{Variation: &variation},
			},
		},
		Fallthrough: ldmodel.VariationOrRollout{Variation: intPtr(0)},
	}
	ctx := ldcontext.NewBuilder("user", "u1").Set("email", ldvalue.String("a@x")).Build()
	d := Evaluate(flag, ctx, noFlags, noSegments, ldvalue.Null, nil)
	if d.Reason.Kind != ldreason.KindRuleMatch || d.Reason.RuleIndex != 0 || d.Reason.RuleID != "rule-0" {
		t.Fatalf("expected rule match at index 0, got %+v", d.Reason)
	}
	if d.Value.StringValue() != "treatment" {
		t.Fatalf("expected treatment variation, got %v", d.Value)
	}
}

func intPtr(i int) *int { return &i }

func TestSegmentRecursionCycleIsMalformed(t *testing.T) {
	segA := &ldmodel.Segment{Key: "a", Rules: []ldmodel.SegmentRule{
		{Clauses: []ldmodel.Clause{{Op: ldmodel.OpSegmentMatch, Values: []ldvalue.Value{ldvalue.String("b")}}}},
	}}
	segB := &ldmodel.Segment{Key: "b", Rules: []ldmodel.SegmentRule{
		{Clauses: []ldmodel.Clause{{Op: ldmodel.OpSegmentMatch, Values: []ldvalue.Value{ldvalue.String("a")}}}},
	}}
	resolver := func(key string) (*ldmodel.Segment, bool) {
		switch key {
		case "a":
			return segA, true
		case "b":
			return segB, true
		}
		return nil, false
	}
	variation := 0
	flag := &ldmodel.Flag{
		Key:        "flag",
		On:         true,
		Variations: []ldvalue.Value{ldvalue.Bool(true)},
		Rules: []ldmodel.Rule{
			{
				Clauses:            []ldmodel.Clause{{Op: ldmodel.OpSegmentMatch, Values: []ldvalue.Value{ldvalue.String("a")}}},
				VariationOrRollout: ldmodel.VariationOrRollout{Variation: &variation},
			},
		},
		Fallthrough: ldmodel.VariationOrRollout{Variation: &variation},
	}
	d := Evaluate(flag, ldcontext.New("u1"), noFlags, resolver, ldvalue.Null, nil)
	if d.Reason.Kind != ldreason.KindError || d.Reason.ErrorKind != ldreason.ErrorKindMalformedFlag {
		t.Fatalf("expected malformedFlag for segment cycle, got %+v", d.Reason)
	}
}

func TestPrerequisiteFailureForcesOff(t *testing.T) {
	prereqOn := 0
	prereq := &ldmodel.Flag{
		Key: "prereq", On: true,
		Variations:  []ldvalue.Value{ldvalue.Bool(false), ldvalue.Bool(true)},
		Fallthrough: ldmodel.VariationOrRollout{Variation: &prereqOn},
	}
	resolver := func(key string) (*ldmodel.Flag, bool) {
		if key == "prereq" {
			return prereq, true
		}
		return nil, false
	}
	variation := 1
	flag := &ldmodel.Flag{
		Key: "flag", On: true,
		Variations:    []ldvalue.Value{ldvalue.Bool(false), ldvalue.Bool(true)},
		Prerequisites: []ldmodel.Prerequisite{{Key: "prereq", Variation: 1}},
		Fallthrough:   ldmodel.VariationOrRollout{Variation: &variation},
	}
	var events []PrerequisiteEvent
	d := Evaluate(flag, ldcontext.New("u1"), resolver, noSegments, ldvalue.Bool(false), func(e PrerequisiteEvent) {
		events = append(events, e)
	})
	if d.Reason.Kind != ldreason.KindPrerequisiteFailed || d.Reason.PrerequisiteKey != "prereq" {
		t.Fatalf("expected prerequisiteFailed reason, got %+v", d.Reason)
	}
	if len(events) != 1 || events[0].Key != "prereq" {
		t.Fatalf("expected one prerequisite event, got %+v", events)
	}
}

func TestRolloutBucketingIsDeterministic(t *testing.T) {
	rollout := &ldmodel.Rollout{
		Kind: ldmodel.RolloutKindRollout,
		Variations: []ldmodel.WeightedVariation{
			{Variation: 0, Weight: 50000},
			{Variation: 1, Weight: 50000},
		},
	}
	flag := &ldmodel.Flag{
		Key: "flag", On: true, Salt: "salt1",
		Variations:  []ldvalue.Value{ldvalue.String("a"), ldvalue.String("b")},
		Fallthrough: ldmodel.VariationOrRollout{Rollout: rollout},
	}
	ctx := ldcontext.New("user-for-bucketing")
	d1 := Evaluate(flag, ctx, noFlags, noSegments, ldvalue.Null, nil)
	d2 := Evaluate(flag, ctx, noFlags, noSegments, ldvalue.Null, nil)
	if d1.VariationIndex != d2.VariationIndex {
		t.Fatalf("expected bucketing to be deterministic for the same context")
	}
	if d1.Reason.Kind != ldreason.KindFallthrough {
		t.Fatalf("expected fallthrough reason, got %+v", d1.Reason)
	}
}
