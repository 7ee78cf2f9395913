package ldmodel

import (
	"encoding/json"
	"testing"

	"github.com/flagshipsdk/flagship-go/ldvalue"
)

func TestFlagVariationBounds(t *testing.T) {
	f := Flag{Variations: []ldvalue.Value{ldvalue.Bool(true), ldvalue.Bool(false)}}
	if v, ok := f.Variation(0); !ok || !v.BoolValue() {
		t.Fatalf("expected variation 0 to be true")
	}
	if _, ok := f.Variation(2); ok {
		t.Fatalf("expected out-of-range variation to report false")
	}
}

func TestRolloutIsExperiment(t *testing.T) {
	r := Rollout{Kind: RolloutKindExperiment}
	if !r.IsExperiment() {
		t.Fatalf("expected experiment kind to report true")
	}
	plain := Rollout{Kind: RolloutKindRollout}
	if plain.IsExperiment() {
		t.Fatalf("expected rollout kind to report false")
	}
}

func TestFlagRoundTripsThroughJSON(t *testing.T) {
	variation := 1
	f := Flag{
		Key:     "flag-a",
		Version: 3,
		On:      true,
		Variations: []ldvalue.Value{ldvalue.Bool(false), ldvalue.Bool(true)},
		Fallthrough: VariationOrRollout{Variation: &variation},
		Rules: []Rule{
			{
				ID: "rule-1",
				Clauses: []Clause{
					{Attribute: "email", Op: OpIn, Values: []ldvalue.Value{ldvalue.String("a@x")}},
				},
				VariationOrRollout: VariationOrRollout{Variation: &variation},
			},
		},
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out Flag
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.Key != f.Key || out.Version != f.Version || len(out.Rules) != 1 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Rules[0].Variation == nil || *out.Rules[0].Variation != variation {
		t.Fatalf("expected embedded VariationOrRollout to flatten into rule JSON")
	}
}

func TestDescriptorTombstone(t *testing.T) {
	d := NewTombstone(5)
	if !d.IsTombstone() {
		t.Fatalf("expected tombstone")
	}
	live := NewDescriptor(5, &Flag{Key: "x"})
	if live.IsTombstone() {
		t.Fatalf("expected live descriptor")
	}
	if _, ok := live.FlagItem(); !ok {
		t.Fatalf("expected FlagItem to resolve")
	}
}
