package ldreason

import (
	"testing"

	"github.com/flagshipsdk/flagship-go/ldvalue"
)

func TestDefaultValueDetailHasNoVariation(t *testing.T) {
	d := NewDetailWithoutVariation(ldvalue.Bool(false), NewErrorReason(ErrorKindFlagNotFound))
	if !d.IsDefaultValue() {
		t.Fatalf("expected IsDefaultValue to be true")
	}
	if d.HasVariation {
		t.Fatalf("expected HasVariation to be false")
	}
}

func TestDetailWithVariation(t *testing.T) {
	d := NewDetail(ldvalue.String("a"), 2, NewFallthroughReason(false))
	if d.IsDefaultValue() {
		t.Fatalf("expected IsDefaultValue to be false when a variation index is set")
	}
	if d.VariationIndex != 2 {
		t.Fatalf("expected variation index 2, got %d", d.VariationIndex)
	}
}

func TestBigSegmentStatusAbsentByDefault(t *testing.T) {
	r := NewFallthroughReason(false)
	if r.HasBigSegmentStatus() {
		t.Fatalf("expected no big segment status by default")
	}
	r2 := r.WithBigSegmentStatus(BigSegmentStale)
	if !r2.HasBigSegmentStatus() || r2.BigSegmentStatus != BigSegmentStale {
		t.Fatalf("expected big segment status to be recorded")
	}
}
