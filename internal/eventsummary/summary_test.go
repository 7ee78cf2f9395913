package eventsummary

import (
	"testing"

	"github.com/flagshipsdk/flagship-go/ldvalue"
)

func TestUpdateAccumulatesCountsPerVariation(t *testing.T) {
	s := New(1000)
	s.Update("flag-a", 3, true, 0, true, ldvalue.Bool(true), ldvalue.Bool(false))
	s.Update("flag-a", 3, true, 0, true, ldvalue.Bool(true), ldvalue.Bool(false))
	s.Update("flag-a", 3, true, 1, true, ldvalue.Bool(false), ldvalue.Bool(false))

	snap := s.Finish(2000)
	if snap.StartDate != 1000 || snap.EndDate != 2000 {
		t.Fatalf("unexpected window bounds: %+v", snap)
	}
	if len(snap.Flags) != 1 {
		t.Fatalf("expected one flag summary, got %d", len(snap.Flags))
	}
	fs := snap.Flags[0]
	if fs.Key != "flag-a" {
		t.Fatalf("unexpected flag key %q", fs.Key)
	}
	if len(fs.Counters) != 2 {
		t.Fatalf("expected two counter buckets, got %d", len(fs.Counters))
	}
	var total int
	for _, c := range fs.Counters {
		total += c.Count
	}
	if total != 3 {
		t.Fatalf("expected 3 total evaluations, got %d", total)
	}
}

func TestFinishResetsWindow(t *testing.T) {
	s := New(1000)
	s.Update("flag-a", 1, true, 0, true, ldvalue.Null, ldvalue.Null)
	s.Finish(2000)
	if !s.Empty() {
		t.Fatalf("expected summarizer to be empty after Finish")
	}
	snap := s.Finish(3000)
	if snap.StartDate != 2000 {
		t.Fatalf("expected new window to start at the previous Finish time, got %d", snap.StartDate)
	}
	if len(snap.Flags) != 0 {
		t.Fatalf("expected no flags in the reset window, got %d", len(snap.Flags))
	}
}

func TestDefaultValueUntrackedVariationUsesNoVariationKey(t *testing.T) {
	s := New(1000)
	s.Update("flag-a", 0, false, 0, false, ldvalue.String("fallback"), ldvalue.String("fallback"))
	snap := s.Finish(1500)
	fs := snap.Flags[0]
	if len(fs.Counters) != 1 {
		t.Fatalf("expected one counter, got %d", len(fs.Counters))
	}
	if fs.Counters[0].HasVariation {
		t.Fatalf("expected HasVariation false for a default-value evaluation")
	}
}
