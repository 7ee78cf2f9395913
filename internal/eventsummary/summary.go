// Package eventsummary aggregates per-flag evaluation counters between
// flushes. It is owned entirely by the event-processor task: nothing in
// here is safe to call concurrently.
package eventsummary

import (
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

// counterKey identifies one bucket within a flag's counters: a specific
// variation index and the flag version that produced it, or the default
// value when no variation was returned.
type counterKey struct {
	variationIndex int
	hasVariation   bool
	version        int
	hasVersion     bool
}

type counter struct {
	count int
	value ldvalue.Value
}

// flagSummary accumulates counters for a single flag key across the
// current flush window.
type flagSummary struct {
	defaultValue ldvalue.Value
	counters     map[counterKey]*counter
}

// Counter is the flushed shape of one (variation, version) bucket.
type Counter struct {
	VariationIndex int
	HasVariation   bool
	Version        int
	HasVersion     bool
	Count          int
	Value          ldvalue.Value
}

// FlagSnapshot is the flushed shape of one flag's accumulated counters.
type FlagSnapshot struct {
	Key      string
	Default  ldvalue.Value
	Counters []Counter
}

// Snapshot is the full output of a Finish call: the window bounds plus
// one FlagSnapshot per flag that was evaluated during the window.
type Snapshot struct {
	StartDate int64
	EndDate   int64
	Flags     []FlagSnapshot
}

// Summarizer accumulates evaluation counts and values by flag, version,
// and variation within a flush window. Not safe for concurrent use; the
// event-processor task is its sole owner.
type Summarizer struct {
	startDate int64
	flags     map[string]*flagSummary
}

// New creates an empty summarizer with the window start set to now.
func New(now int64) *Summarizer {
	return &Summarizer{startDate: now, flags: make(map[string]*flagSummary)}
}

// Update records one evaluation outcome for flagKey.
func (s *Summarizer) Update(flagKey string, version int, hasVersion bool, variationIndex int, hasVariation bool, value ldvalue.Value, defaultValue ldvalue.Value) {
	fs, ok := s.flags[flagKey]
	if !ok {
		fs = &flagSummary{defaultValue: defaultValue, counters: make(map[counterKey]*counter)}
		s.flags[flagKey] = fs
	}
	key := counterKey{variationIndex: variationIndex, hasVariation: hasVariation, version: version, hasVersion: hasVersion}
	c, ok := fs.counters[key]
	if !ok {
		c = &counter{value: value}
		fs.counters[key] = c
	}
	c.count++
}

// Finish returns a snapshot of everything accumulated since the window
// started (or since the last Finish call) and resets the summarizer to
// an empty window starting at now.
func (s *Summarizer) Finish(now int64) Snapshot {
	snap := Snapshot{StartDate: s.startDate, EndDate: now}
	for key, fs := range s.flags {
		fsnap := FlagSnapshot{Key: key, Default: fs.defaultValue}
		for ck, c := range fs.counters {
			fsnap.Counters = append(fsnap.Counters, Counter{
				VariationIndex: ck.variationIndex,
				HasVariation:   ck.hasVariation,
				Version:        ck.version,
				HasVersion:     ck.hasVersion,
				Count:          c.count,
				Value:          c.value,
			})
		}
		snap.Flags = append(snap.Flags, fsnap)
	}
	s.startDate = now
	s.flags = make(map[string]*flagSummary)
	return snap
}

// Empty reports whether anything has been recorded since the last Finish.
func (s *Summarizer) Empty() bool {
	return len(s.flags) == 0
}
