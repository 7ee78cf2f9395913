// Package ldevents implements the event pipeline: a bounded inbox feeding a
// single processor task that filters contexts, expands evaluation results
// into feature/debug/identify/custom events, folds them into the running
// summary, and hands flushed batches to a pool of delivery workers.
package ldevents

import (
	"github.com/flagshipsdk/flagship-go/internal/eventsummary"
	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldreason"
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

// InputEvent is anything a caller can hand to a Processor. The processor
// type-switches on these to decide what derived output events to produce.
type InputEvent interface {
	creationDate() int64
}

// EvaluationInput describes one flag evaluation, including whatever the
// flag's tracking configuration says should be recorded.
type EvaluationInput struct {
	CreationDate         int64
	Context              ldcontext.Context
	FlagKey              string
	FlagVersion          int
	HasVersion           bool
	Variation            int
	HasVariation         bool
	Value                ldvalue.Value
	Default              ldvalue.Value
	Reason               ldreason.Reason
	TrackEvents          bool
	TrackEventsFallthrough bool
	DebugEventsUntilDate *int64
	RequireFullEvent     bool
	PrereqOf             string
	HasPrereqOf          bool
}

func (e EvaluationInput) creationDate() int64 { return e.CreationDate }

// IdentifyInput records that a context was seen, independent of any
// evaluation.
type IdentifyInput struct {
	CreationDate int64
	Context      ldcontext.Context
}

func (e IdentifyInput) creationDate() int64 { return e.CreationDate }

// CustomInput records an application-defined event, optionally carrying a
// numeric metric value (e.g. for experimentation).
type CustomInput struct {
	CreationDate int64
	Context      ldcontext.Context
	Key          string
	Data         ldvalue.Value
	HasData      bool
	MetricValue  *float64
}

func (e CustomInput) creationDate() int64 { return e.CreationDate }

// outputEvent is the wire shape of one entry in a flushed batch. Using a
// plain map keeps each event kind's JSON shape independent without forcing
// a single struct to carry every kind's optional fields.
type outputEvent map[string]interface{}

func contextKeys(c ldcontext.Context) map[string]string {
	keys := make(map[string]string)
	for _, k := range c.Kinds() {
		keys[k] = c.KeyFor(k)
	}
	return keys
}

// summaryToOutputEvent converts a flush-window summary snapshot into the
// single "summary" batch entry, per §4.5/§4.6's wire shape.
func summaryToOutputEvent(snap eventsummary.Snapshot) outputEvent {
	features := make(map[string]interface{}, len(snap.Flags))
	for _, fs := range snap.Flags {
		counters := make([]map[string]interface{}, 0, len(fs.Counters))
		for _, c := range fs.Counters {
			entry := map[string]interface{}{
				"count": c.Count,
				"value": c.Value.ToAny(),
			}
			if c.HasVariation {
				entry["variation"] = c.VariationIndex
			}
			if c.HasVersion {
				entry["version"] = c.Version
			} else {
				entry["unknown"] = true
			}
			counters = append(counters, entry)
		}
		features[fs.Key] = map[string]interface{}{
			"default":  fs.Default.ToAny(),
			"counters": counters,
		}
	}
	return outputEvent{
		"kind":      "summary",
		"startDate": snap.StartDate,
		"endDate":   snap.EndDate,
		"features":  features,
	}
}
