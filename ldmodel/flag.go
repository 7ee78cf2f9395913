// Package ldmodel defines the pure data shapes for flags, segments, and the
// rule/clause/rollout structures they're built from. Nothing in this package
// evaluates anything; it's storage and wire format only.
package ldmodel

import "github.com/flagshipsdk/flagship-go/ldvalue"

// RolloutKind distinguishes a plain percentage rollout from an experiment,
// which additionally tracks untracked variations and per-flag event rules.
type RolloutKind string

const (
	RolloutKindRollout    RolloutKind = "rollout"
	RolloutKindExperiment RolloutKind = "experiment"
)

// WeightedVariation is one slice of a rollout: a variation index and its
// share of the 100000-unit weight space.
type WeightedVariation struct {
	Variation int  `json:"variation"`
	Weight    int  `json:"weight"`
	Untracked bool `json:"untracked,omitempty"`
}

// Rollout describes probabilistic bucketing into one of several variations.
type Rollout struct {
	Kind       RolloutKind         `json:"kind,omitempty"`
	ContextKind string             `json:"contextKind,omitempty"`
	BucketBy   string              `json:"bucketBy,omitempty"`
	Seed       *int                `json:"seed,omitempty"`
	Variations []WeightedVariation `json:"variations"`
}

// IsExperiment reports whether this rollout is an experiment (vs. a plain
// percentage rollout).
func (r Rollout) IsExperiment() bool { return r.Kind == RolloutKindExperiment }

// VariationOrRollout is either a fixed variation index or a Rollout. Exactly
// one of Variation/Rollout should be set; a flag with neither is malformed.
type VariationOrRollout struct {
	Variation *int     `json:"variation,omitempty"`
	Rollout   *Rollout `json:"rollout,omitempty"`
}

// IsRollout reports whether this resolves via bucketing rather than a fixed
// index.
func (v VariationOrRollout) IsRollout() bool { return v.Rollout != nil }

// ClauseOperator enumerates the closed set of clause comparison operators.
type ClauseOperator string

const (
	OpIn                 ClauseOperator = "in"
	OpStartsWith         ClauseOperator = "startsWith"
	OpEndsWith           ClauseOperator = "endsWith"
	OpMatches            ClauseOperator = "matches"
	OpContains           ClauseOperator = "contains"
	OpLessThan           ClauseOperator = "lessThan"
	OpLessThanOrEqual    ClauseOperator = "lessThanOrEqual"
	OpGreaterThan        ClauseOperator = "greaterThan"
	OpGreaterThanOrEqual ClauseOperator = "greaterThanOrEqual"
	OpBefore             ClauseOperator = "before"
	OpAfter              ClauseOperator = "after"
	OpSemVerEqual        ClauseOperator = "semVerEqual"
	OpSemVerLessThan     ClauseOperator = "semVerLessThan"
	OpSemVerGreaterThan  ClauseOperator = "semVerGreaterThan"
	OpSegmentMatch       ClauseOperator = "segmentMatch"
)

// Clause is a single matching condition within a Rule or segment rule.
type Clause struct {
	ContextKind string          `json:"contextKind,omitempty"`
	Attribute   string          `json:"attribute"`
	Op          ClauseOperator  `json:"op"`
	Values      []ldvalue.Value `json:"values"`
	Negate      bool            `json:"negate,omitempty"`
}

// Rule is an ordered targeting rule: every clause must match (subject to
// each clause's own negation) for the rule to match.
type Rule struct {
	ID          string   `json:"id,omitempty"`
	Clauses     []Clause `json:"clauses"`
	VariationOrRollout
	TrackEvents bool `json:"trackEvents,omitempty"`
}

// Prerequisite names another flag that must be on and resolve to a specific
// variation for this flag to proceed past step 3 of evaluation.
type Prerequisite struct {
	Key       string `json:"key"`
	Variation int    `json:"variation"`
}

// Target is a list of context keys (of one kind) mapped to a fixed variation.
type Target struct {
	ContextKind string   `json:"contextKind,omitempty"`
	Values      []string `json:"values"`
	Variation   int      `json:"variation"`
}

// ClientSideAvailability controls whether a flag may be evaluated by
// client-side SDKs using an environment ID or mobile key.
type ClientSideAvailability struct {
	UsingEnvironmentID bool `json:"usingEnvironmentId,omitempty"`
	UsingMobileKey     bool `json:"usingMobileKey,omitempty"`
}

// Flag is the full data shape for one feature flag, exactly as it round-trips
// through a data source put/patch payload or a persistent store.
type Flag struct {
	Key                    string                  `json:"key"`
	Version                int                     `json:"version"`
	On                     bool                    `json:"on"`
	Variations             []ldvalue.Value         `json:"variations"`
	OffVariation           *int                    `json:"offVariation,omitempty"`
	Fallthrough            VariationOrRollout      `json:"fallthrough"`
	Prerequisites          []Prerequisite          `json:"prerequisites,omitempty"`
	Targets                []Target                `json:"targets,omitempty"`
	ContextTargets         []Target                `json:"contextTargets,omitempty"`
	Rules                  []Rule                  `json:"rules,omitempty"`
	Salt                   string                  `json:"salt,omitempty"`
	TrackEvents            bool                    `json:"trackEvents,omitempty"`
	TrackEventsFallthrough bool                    `json:"trackEventsFallthrough,omitempty"`
	DebugEventsUntilDate   *int64                  `json:"debugEventsUntilDate,omitempty"`
	ClientSideAvailability ClientSideAvailability  `json:"clientSideAvailability,omitempty"`
	Deleted                bool                    `json:"deleted,omitempty"`
}

// Variation returns the variation value at index, and whether it's in range.
func (f Flag) Variation(index int) (ldvalue.Value, bool) {
	if index < 0 || index >= len(f.Variations) {
		return ldvalue.Null, false
	}
	return f.Variations[index], true
}

// SegmentRule is one rule in a segment's rule list: matches if all clauses
// match and, if Weight is set, the bucketed context falls under the weight.
type SegmentRule struct {
	Clauses           []Clause `json:"clauses"`
	Weight            *int     `json:"weight,omitempty"`
	BucketBy          string   `json:"bucketBy,omitempty"`
	RolloutContextKind string  `json:"rolloutContextKind,omitempty"`
}

// SegmentTarget is the contextKind-scoped form of segment include/exclude
// lists, used for every kind besides the user-kind shorthand.
type SegmentTarget struct {
	ContextKind string   `json:"contextKind,omitempty"`
	Values      []string `json:"values"`
}

// Segment groups contexts by explicit list or by rule for use in
// segmentMatch clauses.
type Segment struct {
	Key                  string          `json:"key"`
	Version              int             `json:"version"`
	Included             []string        `json:"included,omitempty"`
	Excluded             []string        `json:"excluded,omitempty"`
	IncludedContexts     []SegmentTarget `json:"includedContexts,omitempty"`
	ExcludedContexts     []SegmentTarget `json:"excludedContexts,omitempty"`
	Rules                []SegmentRule   `json:"rules,omitempty"`
	Salt                 string          `json:"salt,omitempty"`
	Unbounded            bool            `json:"unbounded,omitempty"`
	UnboundedContextKind string          `json:"unboundedContextKind,omitempty"`
	Generation           *int            `json:"generation,omitempty"`
	Deleted              bool            `json:"deleted,omitempty"`
}
