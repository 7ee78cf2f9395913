// Package ldreason defines the EvaluationReason/EvaluationDetail result types
// produced by flag evaluation.
package ldreason

import "github.com/flagshipsdk/flagship-go/ldvalue"

// Kind identifies why an evaluation produced the value it did.
type Kind string

const (
	KindOff                Kind = "OFF"
	KindTargetMatch         Kind = "TARGET_MATCH"
	KindRuleMatch           Kind = "RULE_MATCH"
	KindFallthrough         Kind = "FALLTHROUGH"
	KindPrerequisiteFailed  Kind = "PREREQUISITE_FAILED"
	KindError               Kind = "ERROR"
)

// ErrorKind enumerates why an evaluation failed outright.
type ErrorKind string

const (
	ErrorKindUserNotSpecified ErrorKind = "USER_NOT_SPECIFIED"
	ErrorKindFlagNotFound     ErrorKind = "FLAG_NOT_FOUND"
	ErrorKindMalformedFlag    ErrorKind = "MALFORMED_FLAG"
	ErrorKindClientNotReady   ErrorKind = "CLIENT_NOT_READY"
	ErrorKindExceptionRaised  ErrorKind = "EXCEPTION"
)

// BigSegmentStatus reports the health of an unbounded (big) segment store
// consulted during segment matching.
type BigSegmentStatus string

const (
	BigSegmentHealthy       BigSegmentStatus = "HEALTHY"
	BigSegmentStale         BigSegmentStatus = "STALE"
	BigSegmentNotConfigured BigSegmentStatus = "NOT_CONFIGURED"
	BigSegmentStoreError    BigSegmentStatus = "STORE_ERROR"
)

// Reason describes the outcome of evaluating one flag.
type Reason struct {
	Kind                  Kind
	RuleIndex             int
	RuleID                string
	PrerequisiteKey       string
	ErrorKind             ErrorKind
	InExperiment          bool
	BigSegmentStatus      BigSegmentStatus
	hasBigSegmentStatus   bool
}

// NewOffReason builds the reason for an explicitly-disabled flag.
func NewOffReason() Reason { return Reason{Kind: KindOff} }

// NewTargetMatchReason builds the reason for an individual-targeting match.
func NewTargetMatchReason() Reason { return Reason{Kind: KindTargetMatch} }

// NewRuleMatchReason builds the reason for a matched targeting rule.
func NewRuleMatchReason(ruleIndex int, ruleID string, inExperiment bool) Reason {
	return Reason{Kind: KindRuleMatch, RuleIndex: ruleIndex, RuleID: ruleID, InExperiment: inExperiment}
}

// NewFallthroughReason builds the reason for the fallthrough path.
func NewFallthroughReason(inExperiment bool) Reason {
	return Reason{Kind: KindFallthrough, InExperiment: inExperiment}
}

// NewPrerequisiteFailedReason builds the reason for a failed prerequisite.
func NewPrerequisiteFailedReason(prereqKey string) Reason {
	return Reason{Kind: KindPrerequisiteFailed, PrerequisiteKey: prereqKey}
}

// NewErrorReason builds an error reason.
func NewErrorReason(kind ErrorKind) Reason {
	return Reason{Kind: KindError, ErrorKind: kind}
}

// WithBigSegmentStatus attaches a big-segment health status to a reason,
// as recorded by segment matching when it had to consult an unbounded
// segment membership interface.
func (r Reason) WithBigSegmentStatus(status BigSegmentStatus) Reason {
	r.BigSegmentStatus = status
	r.hasBigSegmentStatus = true
	return r
}

// HasBigSegmentStatus reports whether a big-segment status was recorded.
func (r Reason) HasBigSegmentStatus() bool { return r.hasBigSegmentStatus }

// Detail is the full result of a flag evaluation: the resolved value, the
// variation index it came from (absent for default/off-without-offVariation
// results), and the reason.
type Detail struct {
	Value          ldvalue.Value
	VariationIndex int
	HasVariation   bool
	Reason         Reason
}

// NewDetail builds a Detail with a known variation index.
func NewDetail(value ldvalue.Value, variationIndex int, reason Reason) Detail {
	return Detail{Value: value, VariationIndex: variationIndex, HasVariation: true, Reason: reason}
}

// NewDetailWithoutVariation builds a Detail with no resolved variation index
// (e.g. the flag's default value was returned due to an error or because
// offVariation was unset).
func NewDetailWithoutVariation(value ldvalue.Value, reason Reason) Detail {
	return Detail{Value: value, Reason: reason}
}

// IsDefaultValue reports whether this detail fell back to the caller-supplied
// default rather than resolving a flag variation.
func (d Detail) IsDefaultValue() bool { return !d.HasVariation }
