package eval

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/flagshipsdk/flagship-go/ldmodel"
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

// regexCache keeps compiled patterns by source string for the "matches"
// operator's hot path. Expected value type is *regexp.Regexp.
var regexCache sync.Map

func compiledRegex(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), true
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	regexCache.Store(pattern, rx)
	return rx, true
}

type opFn func(attrValue, clauseValue ldvalue.Value) bool

var operatorFns = map[ldmodel.ClauseOperator]opFn{
	ldmodel.OpIn:                 opIn,
	ldmodel.OpStartsWith:         opStartsWith,
	ldmodel.OpEndsWith:           opEndsWith,
	ldmodel.OpContains:           opContains,
	ldmodel.OpMatches:            opMatches,
	ldmodel.OpLessThan:           opLessThan,
	ldmodel.OpLessThanOrEqual:    opLessThanOrEqual,
	ldmodel.OpGreaterThan:        opGreaterThan,
	ldmodel.OpGreaterThanOrEqual: opGreaterThanOrEqual,
	ldmodel.OpBefore:             opBefore,
	ldmodel.OpAfter:              opAfter,
	ldmodel.OpSemVerEqual:        opSemVerEqual,
	ldmodel.OpSemVerLessThan:     opSemVerLessThan,
	ldmodel.OpSemVerGreaterThan:  opSemVerGreaterThan,
}

func opIn(a, b ldvalue.Value) bool { return a.Equal(b) }

func stringValue(v ldvalue.Value) (string, bool) {
	if v.Type() != ldvalue.StringType {
		return "", false
	}
	return v.StringValue(), true
}

func stringPair(a, b ldvalue.Value) (string, string, bool) {
	if a.Type() != ldvalue.StringType || b.Type() != ldvalue.StringType {
		return "", "", false
	}
	return a.StringValue(), b.StringValue(), true
}

func opStartsWith(a, b ldvalue.Value) bool {
	s, prefix, ok := stringPair(a, b)
	return ok && strings.HasPrefix(s, prefix)
}

func opEndsWith(a, b ldvalue.Value) bool {
	s, suffix, ok := stringPair(a, b)
	return ok && strings.HasSuffix(s, suffix)
}

func opContains(a, b ldvalue.Value) bool {
	s, sub, ok := stringPair(a, b)
	return ok && strings.Contains(s, sub)
}

func opMatches(a, b ldvalue.Value) bool {
	s, pattern, ok := stringPair(a, b)
	if !ok {
		return false
	}
	rx, ok := compiledRegex(pattern)
	if !ok {
		return false
	}
	return rx.MatchString(s)
}

func numberPair(a, b ldvalue.Value) (float64, float64, bool) {
	if a.Type() != ldvalue.NumberType || b.Type() != ldvalue.NumberType {
		return 0, 0, false
	}
	return a.NumberValue(), b.NumberValue(), true
}

func opLessThan(a, b ldvalue.Value) bool {
	x, y, ok := numberPair(a, b)
	return ok && x < y
}

func opLessThanOrEqual(a, b ldvalue.Value) bool {
	x, y, ok := numberPair(a, b)
	return ok && x <= y
}

func opGreaterThan(a, b ldvalue.Value) bool {
	x, y, ok := numberPair(a, b)
	return ok && x > y
}

func opGreaterThanOrEqual(a, b ldvalue.Value) bool {
	x, y, ok := numberPair(a, b)
	return ok && x >= y
}

// timestampMillis interprets a Value as a millisecond epoch, accepting
// either a numeric epoch or an RFC 3339 string.
func timestampMillis(v ldvalue.Value) (int64, bool) {
	switch v.Type() {
	case ldvalue.NumberType:
		return int64(v.NumberValue()), true
	case ldvalue.StringType:
		t, err := time.Parse(time.RFC3339, v.StringValue())
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}

func opBefore(a, b ldvalue.Value) bool {
	x, ok1 := timestampMillis(a)
	y, ok2 := timestampMillis(b)
	return ok1 && ok2 && x < y
}

func opAfter(a, b ldvalue.Value) bool {
	x, ok1 := timestampMillis(a)
	y, ok2 := timestampMillis(b)
	return ok1 && ok2 && x > y
}

func semVerPair(a, b ldvalue.Value) (*semver.Version, *semver.Version, bool) {
	if a.Type() != ldvalue.StringType || b.Type() != ldvalue.StringType {
		return nil, nil, false
	}
	av, err := semver.NewVersion(a.StringValue())
	if err != nil {
		return nil, nil, false
	}
	bv, err := semver.NewVersion(b.StringValue())
	if err != nil {
		return nil, nil, false
	}
	return av, bv, true
}

func opSemVerEqual(a, b ldvalue.Value) bool {
	av, bv, ok := semVerPair(a, b)
	return ok && av.Equal(bv)
}

func opSemVerLessThan(a, b ldvalue.Value) bool {
	av, bv, ok := semVerPair(a, b)
	return ok && av.LessThan(bv)
}

func opSemVerGreaterThan(a, b ldvalue.Value) bool {
	av, bv, ok := semVerPair(a, b)
	return ok && av.GreaterThan(bv)
}
