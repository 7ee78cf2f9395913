package eval

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldmodel"
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

const longScale = float64(0xFFFFFFFFFFFFFFF)

// bucketValueToString converts a bucketBy attribute value to the string form
// hashed into the bucket, per the contract that only strings and integers
// are valid bucketing keys.
func bucketValueToString(v ldvalue.Value) (string, bool) {
	switch v.Type() {
	case ldvalue.StringType:
		return v.StringValue(), true
	case ldvalue.NumberType:
		f := v.NumberValue()
		if f != float64(int64(f)) {
			return "", false
		}
		return strconv.FormatInt(int64(f), 10), true
	default:
		return "", false
	}
}

// bucketStatus distinguishes why bucketing could or couldn't compute a
// value, since the two failure modes have different fallback behavior: an
// absent context kind buckets to 0 (spec §4.3.1), while an invalid bucketBy
// attribute is a malformed-bucketBy condition.
type bucketStatus int

const (
	bucketOK bucketStatus = iota
	bucketKindAbsent
	bucketInvalidAttr
)

// bucket computes the [0,1) bucket value for a context under the given
// flag/segment key, salt, seed, and bucketBy attribute reference.
func bucket(c ldcontext.Context, contextKind, key, salt string, seed *int, bucketBy ldcontext.AttrRef) (value float64, status bucketStatus) {
	kind := contextKind
	if kind == "" {
		kind = ldcontext.DefaultKind
	}
	attrs, has := c.AttributesFor(kind)
	if !has {
		return 0, bucketKindAbsent
	}
	raw, found := attrs.GetValue(bucketBy)
	if !found {
		return 0, bucketInvalidAttr
	}
	str, ok := bucketValueToString(raw)
	if !ok {
		return 0, bucketInvalidAttr
	}
	var hashInput string
	if seed != nil {
		hashInput = fmt.Sprintf("%d.%s", *seed, str)
	} else {
		hashInput = key + "." + salt + "." + str
	}
	h := sha1.New()
	_, _ = h.Write([]byte(hashInput))
	digest := hex.EncodeToString(h.Sum(nil))[:15]
	intVal, err := strconv.ParseInt(digest, 16, 64)
	if err != nil {
		return 0, bucketInvalidAttr
	}
	return float64(intVal) / longScale, bucketOK
}

// variationForBucket walks weighted variations in accumulated-weight order
// and returns the first whose cumulative bound exceeds the bucket. If the
// weights sum to no more than the bucket value, the last entry is returned.
// ok is false only when variations is empty.
func variationForBucket(variations []ldmodel.WeightedVariation, bucketVal float64) (chosen ldmodel.WeightedVariation, ok bool) {
	if len(variations) == 0 {
		return ldmodel.WeightedVariation{}, false
	}
	var sum float64
	for _, wv := range variations {
		sum += float64(wv.Weight) / 100000.0
		if bucketVal < sum {
			return wv, true
		}
	}
	return variations[len(variations)-1], true
}
