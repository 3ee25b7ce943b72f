package search

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

// Clock returns the current time.
type Clock func() time.Time

// AgeUnit decodes a signed age value: negative values count minutes,
// zero and positive values count days. math.MinInt64 is clamped to
// math.MaxInt64 minutes.
func AgeUnit(v int64) (unit time.Duration, n int64) {
	if v == math.MinInt64 {
		return time.Minute, math.MaxInt64
	}
	if v < 0 {
		return time.Minute, -v
	}
	return 24 * time.Hour, v
}

// AgeBucket returns floor(elapsed / unit) for an article published at pub,
// where unit is decoded from v.
func AgeBucket(now, pub time.Time, v int64) int64 {
	unit, _ := AgeUnit(v)
	elapsed := now.Sub(pub)
	b := int64(elapsed / unit)
	if elapsed < 0 && elapsed%unit != 0 {
		b--
	}
	return b
}

// AgeRange bounds the stored age timestamp (unix milliseconds).
// A nil bound is open.
type AgeRange struct {
	Min, Max                   *float64
	MinInclusive, MaxInclusive bool
}

// Contains reports whether ts falls inside the range.
func (r AgeRange) Contains(ts float64) bool {
	if r.Min != nil && (ts < *r.Min || (!r.MinInclusive && ts == *r.Min)) {
		return false
	}
	if r.Max != nil && (ts > *r.Max || (!r.MaxInclusive && ts == *r.Max)) {
		return false
	}
	return true
}

// AgeResolver turns age conditions into publish-time ranges relative to
// the time of the query.
type AgeResolver struct {
	now Clock
}

// NewAgeResolver creates a resolver; a nil clock uses time.Now.
func NewAgeResolver(now Clock) *AgeResolver {
	if now == nil {
		now = time.Now
	}
	return &AgeResolver{now: now}
}

// Timestamp converts a time to the stored age representation.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Resolve computes the range of publish timestamps whose bucket satisfies
// sp against n, where bucket = floor((now - published) / unit):
//
//	Is(n)            bucket == n   published in (now-(n+1)u, now-n*u]
//	IsLessThan(n)    bucket <  n   published in (now-n*u, +inf)
//	IsGreaterThan(n) bucket >  n   published in (-inf, now-(n+1)u]
func (r *AgeResolver) Resolve(sp Specifier, v int64) (AgeRange, error) {
	unit, n := AgeUnit(v)
	// Bounds are computed in float64 milliseconds, the stored representation,
	// so that n*unit cannot overflow a time.Duration.
	now := Timestamp(r.now())
	unitMs := float64(unit.Milliseconds())
	at := func(k float64) *float64 {
		ts := now - k*unitMs
		return &ts
	}
	k := float64(n)

	switch sp {
	case Is:
		return AgeRange{Min: at(k + 1), Max: at(k), MaxInclusive: true}, nil
	case IsLessThan:
		return AgeRange{Min: at(k)}, nil
	case IsGreaterThan:
		return AgeRange{Max: at(k + 1), MaxInclusive: true}, nil
	default:
		return AgeRange{}, fserrors.InvalidField("specifier %s is not supported by age", sp)
	}
}

// AgeValue extracts the signed age from an integer value or from text
// that parses as an integer.
func AgeValue(v Value) (int64, error) {
	if n, ok := v.Int(); ok {
		return n, nil
	}
	if s, ok := v.Text(); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err == nil {
			return n, nil
		}
		return 0, fserrors.InvalidValue("age value %q is not an integer", s)
	}
	return 0, fserrors.InvalidValue("age value must be an integer, got %s", v)
}

// Query builds the numeric range query for an age condition.
func (r *AgeResolver) Query(sp Specifier, v int64) (query.Query, error) {
	rng, err := r.Resolve(sp, v)
	if err != nil {
		return nil, err
	}
	minIncl, maxIncl := rng.MinInclusive, rng.MaxInclusive
	q := bleve.NewNumericRangeInclusiveQuery(rng.Min, rng.Max, &minIncl, &maxIncl)
	q.SetField(store.FieldAge)
	return q, nil
}
