// Package indicators provides the series statistics used by the pattern
// classifiers: ATR, moving averages, volume z-scores, rank-correlation trend
// strength and a curvature score for rounded bottoms.
package indicators

import "math"

// Series is an indicator output aligned with its input bars. Positions that
// have no value yet (warm-up) hold NaN; use At or Last instead of indexing
// directly when the position may be missing.
type Series []float64

// NewSeries returns a series of length n with every position missing.
func NewSeries(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// At returns the value at i and whether it is present.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) {
		return 0, false
	}
	v := s[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Last returns the final value and whether it is present.
func (s Series) Last() (float64, bool) {
	return s.At(len(s) - 1)
}

// FirstValid returns the index of the first present value, or -1.
func (s Series) FirstValid() int {
	for i := range s {
		if _, ok := s.At(i); ok {
			return i
		}
	}
	return -1
}

// AtOrNearest returns the value at i, falling back to the nearest present
// value before i and then to the first present value after it. This lets
// callers normalise early pivots that fall inside the warm-up window.
func (s Series) AtOrNearest(i int) (float64, bool) {
	if v, ok := s.At(i); ok {
		return v, true
	}
	if i >= len(s) {
		i = len(s) - 1
	}
	for j := i - 1; j >= 0; j-- {
		if v, ok := s.At(j); ok {
			return v, true
		}
	}
	if first := s.FirstValid(); first >= 0 {
		return s[first], true
	}
	return 0, false
}
