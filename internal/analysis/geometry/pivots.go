// Package geometry provides the swing-pivot extractor and the robust line
// fitter shared by the chart pattern classifiers.
package geometry

import (
	"pattern-scanner/internal/analysis/indicators"
)

// PivotKind tells a swing high from a swing low.
type PivotKind int

const (
	PivotLow PivotKind = iota
	PivotHigh
)

func (k PivotKind) String() string {
	if k == PivotHigh {
		return "High"
	}
	return "Low"
}

// Pivot is a confirmed swing point.
type Pivot struct {
	Index int
	Price float64
	Kind  PivotKind
}

type zigzagState int

const (
	stateUndecided zigzagState = iota
	stateSeekingHigh
	stateSeekingLow
)

// ZigZag extracts alternating swing pivots from high/low series.
//
// A candidate extreme is confirmed once price retraces from it by more than
// k × ATR measured at the extreme's bar. ATR values inside the warm-up window
// fall back to the nearest available value. Ties between equal extremes keep
// the earlier bar. The trailing, unconfirmed extreme is not emitted, so the
// first and last pivots are always confirmed swings.
//
// A flat series, a non-positive k, or an ATR with no values yields no pivots.
func ZigZag(high, low []float64, atr indicators.Series, k float64) []Pivot {
	n := min(len(high), len(low), len(atr))
	if n < 2 || k <= 0 || atr.FirstValid() < 0 {
		return nil
	}

	threshold := func(i int) float64 {
		v, ok := atr.AtOrNearest(i)
		if !ok {
			return 0
		}
		return k * v
	}

	var pivots []Pivot
	state := stateUndecided
	hiIdx, loIdx := 0, 0
	candIdx := 0
	var candPrice float64

	for i := 1; i < n; i++ {
		switch state {
		case stateUndecided:
			if high[i] > high[hiIdx] {
				hiIdx = i
			}
			if low[i] < low[loIdx] {
				loIdx = i
			}

			lowConfirmed := i > loIdx && threshold(loIdx) > 0 && high[i]-low[loIdx] > threshold(loIdx)
			highConfirmed := i > hiIdx && threshold(hiIdx) > 0 && high[hiIdx]-low[i] > threshold(hiIdx)

			switch {
			case lowConfirmed && (!highConfirmed || loIdx < hiIdx):
				pivots = append(pivots, Pivot{Index: loIdx, Price: low[loIdx], Kind: PivotLow})
				candIdx = indicators.HighestIndex(high, loIdx+1, i)
				candPrice = high[candIdx]
				state = stateSeekingHigh
				// An outside bar may already have retraced the new candidate.
				if j := indicators.LowestIndex(low, candIdx+1, i); j >= 0 {
					if d := threshold(candIdx); d > 0 && candPrice-low[j] > d {
						pivots = append(pivots, Pivot{Index: candIdx, Price: candPrice, Kind: PivotHigh})
						candIdx, candPrice = j, low[j]
						state = stateSeekingLow
					}
				}
			case highConfirmed:
				pivots = append(pivots, Pivot{Index: hiIdx, Price: high[hiIdx], Kind: PivotHigh})
				candIdx = indicators.LowestIndex(low, hiIdx+1, i)
				candPrice = low[candIdx]
				state = stateSeekingLow
				if j := indicators.HighestIndex(high, candIdx+1, i); j >= 0 {
					if d := threshold(candIdx); d > 0 && high[j]-candPrice > d {
						pivots = append(pivots, Pivot{Index: candIdx, Price: candPrice, Kind: PivotLow})
						candIdx, candPrice = j, high[j]
						state = stateSeekingHigh
					}
				}
			}

		case stateSeekingHigh:
			if high[i] > candPrice {
				candIdx, candPrice = i, high[i]
				continue
			}
			if d := threshold(candIdx); d > 0 && candPrice-low[i] > d {
				pivots = append(pivots, Pivot{Index: candIdx, Price: candPrice, Kind: PivotHigh})
				candIdx, candPrice = i, low[i]
				state = stateSeekingLow
			}

		case stateSeekingLow:
			if low[i] < candPrice {
				candIdx, candPrice = i, low[i]
				continue
			}
			if d := threshold(candIdx); d > 0 && high[i]-candPrice > d {
				pivots = append(pivots, Pivot{Index: candIdx, Price: candPrice, Kind: PivotLow})
				candIdx, candPrice = i, high[i]
				state = stateSeekingHigh
			}
		}
	}

	return pivots
}

// Highs returns the swing highs in order.
func Highs(pivots []Pivot) []Pivot {
	return filterKind(pivots, PivotHigh)
}

// Lows returns the swing lows in order.
func Lows(pivots []Pivot) []Pivot {
	return filterKind(pivots, PivotLow)
}

// Between returns the pivots with from <= Index <= to.
func Between(pivots []Pivot, from, to int) []Pivot {
	var out []Pivot
	for _, p := range pivots {
		if p.Index >= from && p.Index <= to {
			out = append(out, p)
		}
	}
	return out
}

// Points converts pivots to fitter input.
func Points(pivots []Pivot) []Point {
	pts := make([]Point, len(pivots))
	for i, p := range pivots {
		pts[i] = Point{X: float64(p.Index), Y: p.Price}
	}
	return pts
}

func filterKind(pivots []Pivot, kind PivotKind) []Pivot {
	var out []Pivot
	for _, p := range pivots {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}
