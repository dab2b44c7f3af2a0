package indicators

import (
	"math"

	"pattern-scanner/internal/models"
)

// Mean calculates the arithmetic mean of a slice of float64.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// StdDev calculates the population standard deviation of a slice of float64.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// trueRange calculates the true range for a bar given the previous close.
func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// Closes extracts close prices from candles.
func Closes(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// Highs extracts high prices from candles.
func Highs(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.High
	}
	return prices
}

// Lows extracts low prices from candles.
func Lows(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Low
	}
	return prices
}

// Volumes extracts volumes from candles.
func Volumes(candles []models.Candle) []float64 {
	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = c.Volume
	}
	return vols
}

// HighestIndex returns the index of the highest value in values[from:to+1].
// Ties keep the earlier index. Returns -1 for an empty or invalid range.
func HighestIndex(values []float64, from, to int) int {
	from, to = clampRange(len(values), from, to)
	if from > to {
		return -1
	}
	idx := from
	for i := from + 1; i <= to; i++ {
		if values[i] > values[idx] {
			idx = i
		}
	}
	return idx
}

// LowestIndex returns the index of the lowest value in values[from:to+1].
// Ties keep the earlier index. Returns -1 for an empty or invalid range.
func LowestIndex(values []float64, from, to int) int {
	from, to = clampRange(len(values), from, to)
	if from > to {
		return -1
	}
	idx := from
	for i := from + 1; i <= to; i++ {
		if values[i] < values[idx] {
			idx = i
		}
	}
	return idx
}

func clampRange(n, from, to int) (int, int) {
	if from < 0 {
		from = 0
	}
	if to > n-1 {
		to = n - 1
	}
	return from, to
}

// clip bounds v to [lo, hi]; NaN maps to lo.
func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
