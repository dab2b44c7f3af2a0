package indicators

import (
	"math"

	"pattern-scanner/internal/models"
)

// SMA calculates the simple moving average over period values. Positions
// before the first full window are missing.
func SMA(values []float64, period int) Series {
	n := len(values)
	result := NewSeries(n)
	if period <= 0 || n < period {
		return result
	}

	var window float64
	for i := 0; i < n; i++ {
		window += values[i]
		if i >= period {
			window -= values[i-period]
		}
		if i >= period-1 {
			result[i] = window / float64(period)
		}
	}
	return result
}

// TrendTau measures monotonic trend strength as Kendall's tau-a between the
// values and their positions. The result is in [-1, 1]: +1 for a strictly
// rising sequence, -1 for a strictly falling one. Tied values count as
// neither concordant nor discordant. Fewer than two values yield 0.
func TrendTau(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var concordant, discordant int
	for i := 0; i < n-1; i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		for j := i + 1; j < n; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			switch {
			case values[j] > values[i]:
				concordant++
			case values[j] < values[i]:
				discordant++
			}
		}
	}

	pairs := float64(n*(n-1)) / 2
	return clip(float64(concordant-discordant)/pairs, -1, 1)
}

// WeinsteinStage is the market-cycle stage of an instrument relative to its
// long moving average.
type WeinsteinStage int

const (
	StageUnknown   WeinsteinStage = 0
	StageBasing    WeinsteinStage = 1
	StageAdvancing WeinsteinStage = 2
	StageTopping   WeinsteinStage = 3
	StageDeclining WeinsteinStage = 4
)

const (
	stageSlopeBars    = 10
	stageFlatDistance = 0.03
)

// ClassifyStage derives the Weinstein stage of the last bar from closes and a
// period-bar simple moving average (150 daily / 30 weekly is customary).
//
// A flat or falling average with the close within 3% of it is treated as the
// topping boundary; the distance test is only evaluated when the average is
// non-zero.
func ClassifyStage(closes []float64, period int) WeinsteinStage {
	sma := SMA(closes, period)
	n := len(closes)
	s, ok := sma.At(n - 1)
	if !ok {
		return StageUnknown
	}
	prev, ok := sma.At(n - 1 - stageSlopeBars)
	if !ok {
		return StageUnknown
	}

	c := closes[n-1]
	rising := s > prev
	nearFlat := s != 0 && math.Abs(c-s)/s < stageFlatDistance

	switch {
	case rising && c > s:
		return StageAdvancing
	case !rising && nearFlat:
		return StageTopping
	case !rising && c < s:
		return StageDeclining
	default:
		return StageBasing
	}
}

// Tier maps a stage to the trend tier used for scoring.
func (s WeinsteinStage) Tier() models.TrendTier {
	switch s {
	case StageAdvancing:
		return models.Tier1
	case StageDeclining:
		return models.Tier3
	case StageBasing, StageTopping:
		return models.Tier2
	}
	return ""
}
