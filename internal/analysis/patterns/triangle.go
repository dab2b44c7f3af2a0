package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// TriangleClassifier detects ascending, descending and symmetrical triangles.
type TriangleClassifier struct {
	cfg TriangleConfig
}

// NewTriangleClassifier creates a triangle classifier; zero config fields take
// their defaults.
func NewTriangleClassifier(cfg TriangleConfig) (*TriangleClassifier, error) {
	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &TriangleClassifier{cfg: cfg}, nil
}

func (t *TriangleClassifier) ID() string   { return "triangle" }
func (t *TriangleClassifier) Name() string { return "Triangle" }

func (t *TriangleClassifier) Patterns() []analysis.PatternType {
	return []analysis.PatternType{
		analysis.PatternTriangleAscending,
		analysis.PatternTriangleDescending,
		analysis.PatternTriangleSymmetrical,
	}
}

// Find evaluates every lookback window independently.
func (t *TriangleClassifier) Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	return scanWindows(candles, t.cfg.TrendlineConfig, func(s *series, b boundaries) (analysis.Candidate, bool) {
		return t.classify(s, b, timeframe, symbol)
	})
}

func (t *TriangleClassifier) classify(s *series, b boundaries, timeframe, symbol string) (analysis.Candidate, bool) {
	conv := b.convergence()
	if conv < t.cfg.MinConvergence {
		return analysis.Candidate{}, false
	}

	highSpread := flatness(pivotPrices(b.highs), b.atr)
	lowSpread := flatness(pivotPrices(b.lows), b.atr)
	flatHighs := highSpread <= t.cfg.FlatATR
	flatLows := lowSpread <= t.cfg.FlatATR

	var pt analysis.PatternType
	switch {
	case flatHighs && b.sup.Slope > 0:
		pt = analysis.PatternTriangleAscending
	case flatLows && b.res.Slope < 0:
		pt = analysis.PatternTriangleDescending
	case b.res.Slope < 0 && b.sup.Slope > 0:
		ratio, ok := slopeRatio(b.res.Slope, b.sup.Slope)
		if !ok || ratio < t.cfg.MinSlopeRatio || ratio > t.cfg.MaxSlopeRatio {
			return analysis.Candidate{}, false
		}
		pt = analysis.PatternTriangleSymmetrical
	default:
		return analysis.Candidate{}, false
	}

	c := lineCandidate(s, b, pt, symbol, timeframe)
	c.Evidence["convergence"] = conv
	c.Evidence["high_spread_atr"] = highSpread
	c.Evidence["low_spread_atr"] = lowSpread

	long := pt != analysis.PatternTriangleDescending
	if pt == analysis.PatternTriangleSymmetrical && c.Breakout != nil {
		long = c.Breakout.Direction == analysis.BreakoutUp
	}
	setBreakoutLevels(&c, b, long)

	confidence := 0.30*b.touchScore() +
		0.25*b.meanR2() +
		0.25*clip01(conv/0.6) +
		0.20*dryingScore(b.volumeTau)

	strong := b.res.Touches >= 3 && b.sup.Touches >= 3
	if !finalize(&c, confidence, strong) {
		return analysis.Candidate{}, false
	}
	return c, true
}

// flatness is the pivot price spread in ATR multiples.
func flatness(prices []float64, atr float64) float64 {
	if atr <= 0 {
		return math.Inf(1)
	}
	return indicators.StdDev(prices) / atr
}
