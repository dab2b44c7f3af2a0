// Package patterns provides the chart pattern classifiers and the registry
// that maps detector identifiers and pattern names to them.
//
// Every classifier is a pure function of its input bars: it computes ATR and
// zigzag pivots once per call, applies ordered geometric checks and emits only
// candidates whose confidence reaches analysis.MinConfidence. Short series
// and degenerate geometry yield no candidates, never an error.
package patterns

import (
	"math"
	"time"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/geometry"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// Classifier detects one family of chart patterns.
type Classifier interface {
	// ID is the short registry identifier, e.g. "vcp".
	ID() string
	// Name is the human-readable detector name.
	Name() string
	// Patterns lists the pattern types the classifier can emit.
	Patterns() []analysis.PatternType
	// Find returns the candidates detected in candles.
	Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate
}

// volumeWindow is the rolling window for breakout volume z-scores.
const volumeWindow = 20

// series holds the per-call derived data shared by a classifier's checks.
type series struct {
	candles []models.Candle
	high    []float64
	low     []float64
	close   []float64
	volume  []float64
	atr     indicators.Series
	pivots  []geometry.Pivot
}

func newSeries(candles []models.Candle, atrPeriod int, pivotK float64) *series {
	s := &series{
		candles: candles,
		high:    indicators.Highs(candles),
		low:     indicators.Lows(candles),
		close:   indicators.Closes(candles),
		volume:  indicators.Volumes(candles),
	}
	s.atr = indicators.ATR(s.high, s.low, s.close, atrPeriod)
	s.pivots = geometry.ZigZag(s.high, s.low, s.atr, pivotK)
	return s
}

func (s *series) len() int {
	return len(s.candles)
}

// atrAt returns the ATR at i, falling back to the nearest present value.
// Zero means no usable volatility.
func (s *series) atrAt(i int) float64 {
	v, ok := s.atr.AtOrNearest(i)
	if !ok || v <= 0 {
		return 0
	}
	return v
}

func (s *series) volumeZ(i int) float64 {
	return indicators.VolumeZAt(s.volume, i, volumeWindow)
}

// newCandidate returns a candidate with its identity and window filled in.
func newCandidate(s *series, symbol, timeframe string, pt analysis.PatternType, start, end int) analysis.Candidate {
	return analysis.Candidate{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Type:       pt,
		Bias:       pt.Bias(),
		DetectedAt: time.Now().UTC(),
		StartIndex: start,
		EndIndex:   end,
		StartTime:  s.candles[start].Timestamp,
		EndTime:    s.candles[end].Timestamp,
		Geometry:   make(map[string]float64),
		Touches:    make(map[string]int),
		Evidence:   make(map[string]float64),
	}
}

// finalize clips confidence, applies the emission floor and the strong rule,
// and rejects candidates with an invalid window or non-finite geometry.
func finalize(c *analysis.Candidate, confidence float64, strongCond bool) bool {
	if math.IsNaN(confidence) {
		return false
	}
	c.Confidence = clip01(confidence)
	if c.Confidence < analysis.MinConfidence {
		return false
	}
	if c.StartIndex < 0 || c.StartIndex >= c.EndIndex {
		return false
	}
	for _, v := range c.Geometry {
		if !finite(v) {
			return false
		}
	}
	for k, v := range c.Evidence {
		if !finite(v) {
			delete(c.Evidence, k)
		}
	}
	if c.Breakout != nil {
		if !finite(c.Breakout.Price) {
			return false
		}
		if !finite(c.Breakout.VolumeZ) {
			c.Breakout.VolumeZ = 0
		}
	}
	c.Strong = c.Confidence >= analysis.StrongConfidence && strongCond
	return true
}

// dedupe collapses same-type candidates whose windows overlap by at least half
// of the shorter window, keeping the highest confidence. On equal confidence
// the earlier emission wins.
func dedupe(cands []analysis.Candidate) []analysis.Candidate {
	kept := make([]analysis.Candidate, 0, len(cands))
outer:
	for _, c := range cands {
		for i := range kept {
			k := &kept[i]
			if k.Type != c.Type || !overlaps(*k, c) {
				continue
			}
			if c.Confidence > k.Confidence {
				*k = c
			}
			continue outer
		}
		kept = append(kept, c)
	}
	return kept
}

func overlaps(a, b analysis.Candidate) bool {
	lo := max(a.StartIndex, b.StartIndex)
	hi := min(a.EndIndex, b.EndIndex)
	if hi < lo {
		return false
	}
	shorter := min(a.Bars(), b.Bars())
	return float64(hi-lo+1) >= 0.5*float64(shorter)
}

// breakoutAfter returns the first bar in (from, n) whose close crosses level
// in the given direction.
func breakoutAfter(s *series, from int, level float64, dir analysis.BreakoutDirection) (*analysis.Breakout, bool) {
	for i := from + 1; i < s.len(); i++ {
		c := s.close[i]
		if (dir == analysis.BreakoutUp && c > level) || (dir == analysis.BreakoutDown && c < level) {
			return &analysis.Breakout{
				Direction: dir,
				Price:     c,
				VolumeZ:   s.volumeZ(i),
				BarIndex:  i,
			}, true
		}
	}
	return nil, false
}

// dryingScore maps a volume trend tau to [0, 1]; falling volume scores high.
func dryingScore(tau float64) float64 {
	return clip01(0.5 - tau)
}

// breakoutVolumeScore maps a breakout volume z-score to [0, 1].
func breakoutVolumeScore(b *analysis.Breakout) float64 {
	if b == nil {
		return 0
	}
	return clip01(b.VolumeZ / 2)
}

// peakScore is 1 at centre and falls linearly to 0 at centre ± halfWidth.
func peakScore(v, centre, halfWidth float64) float64 {
	if halfWidth <= 0 {
		return 0
	}
	return clip01(1 - math.Abs(v-centre)/halfWidth)
}

func clip01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// safeDiv returns a/b, or 0 when b is zero or the result is not finite.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	v := a / b
	if !finite(v) {
		return 0
	}
	return v
}
