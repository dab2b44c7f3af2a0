package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/geometry"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// DoubleClassifier detects double and triple tops and bottoms. Triples are
// tried first; pivots consumed by a triple are not reused for a double.
type DoubleClassifier struct {
	cfg DoubleConfig
}

// NewDoubleClassifier creates a double/triple top and bottom classifier.
func NewDoubleClassifier(cfg DoubleConfig) (*DoubleClassifier, error) {
	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &DoubleClassifier{cfg: cfg}, nil
}

func (d *DoubleClassifier) ID() string   { return "double" }
func (d *DoubleClassifier) Name() string { return "Double/Triple Top and Bottom" }

func (d *DoubleClassifier) Patterns() []analysis.PatternType {
	return []analysis.PatternType{
		analysis.PatternDoubleTop,
		analysis.PatternDoubleBottom,
		analysis.PatternTripleTop,
		analysis.PatternTripleBottom,
	}
}

func (d *DoubleClassifier) Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	if len(candles) < d.cfg.MinBars {
		return nil
	}
	s := newSeries(candles, d.cfg.ATRPeriod, d.cfg.PivotK)
	if len(s.pivots) < 3 {
		return nil
	}

	var out []analysis.Candidate
	used := make(map[int]bool)
	for i := 0; i+4 < len(s.pivots); i++ {
		if c, ok := d.evaluate(s, s.pivots[i:i+5], timeframe, symbol); ok {
			out = append(out, c)
			for j := i; j < i+5; j++ {
				used[j] = true
			}
		}
	}
	for i := 0; i+2 < len(s.pivots); i++ {
		if used[i] && used[i+2] {
			continue
		}
		if c, ok := d.evaluate(s, s.pivots[i:i+3], timeframe, symbol); ok {
			out = append(out, c)
		}
	}
	return dedupe(out)
}

// evaluate checks a three-pivot (double) or five-pivot (triple) sequence.
// Bottoms run the same checks on negated prices.
func (d *DoubleClassifier) evaluate(s *series, p []geometry.Pivot, timeframe, symbol string) (analysis.Candidate, bool) {
	bottom := p[0].Kind == geometry.PivotLow
	sign := 1.0
	if bottom {
		sign = -1
	}
	price := func(pv geometry.Pivot) float64 { return sign * pv.Price }

	var peaks, troughs []geometry.Pivot
	for i, pv := range p {
		if i%2 == 0 {
			peaks = append(peaks, pv)
		} else {
			troughs = append(troughs, pv)
		}
	}
	last := peaks[len(peaks)-1]
	if last.Index < s.len()-1-d.cfg.MaxAgeBars {
		return analysis.Candidate{}, false
	}

	for i := 1; i < len(peaks); i++ {
		sep := peaks[i].Index - peaks[i-1].Index
		if sep < d.cfg.MinSeparation || sep > d.cfg.MaxSeparation {
			return analysis.Candidate{}, false
		}
	}

	var sum float64
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, pk := range peaks {
		sum += pk.Price
		hi = math.Max(hi, pk.Price)
		lo = math.Min(lo, pk.Price)
	}
	avg := sum / float64(len(peaks))
	if avg <= 0 {
		return analysis.Candidate{}, false
	}
	diff := (hi - lo) / avg
	if diff > d.cfg.Tolerance {
		return analysis.Candidate{}, false
	}
	// The last peak may not overshoot the first in the reversal direction.
	if price(last) > price(peaks[0])+d.cfg.MaxOvershoot*peaks[0].Price {
		return analysis.Candidate{}, false
	}

	// The neckline is the deepest intervening trough.
	neck := troughs[0]
	for _, t := range troughs[1:] {
		if price(t) < price(neck) {
			neck = t
		}
	}
	atr := s.atrAt(neck.Index)
	if atr <= 0 {
		return analysis.Candidate{}, false
	}
	depth := sign*avg - price(neck)
	if depth < d.cfg.MinDepthATR*atr {
		return analysis.Candidate{}, false
	}

	var pt analysis.PatternType
	switch {
	case len(peaks) == 3 && bottom:
		pt = analysis.PatternTripleBottom
	case len(peaks) == 3:
		pt = analysis.PatternTripleTop
	case bottom:
		pt = analysis.PatternDoubleBottom
	default:
		pt = analysis.PatternDoubleTop
	}

	dir := analysis.BreakoutDown
	if bottom {
		dir = analysis.BreakoutUp
	}
	breakout, confirmed := breakoutAfter(s, last.Index, neck.Price, dir)
	end := last.Index
	if confirmed {
		end = breakout.BarIndex
	}

	c := newCandidate(s, symbol, timeframe, pt, peaks[0].Index, end)
	c.Breakout = breakout
	for i, pk := range peaks {
		c.Geometry[peakKey(i, bottom)] = pk.Price
	}
	c.Geometry["neckline"] = neck.Price
	c.Geometry[analysis.GeoEntry] = neck.Price
	c.Geometry[analysis.GeoStop] = sign * math.Max(price(peaks[0]), price(last))
	c.Geometry[analysis.GeoTarget] = neck.Price - sign*depth
	c.Touches["level"] = len(peaks)

	volRatio := peakVolumeRatio(s, peaks[0].Index, last.Index)
	c.Evidence["similarity"] = diff
	c.Evidence["depth_atr"] = depth / atr
	c.Evidence["volume_ratio"] = volRatio

	confirmedScore := 0.0
	if confirmed {
		confirmedScore = 1
	}
	confidence := 0.30*clip01(1-diff/d.cfg.Tolerance) +
		0.25*clip01(depth/(2*d.cfg.MinDepthATR*atr)) +
		0.20*clip01(1.5-volRatio) +
		0.25*confirmedScore

	if !finalize(&c, confidence, confirmed) {
		return analysis.Candidate{}, false
	}
	return c, true
}

// peakVolumeRatio compares average volume around the last peak to that around
// the first. A missing baseline yields 1.
func peakVolumeRatio(s *series, first, last int) float64 {
	v1 := indicators.AverageVolume(s.volume, first-2, first+2)
	v2 := indicators.AverageVolume(s.volume, last-2, last+2)
	if v1 <= 0 {
		return 1
	}
	return v2 / v1
}

func peakKey(i int, bottom bool) string {
	names := [...]string{"first", "second", "third"}
	if bottom {
		return names[i] + "_trough"
	}
	return names[i] + "_peak"
}
