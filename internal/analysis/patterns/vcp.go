package patterns

import (
	"strconv"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/geometry"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// VCPClassifier detects volatility contraction patterns: a base below a
// swing high in which successive high-to-low pullbacks shrink, finishing with
// a tight final leg and a move back toward the base high.
type VCPClassifier struct {
	cfg VCPConfig
}

// NewVCPClassifier creates a volatility contraction classifier.
func NewVCPClassifier(cfg VCPConfig) (*VCPClassifier, error) {
	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &VCPClassifier{cfg: cfg}, nil
}

func (v *VCPClassifier) ID() string   { return "vcp" }
func (v *VCPClassifier) Name() string { return "Volatility Contraction Pattern" }

func (v *VCPClassifier) Patterns() []analysis.PatternType {
	return []analysis.PatternType{analysis.PatternVCP}
}

// leg is one swing-high to swing-low decline.
type leg struct {
	high, low geometry.Pivot
}

func (l leg) decline() float64 {
	return safeDiv(l.high.Price-l.low.Price, l.high.Price)
}

func (v *VCPClassifier) Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	if len(candles) < v.cfg.MinBars {
		return nil
	}
	s := newSeries(candles, v.cfg.ATRPeriod, v.cfg.PivotK)

	var out []analysis.Candidate
	for i, p := range s.pivots {
		if p.Kind != geometry.PivotHigh {
			continue
		}
		legs, ok := baseLegs(s.pivots[i:])
		if !ok || len(legs) < v.cfg.MinLegs {
			continue
		}
		if c, ok := v.evaluate(s, legs, timeframe, symbol); ok {
			out = append(out, c)
		}
	}
	return dedupe(out)
}

// baseLegs splits pivots starting at a swing high into consecutive legs. It
// fails when a later swing high exceeds the first, since the first is then
// not the base high.
func baseLegs(pivots []geometry.Pivot) ([]leg, bool) {
	if len(pivots) == 0 || pivots[0].Kind != geometry.PivotHigh {
		return nil, false
	}
	top := pivots[0].Price
	var legs []leg
	for i := 0; i+1 < len(pivots); i += 2 {
		h, l := pivots[i], pivots[i+1]
		if h.Price > top {
			return nil, false
		}
		legs = append(legs, leg{high: h, low: l})
	}
	// A trailing swing high above the base also invalidates it.
	if len(pivots)%2 == 1 && pivots[len(pivots)-1].Price > top {
		return nil, false
	}
	return legs, true
}

// validContractions reports whether each decline after the first is strictly
// smaller than, and at most ratio times, the one before it.
func validContractions(declines []float64, ratio float64) bool {
	for i := 1; i < len(declines); i++ {
		if declines[i] >= declines[i-1] || declines[i] > ratio*declines[i-1] {
			return false
		}
	}
	return true
}

func (v *VCPClassifier) evaluate(s *series, legs []leg, timeframe, symbol string) (analysis.Candidate, bool) {
	n := s.len()
	first, final := legs[0], legs[len(legs)-1]
	baseHigh := first.high.Price
	start := first.high.Index

	if final.low.Index < n-1-v.cfg.MaxAgeBars {
		return analysis.Candidate{}, false
	}
	if n-1-start < v.cfg.MinBaseBars {
		return analysis.Candidate{}, false
	}

	declines := make([]float64, len(legs))
	for i, l := range legs {
		declines[i] = l.decline()
	}
	if declines[0] <= 0 || declines[0] > v.cfg.MaxFirstLeg {
		return analysis.Candidate{}, false
	}
	if !validContractions(declines, v.cfg.ShrinkRatio) {
		return analysis.Candidate{}, false
	}

	atr := s.atrAt(final.low.Index)
	if atr <= 0 {
		return analysis.Candidate{}, false
	}
	baseLow := s.low[indicators.LowestIndex(s.low, start, final.low.Index)]
	baseRange := (baseHigh - baseLow) / atr
	if baseRange > v.cfg.MaxBaseRangeATR {
		return analysis.Candidate{}, false
	}
	finalWidth := (final.high.Price - final.low.Price) / atr
	if finalWidth > v.cfg.FinalLegMaxATR {
		return analysis.Candidate{}, false
	}

	// Price must have come back toward the base high after the final leg.
	if final.low.Index >= n-1 {
		return analysis.Candidate{}, false
	}
	approachHigh := s.high[indicators.HighestIndex(s.high, final.low.Index+1, n-1)]
	gap := (baseHigh - approachHigh) / atr
	if gap > v.cfg.ApproachATR {
		return analysis.Candidate{}, false
	}

	breakout, brokeOut := breakoutAfter(s, final.low.Index, baseHigh, analysis.BreakoutUp)
	end := n - 1
	if brokeOut {
		end = breakout.BarIndex
	}
	volumeTau := indicators.TrendTau(s.volume[start : final.low.Index+1])

	c := newCandidate(s, symbol, timeframe, analysis.PatternVCP, start, end)
	c.Breakout = breakout
	c.Geometry["base_high"] = baseHigh
	c.Geometry["base_low"] = baseLow
	c.Geometry["final_leg_low"] = final.low.Price
	c.Geometry[analysis.GeoEntry] = baseHigh
	c.Geometry[analysis.GeoStop] = final.low.Price
	c.Geometry[analysis.GeoTarget] = baseHigh + (baseHigh - baseLow)
	c.Touches["contractions"] = len(legs)
	for i, d := range declines {
		c.Evidence[legKey(i)] = d
	}
	c.Evidence["base_range_atr"] = baseRange
	c.Evidence["final_leg_atr"] = finalWidth
	c.Evidence["volume_tau"] = volumeTau

	var shrink float64
	for i := 1; i < len(declines); i++ {
		shrink += 1 - declines[i]/declines[i-1]
	}
	shrink /= float64(len(declines) - 1)

	approach := clip01(1 - gap/v.cfg.ApproachATR)
	if brokeOut {
		approach = 1
	}
	confidence := 0.30*clip01(shrink/0.5) +
		0.20*clip01(1-finalWidth/(2*v.cfg.FinalLegMaxATR)) +
		0.20*dryingScore(volumeTau) +
		0.15*approach +
		0.15*breakoutVolumeScore(breakout)

	if !finalize(&c, confidence, volumeTau < 0) {
		return analysis.Candidate{}, false
	}
	return c, true
}

func legKey(i int) string {
	return "leg_" + strconv.Itoa(i+1) + "_decline"
}
