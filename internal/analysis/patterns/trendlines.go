package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/geometry"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// boundaries is a resistance/support line pair fitted over one lookback
// window ending at the last bar.
type boundaries struct {
	start, end int
	res, sup   geometry.Line
	gapStart   float64
	gapEnd     float64
	atr        float64
	highs      []geometry.Pivot
	lows       []geometry.Pivot
	volumeTau  float64
}

// convergence is the fraction by which the gap shrank across the window.
func (b boundaries) convergence() float64 {
	return 1 - safeDiv(b.gapEnd, b.gapStart)
}

func (b boundaries) meanR2() float64 {
	return (b.res.RSquared + b.sup.RSquared) / 2
}

func (b boundaries) touchScore() float64 {
	return clip01(float64(b.res.Touches+b.sup.Touches) / 8)
}

// apex returns the bar index where the lines meet, if they are not parallel.
func (b boundaries) apex() (float64, bool) {
	den := b.res.Slope - b.sup.Slope
	if den == 0 {
		return 0, false
	}
	x := (b.sup.Intercept - b.res.Intercept) / den
	return x, finite(x)
}

// fitBoundaries fits resistance through the swing highs and support through
// the swing lows of the last window bars. It fails when either boundary has
// too few pivots or touches, or when the lines cross inside the window.
func fitBoundaries(s *series, window int, cfg TrendlineConfig) (boundaries, bool) {
	n := s.len()
	if window < 2 || window > n {
		return boundaries{}, false
	}
	b := boundaries{start: n - window, end: n - 1}

	inWindow := geometry.Between(s.pivots, b.start, b.end)
	b.highs = geometry.Highs(inWindow)
	b.lows = geometry.Lows(inWindow)
	if len(b.highs) < cfg.MinTouches || len(b.lows) < cfg.MinTouches {
		return boundaries{}, false
	}

	b.atr = s.atrAt(b.end)
	if b.atr <= 0 {
		return boundaries{}, false
	}
	fitCfg := geometry.FitConfig{
		Tolerance:     cfg.LineTolATR * b.atr,
		MaxIterations: cfg.FitIterations,
		Seed:          cfg.FitSeed,
	}

	var ok bool
	if b.res, ok = geometry.FitLine(geometry.Points(b.highs), fitCfg); !ok {
		return boundaries{}, false
	}
	if b.sup, ok = geometry.FitLine(geometry.Points(b.lows), fitCfg); !ok {
		return boundaries{}, false
	}
	if b.res.Touches < cfg.MinTouches || b.sup.Touches < cfg.MinTouches {
		return boundaries{}, false
	}

	b.gapStart = b.res.At(float64(b.start)) - b.sup.At(float64(b.start))
	b.gapEnd = b.res.At(float64(b.end)) - b.sup.At(float64(b.end))
	if !finite(b.gapStart) || !finite(b.gapEnd) || b.gapStart <= 0 || b.gapEnd <= 0 {
		return boundaries{}, false
	}

	b.volumeTau = indicators.TrendTau(s.volume[b.start : b.end+1])
	return b, true
}

// lineBreakout reports a close outside the boundaries on the last bar.
func lineBreakout(s *series, b boundaries) *analysis.Breakout {
	last := s.close[b.end]
	switch {
	case last > b.res.At(float64(b.end)):
		return &analysis.Breakout{Direction: analysis.BreakoutUp, Price: last, VolumeZ: s.volumeZ(b.end), BarIndex: b.end}
	case last < b.sup.At(float64(b.end)):
		return &analysis.Breakout{Direction: analysis.BreakoutDown, Price: last, VolumeZ: s.volumeZ(b.end), BarIndex: b.end}
	}
	return nil
}

// lineCandidate builds the shared part of a line-pair candidate.
func lineCandidate(s *series, b boundaries, pt analysis.PatternType, symbol, timeframe string) analysis.Candidate {
	c := newCandidate(s, symbol, timeframe, pt, b.start, b.end)
	c.Geometry["resistance_slope"] = b.res.Slope
	c.Geometry["resistance_intercept"] = b.res.Intercept
	c.Geometry["support_slope"] = b.sup.Slope
	c.Geometry["support_intercept"] = b.sup.Intercept
	c.Geometry["resistance_end"] = b.res.At(float64(b.end))
	c.Geometry["support_end"] = b.sup.At(float64(b.end))
	c.Geometry["gap_start"] = b.gapStart
	c.Geometry["gap_end"] = b.gapEnd
	if x, ok := b.apex(); ok {
		c.Geometry["apex_index"] = x
	}
	c.Touches["resistance"] = b.res.Touches
	c.Touches["support"] = b.sup.Touches
	c.Evidence["resistance_r2"] = b.res.RSquared
	c.Evidence["support_r2"] = b.sup.RSquared
	c.Evidence["atr"] = b.atr
	c.Evidence["volume_tau"] = b.volumeTau
	c.Breakout = lineBreakout(s, b)
	return c
}

// setBreakoutLevels records a long entry at resistance or a short entry at
// support, projecting the opening gap as the target.
func setBreakoutLevels(c *analysis.Candidate, b boundaries, long bool) {
	res := b.res.At(float64(b.end))
	sup := b.sup.At(float64(b.end))
	if long {
		c.Geometry[analysis.GeoEntry] = res
		c.Geometry[analysis.GeoStop] = sup
		c.Geometry[analysis.GeoTarget] = res + b.gapStart
		return
	}
	c.Geometry[analysis.GeoEntry] = sup
	c.Geometry[analysis.GeoStop] = res
	c.Geometry[analysis.GeoTarget] = sup - b.gapStart
}

// scanWindows evaluates fn over every configured window that fits the series
// and collapses overlapping results.
func scanWindows(candles []models.Candle, cfg TrendlineConfig, fn func(s *series, b boundaries) (analysis.Candidate, bool)) []analysis.Candidate {
	if len(candles) < cfg.MinBars {
		return nil
	}
	s := newSeries(candles, cfg.ATRPeriod, cfg.PivotK)
	if len(s.pivots) < 2*cfg.MinTouches {
		return nil
	}

	var out []analysis.Candidate
	for _, w := range cfg.Windows {
		b, ok := fitBoundaries(s, w, cfg)
		if !ok {
			continue
		}
		if c, ok := fn(s, b); ok {
			out = append(out, c)
		}
	}
	return dedupe(out)
}

func pivotPrices(pivots []geometry.Pivot) []float64 {
	prices := make([]float64, len(pivots))
	for i, p := range pivots {
		prices[i] = p.Price
	}
	return prices
}

// slopeRatio returns |a|/|b| or false when b is zero.
func slopeRatio(a, b float64) (float64, bool) {
	if b == 0 {
		return 0, false
	}
	r := math.Abs(a) / math.Abs(b)
	return r, finite(r)
}
