package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/geometry"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// HeadShouldersClassifier detects head-and-shoulders tops and inverse
// head-and-shoulders bottoms.
//
// Beyond the five-pivot geometry, a candidate must follow a genuine prior
// trend in the direction the pattern reverses, show falling volume across the
// pattern, and (unless AllowUnconfirmed) close beyond the neckline.
type HeadShouldersClassifier struct {
	cfg HeadShouldersConfig
}

// NewHeadShouldersClassifier creates a head-and-shoulders classifier.
func NewHeadShouldersClassifier(cfg HeadShouldersConfig) (*HeadShouldersClassifier, error) {
	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &HeadShouldersClassifier{cfg: cfg}, nil
}

func (h *HeadShouldersClassifier) ID() string   { return "head_shoulders" }
func (h *HeadShouldersClassifier) Name() string { return "Head and Shoulders" }

func (h *HeadShouldersClassifier) Patterns() []analysis.PatternType {
	return []analysis.PatternType{analysis.PatternHeadAndShoulders, analysis.PatternInverseHeadAndShoulders}
}

func (h *HeadShouldersClassifier) Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	if len(candles) < h.cfg.MinBars {
		return nil
	}
	s := newSeries(candles, h.cfg.ATRPeriod, h.cfg.PivotK)
	if len(s.pivots) < 5 {
		return nil
	}

	var out []analysis.Candidate
	for i := 0; i+4 < len(s.pivots); i++ {
		window := s.pivots[i : i+5]
		if window[4].Index < s.len()-1-h.cfg.MaxAgeBars {
			continue
		}
		if c, ok := h.evaluate(s, window, timeframe, symbol); ok {
			out = append(out, c)
		}
	}
	return dedupe(out)
}

// evaluate checks one shoulder-trough-head-trough-shoulder sequence. For an
// inverse pattern the same checks run on negated prices.
func (h *HeadShouldersClassifier) evaluate(s *series, p []geometry.Pivot, timeframe, symbol string) (analysis.Candidate, bool) {
	inverse := p[0].Kind == geometry.PivotLow
	sign := 1.0
	pt := analysis.PatternHeadAndShoulders
	if inverse {
		sign = -1
		pt = analysis.PatternInverseHeadAndShoulders
	}
	ls, t1, head, t2, rs := p[0], p[1], p[2], p[3], p[4]
	price := func(pv geometry.Pivot) float64 { return sign * pv.Price }

	atr := s.atrAt(head.Index)
	if atr <= 0 {
		return analysis.Candidate{}, false
	}
	prominence := price(head) - math.Max(price(ls), price(rs))
	if prominence < h.cfg.HeadATRMult*atr {
		return analysis.Candidate{}, false
	}

	neck, ok := geometry.FitLine(geometry.Points([]geometry.Pivot{t1, t2}), geometry.DefaultFitConfig(0.5*atr))
	if !ok || neck.RSquared < h.cfg.NecklineMinR2 {
		return analysis.Candidate{}, false
	}
	neckAt := func(i int) float64 { return sign * neck.At(float64(i)) }

	lsHeight := price(ls) - neckAt(ls.Index)
	rsHeight := price(rs) - neckAt(rs.Index)
	headHeight := price(head) - neckAt(head.Index)
	if lsHeight <= 0 || rsHeight <= 0 || headHeight <= 0 {
		return analysis.Candidate{}, false
	}
	symmetry := math.Min(lsHeight, rsHeight) / math.Max(lsHeight, rsHeight)
	if symmetry < h.cfg.ShoulderSymmetry {
		return analysis.Candidate{}, false
	}
	tilt := math.Abs(neck.Slope) * float64(rs.Index-ls.Index) / headHeight
	if tilt > h.cfg.MaxNecklineTilt {
		return analysis.Candidate{}, false
	}

	prior, ok := priorTrend(s.close, ls.Index, h.cfg.PriorTrendBars, !inverse, h.cfg.PriorTrendTau, h.cfg.PriorTrendMove)
	if !ok {
		return analysis.Candidate{}, false
	}

	volumeTau := indicators.TrendTau(s.volume[ls.Index : rs.Index+1])
	if volumeTau > h.cfg.MaxVolumeTau {
		return analysis.Candidate{}, false
	}

	var breakout *analysis.Breakout
	end := rs.Index
	for i := rs.Index + 1; i < s.len(); i++ {
		if sign*s.close[i] < neckAt(i) {
			dir := analysis.BreakoutDown
			if inverse {
				dir = analysis.BreakoutUp
			}
			breakout = &analysis.Breakout{Direction: dir, Price: s.close[i], VolumeZ: s.volumeZ(i), BarIndex: i}
			end = i
			break
		}
	}
	if breakout == nil && !h.cfg.AllowUnconfirmed {
		return analysis.Candidate{}, false
	}

	c := newCandidate(s, symbol, timeframe, pt, ls.Index, end)
	c.Breakout = breakout
	c.Geometry["neckline_slope"] = neck.Slope
	c.Geometry["neckline_intercept"] = neck.Intercept
	c.Geometry["left_shoulder"] = ls.Price
	c.Geometry["head"] = head.Price
	c.Geometry["right_shoulder"] = rs.Price
	c.Geometry["left_trough"] = t1.Price
	c.Geometry["right_trough"] = t2.Price
	c.Geometry["head_height"] = headHeight

	entry := neck.At(float64(end))
	c.Geometry[analysis.GeoEntry] = entry
	c.Geometry[analysis.GeoStop] = rs.Price
	c.Geometry[analysis.GeoTarget] = entry - sign*headHeight

	c.Evidence["symmetry"] = symmetry
	c.Evidence["prominence_atr"] = prominence / atr
	c.Evidence["prior_trend"] = prior
	c.Evidence["volume_tau"] = volumeTau
	c.Evidence["neckline_tilt"] = tilt

	confirmed := 0.0
	if breakout != nil {
		confirmed = 1
	}
	confidence := 0.25*clip01((symmetry-0.5)/0.5) +
		0.20*clip01(prominence/(3*atr)) +
		0.20*prior +
		0.15*dryingScore(volumeTau) +
		0.10*clip01(1-tilt/h.cfg.MaxNecklineTilt) +
		0.10*confirmed

	strong := breakout != nil && breakout.VolumeZ >= 1
	if !finalize(&c, confidence, strong) {
		return analysis.Candidate{}, false
	}
	return c, true
}

// priorTrend checks that closes trended in the given direction over the
// lookback bars ending at end. It returns the trend strength in [0, 1]. At
// least half of the lookback must be available.
func priorTrend(closes []float64, end, lookback int, up bool, minTau, minMove float64) (float64, bool) {
	if end < 0 || end >= len(closes) || lookback < 2 {
		return 0, false
	}
	from := max(end-lookback, 0)
	if end-from < lookback/2 {
		return 0, false
	}
	base := closes[from]
	if base == 0 {
		return 0, false
	}
	tau := indicators.TrendTau(closes[from : end+1])
	move := (closes[end] - base) / base
	if !up {
		tau, move = -tau, -move
	}
	if tau < minTau || move < minMove {
		return 0, false
	}
	return clip01(tau), true
}
