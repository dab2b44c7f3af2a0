package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

// gapTolerance absorbs rounding in the boundary fits when comparing the
// channel's gap at both ends of the window.
const gapTolerance = 1e-6

// ChannelClassifier detects parallel up, down and sideways channels. A
// channel whose boundaries diverge across the window is rejected.
type ChannelClassifier struct {
	cfg ChannelConfig
}

// NewChannelClassifier creates a channel classifier.
func NewChannelClassifier(cfg ChannelConfig) (*ChannelClassifier, error) {
	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &ChannelClassifier{cfg: cfg}, nil
}

func (ch *ChannelClassifier) ID() string   { return "channel" }
func (ch *ChannelClassifier) Name() string { return "Channel" }

func (ch *ChannelClassifier) Patterns() []analysis.PatternType {
	return []analysis.PatternType{
		analysis.PatternChannelUp,
		analysis.PatternChannelDown,
		analysis.PatternChannelSideways,
	}
}

func (ch *ChannelClassifier) Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	return scanWindows(candles, ch.cfg.TrendlineConfig, func(s *series, b boundaries) (analysis.Candidate, bool) {
		return ch.classify(s, b, timeframe, symbol)
	})
}

func (ch *ChannelClassifier) classify(s *series, b boundaries, timeframe, symbol string) (analysis.Candidate, bool) {
	if b.gapEnd > b.gapStart*(1+gapTolerance) {
		return analysis.Candidate{}, false
	}

	price := s.close[b.end]
	if price <= 0 {
		return analysis.Candidate{}, false
	}
	span := float64(b.end - b.start)
	resDrift := math.Abs(b.res.Slope) * span / price
	supDrift := math.Abs(b.sup.Slope) * span / price

	var (
		pt          analysis.PatternType
		parallelism float64
	)
	switch {
	case resDrift <= ch.cfg.SidewaysDrift && supDrift <= ch.cfg.SidewaysDrift:
		pt = analysis.PatternChannelSideways
		parallelism = clip01(1 - math.Abs(b.res.Slope-b.sup.Slope)*span/price/ch.cfg.SidewaysDrift)
	case b.res.Slope > 0 && b.sup.Slope > 0, b.res.Slope < 0 && b.sup.Slope < 0:
		ratio, ok := slopeRatio(b.res.Slope, b.sup.Slope)
		if !ok || ratio < ch.cfg.MinSlopeRatio || ratio > ch.cfg.MaxSlopeRatio {
			return analysis.Candidate{}, false
		}
		pt = analysis.PatternChannelUp
		if b.res.Slope < 0 {
			pt = analysis.PatternChannelDown
		}
		parallelism = peakScore(ratio, 1, math.Max(1-ch.cfg.MinSlopeRatio, ch.cfg.MaxSlopeRatio-1))
	default:
		return analysis.Candidate{}, false
	}

	slope := (b.res.Slope + b.sup.Slope) / 2
	width := (b.gapStart + b.gapEnd) / 2 / math.Sqrt(1+slope*slope) / b.atr
	if width < ch.cfg.MinWidthATR || width > ch.cfg.MaxWidthATR {
		return analysis.Candidate{}, false
	}

	c := lineCandidate(s, b, pt, symbol, timeframe)
	c.Geometry["width_atr"] = width
	c.Evidence["parallelism"] = parallelism

	res := b.res.At(float64(b.end))
	sup := b.sup.At(float64(b.end))
	if pt == analysis.PatternChannelDown {
		c.Geometry[analysis.GeoEntry] = res
		c.Geometry[analysis.GeoStop] = res + b.atr
		c.Geometry[analysis.GeoTarget] = sup
	} else {
		c.Geometry[analysis.GeoEntry] = sup
		c.Geometry[analysis.GeoStop] = sup - b.atr
		c.Geometry[analysis.GeoTarget] = res
	}

	midWidth := (ch.cfg.MinWidthATR + ch.cfg.MaxWidthATR) / 2
	confidence := 0.35*b.touchScore() +
		0.25*b.meanR2() +
		0.25*parallelism +
		0.15*peakScore(width, midWidth, midWidth)

	strong := b.res.Touches >= 3 && b.sup.Touches >= 3
	if !finalize(&c, confidence, strong) {
		return analysis.Candidate{}, false
	}
	return c, true
}
