package patterns

import (
	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

// WedgeClassifier detects rising and falling wedges: both boundaries slope the
// same way and converge.
type WedgeClassifier struct {
	cfg WedgeConfig
}

// NewWedgeClassifier creates a wedge classifier.
func NewWedgeClassifier(cfg WedgeConfig) (*WedgeClassifier, error) {
	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &WedgeClassifier{cfg: cfg}, nil
}

func (w *WedgeClassifier) ID() string   { return "wedge" }
func (w *WedgeClassifier) Name() string { return "Wedge" }

func (w *WedgeClassifier) Patterns() []analysis.PatternType {
	return []analysis.PatternType{analysis.PatternWedgeRising, analysis.PatternWedgeFalling}
}

func (w *WedgeClassifier) Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	return scanWindows(candles, w.cfg.TrendlineConfig, func(s *series, b boundaries) (analysis.Candidate, bool) {
		return w.classify(s, b, timeframe, symbol)
	})
}

func (w *WedgeClassifier) classify(s *series, b boundaries, timeframe, symbol string) (analysis.Candidate, bool) {
	var pt analysis.PatternType
	switch {
	// Support climbs faster than resistance.
	case b.sup.Slope > b.res.Slope && b.res.Slope > 0:
		pt = analysis.PatternWedgeRising
	// Resistance falls faster than support.
	case b.res.Slope < b.sup.Slope && b.sup.Slope < 0:
		pt = analysis.PatternWedgeFalling
	default:
		return analysis.Candidate{}, false
	}

	conv := b.convergence()
	if conv < w.cfg.MinConvergence {
		return analysis.Candidate{}, false
	}

	c := lineCandidate(s, b, pt, symbol, timeframe)
	c.Evidence["convergence"] = conv
	setBreakoutLevels(&c, b, pt == analysis.PatternWedgeFalling)

	confidence := 0.30*b.touchScore() +
		0.25*b.meanR2() +
		0.25*clip01(conv/0.6) +
		0.20*dryingScore(b.volumeTau)

	if !finalize(&c, confidence, b.volumeTau < w.cfg.StrongVolumeTau) {
		return analysis.Candidate{}, false
	}
	return c, true
}
