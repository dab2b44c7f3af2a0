package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/geometry"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// handlePriorBars is the volume baseline preceding the handle.
const handlePriorBars = 20

// CupHandleClassifier detects cup-and-handle bases. A cup that qualifies but
// has not formed a valid handle is reported as a rounding bottom.
type CupHandleClassifier struct {
	cfg CupHandleConfig
}

// NewCupHandleClassifier creates a cup-and-handle classifier.
func NewCupHandleClassifier(cfg CupHandleConfig) (*CupHandleClassifier, error) {
	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &CupHandleClassifier{cfg: cfg}, nil
}

func (ch *CupHandleClassifier) ID() string   { return "cup_handle" }
func (ch *CupHandleClassifier) Name() string { return "Cup and Handle" }

func (ch *CupHandleClassifier) Patterns() []analysis.PatternType {
	return []analysis.PatternType{analysis.PatternCupAndHandle, analysis.PatternRoundingBottom}
}

// cup is a qualified rounded base between two rims.
type cup struct {
	left, bottom, right int
	leftPrice           float64
	rightPrice          float64
	bottomPrice         float64
	depth               float64
	roundness           float64
	rimScore            float64
	atr                 float64
}

func (c cup) midpoint() float64 {
	return (c.leftPrice + c.bottomPrice) / 2
}

// handle is the shallow pullback after the right rim.
type handle struct {
	end         int
	low         float64
	retrace     float64
	volumeRatio float64
}

func (ch *CupHandleClassifier) Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	if len(candles) < ch.cfg.MinBars {
		return nil
	}
	s := newSeries(candles, ch.cfg.ATRPeriod, ch.cfg.PivotK)

	var out []analysis.Candidate
	for _, rim := range geometry.Highs(s.pivots) {
		k, ok := ch.findCup(s, rim)
		if !ok {
			continue
		}
		if c, ok := ch.candidate(s, k, timeframe, symbol); ok {
			out = append(out, c)
		}
	}
	return dedupe(out)
}

// findCup searches forward from a left rim for the first recovery back to
// the rim and checks depth, bottom position and roundness.
func (ch *CupHandleClassifier) findCup(s *series, rim geometry.Pivot) (cup, bool) {
	n := s.len()
	k := cup{left: rim.Index, leftPrice: rim.Price}

	recovery := -1
	limit := min(n-1, k.left+ch.cfg.MaxCupBars)
	for i := k.left + ch.cfg.MinCupBars; i <= limit; i++ {
		if s.high[i] >= k.leftPrice-ch.cfg.RimTolATR*s.atrAt(i) {
			recovery = i
			break
		}
	}
	if recovery < 0 {
		return cup{}, false
	}

	k.bottom = indicators.LowestIndex(s.low, k.left+1, recovery-1)
	if k.bottom < 0 {
		return cup{}, false
	}
	k.bottomPrice = s.low[k.bottom]

	k.right = ch.rightRim(s, k, recovery)
	k.rightPrice = s.high[k.right]
	// The base must still be live at the end of the series.
	if k.right < n-1-ch.cfg.MaxHandleBars-handlePriorBars {
		return cup{}, false
	}

	if k.leftPrice <= 0 {
		return cup{}, false
	}
	k.depth = (k.leftPrice - k.bottomPrice) / k.leftPrice
	if k.depth < ch.cfg.MinDepth || k.depth > ch.cfg.MaxDepth {
		return cup{}, false
	}

	position := float64(k.bottom-k.left) / float64(k.right-k.left)
	if position < 0.25 || position > 0.75 {
		return cup{}, false
	}

	k.atr = s.atrAt(k.right)
	if k.atr <= 0 {
		return cup{}, false
	}
	rimTol := ch.cfg.RimTolATR * k.atr
	k.rimScore = clip01(1 - math.Abs(k.leftPrice-k.rightPrice)/rimTol)

	k.roundness = indicators.CurvatureScore(s.close[k.left : k.right+1])
	if k.roundness < ch.cfg.MinRoundness {
		return cup{}, false
	}
	return k, true
}

// rightRim returns the peak of the recovery. Once price has pulled back from
// the running peak by the minimum handle retrace, the search ends at the
// first close above that peak, so a breakout bar never becomes the rim.
func (ch *CupHandleClassifier) rightRim(s *series, k cup, recovery int) int {
	minPull := ch.cfg.MinHandleRetrace * (k.leftPrice - k.bottomPrice)
	limit := min(s.len()-1, recovery+ch.cfg.MaxHandleBars)
	right := recovery
	pulled := false
	for i := recovery + 1; i <= limit; i++ {
		switch {
		case pulled:
			if s.close[i] > s.high[right] {
				return right
			}
		case s.high[i] > s.high[right]:
			right = i
		case s.high[right]-s.low[i] >= minPull:
			pulled = true
		}
	}
	return right
}

// findHandle checks the pullback between the right rim and either the
// breakout bar or the last bar.
func (ch *CupHandleClassifier) findHandle(s *series, k cup, breakout *analysis.Breakout) (handle, bool) {
	h := handle{end: s.len() - 1}
	if breakout != nil {
		h.end = breakout.BarIndex - 1
	}
	bars := h.end - k.right
	if bars < ch.cfg.MinHandleBars || bars > ch.cfg.MaxHandleBars {
		return handle{}, false
	}

	lowIdx := indicators.LowestIndex(s.low, k.right+1, h.end)
	cupDepth := k.leftPrice - k.bottomPrice
	if lowIdx < 0 || cupDepth <= 0 {
		return handle{}, false
	}
	h.low = s.low[lowIdx]
	h.retrace = (k.rightPrice - h.low) / cupDepth
	if h.retrace < ch.cfg.MinHandleRetrace || h.retrace > ch.cfg.MaxHandleRetrace {
		return handle{}, false
	}
	if h.low <= k.midpoint() {
		return handle{}, false
	}

	prior := indicators.AverageVolume(s.volume, k.right-handlePriorBars, k.right)
	current := indicators.AverageVolume(s.volume, k.right+1, h.end)
	if prior <= 0 {
		return handle{}, false
	}
	h.volumeRatio = current / prior
	if h.volumeRatio >= 1 {
		return handle{}, false
	}
	return h, true
}

func (ch *CupHandleClassifier) candidate(s *series, k cup, timeframe, symbol string) (analysis.Candidate, bool) {
	breakout, _ := breakoutAfter(s, k.right, k.rightPrice, analysis.BreakoutUp)
	h, ok := ch.findHandle(s, k, breakout)
	if !ok {
		return ch.roundingBottom(s, k, timeframe, symbol)
	}

	end := h.end
	if breakout != nil {
		end = breakout.BarIndex
	}
	c := newCandidate(s, symbol, timeframe, analysis.PatternCupAndHandle, k.left, end)
	c.Breakout = breakout
	ch.setCupGeometry(&c, k)
	c.Geometry["handle_low"] = h.low
	c.Geometry[analysis.GeoEntry] = k.rightPrice
	c.Geometry[analysis.GeoStop] = h.low
	c.Geometry[analysis.GeoTarget] = k.rightPrice + (k.leftPrice - k.bottomPrice)
	c.Evidence["handle_retrace"] = h.retrace
	c.Evidence["handle_volume_ratio"] = h.volumeRatio

	centre := (ch.cfg.MinHandleRetrace + ch.cfg.MaxHandleRetrace) / 2
	handleScore := peakScore(h.retrace, centre, centre) * clip01(1.5-h.volumeRatio)
	confidence := 0.20*peakScore(k.depth, 0.30, 0.30) +
		0.30*k.roundness +
		0.15*k.rimScore +
		0.20*handleScore +
		0.15*breakoutVolumeScore(breakout)

	if !finalize(&c, confidence, h.volumeRatio <= ch.cfg.DryVolumeRatio) {
		return analysis.Candidate{}, false
	}
	return c, true
}

func (ch *CupHandleClassifier) roundingBottom(s *series, k cup, timeframe, symbol string) (analysis.Candidate, bool) {
	c := newCandidate(s, symbol, timeframe, analysis.PatternRoundingBottom, k.left, k.right)
	ch.setCupGeometry(&c, k)
	c.Geometry[analysis.GeoEntry] = k.rightPrice
	c.Geometry[analysis.GeoStop] = k.midpoint()
	c.Geometry[analysis.GeoTarget] = k.rightPrice + (k.leftPrice - k.bottomPrice)

	confidence := 0.25*peakScore(k.depth, 0.30, 0.30) +
		0.45*k.roundness +
		0.30*k.rimScore

	if !finalize(&c, confidence, k.roundness >= 0.75) {
		return analysis.Candidate{}, false
	}
	return c, true
}

func (ch *CupHandleClassifier) setCupGeometry(c *analysis.Candidate, k cup) {
	c.Geometry["left_rim"] = k.leftPrice
	c.Geometry["right_rim"] = k.rightPrice
	c.Geometry["bottom"] = k.bottomPrice
	c.Geometry["midpoint"] = k.midpoint()
	c.Geometry["depth"] = k.depth
	c.Evidence["roundness"] = k.roundness
	c.Evidence["rim_score"] = k.rimScore
	c.Evidence["bottom_index"] = float64(k.bottom)
}
