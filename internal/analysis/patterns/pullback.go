package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// MAPullbackClassifier detects a pullback to the fast moving average inside an
// established uptrend, evaluated on the last bar.
type MAPullbackClassifier struct {
	cfg MAPullbackConfig
}

// NewMAPullbackClassifier creates a moving-average pullback classifier.
func NewMAPullbackClassifier(cfg MAPullbackConfig) (*MAPullbackClassifier, error) {
	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &MAPullbackClassifier{cfg: cfg}, nil
}

func (m *MAPullbackClassifier) ID() string   { return "ma_pullback" }
func (m *MAPullbackClassifier) Name() string { return "Moving Average Pullback" }

func (m *MAPullbackClassifier) Patterns() []analysis.PatternType {
	return []analysis.PatternType{analysis.PatternMAPullback}
}

func (m *MAPullbackClassifier) Find(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	if len(candles) < m.cfg.MinBars || len(candles) < m.cfg.SlowPeriod+1 {
		return nil
	}
	s := newSeries(candles, m.cfg.ATRPeriod, 1)
	last := s.len() - 1

	fast := indicators.SMA(s.close, m.cfg.FastPeriod)
	slow := indicators.SMA(s.close, m.cfg.SlowPeriod)
	fastNow, ok := fast.Last()
	if !ok || fastNow <= 0 {
		return nil
	}
	slowNow, ok := slow.Last()
	if !ok || slowNow <= 0 {
		return nil
	}
	closeNow := s.close[last]
	if !(closeNow > fastNow && fastNow > slowNow) {
		return nil
	}

	from := last - m.cfg.TrendBars + 1
	var above int
	for i := from; i <= last; i++ {
		if v, ok := fast.At(i); ok && s.close[i] > v {
			above++
		}
	}
	share := float64(above) / float64(m.cfg.TrendBars)
	if share < m.cfg.MinAboveShare {
		return nil
	}

	peak := indicators.HighestIndex(s.high, from, last)
	peakPrice := s.high[peak]
	if peakPrice <= 0 || peak == last {
		return nil
	}
	pullback := (peakPrice - s.low[indicators.LowestIndex(s.low, peak, last)]) / peakPrice
	if pullback < m.cfg.MinPullback || pullback > m.cfg.MaxPullback {
		return nil
	}

	distance := (closeNow - fastNow) / fastNow
	if distance > m.cfg.MaxDistance {
		return nil
	}

	bar := s.candles[last]
	bounce := bounceSignal(bar)

	atr := s.atrAt(last)
	recentLow := s.low[indicators.LowestIndex(s.low, last-4, last)]
	c := newCandidate(s, symbol, timeframe, analysis.PatternMAPullback, peak, last)
	c.Geometry["fast_ma"] = fastNow
	c.Geometry["slow_ma"] = slowNow
	c.Geometry["pullback_high"] = peakPrice
	c.Geometry[analysis.GeoEntry] = closeNow
	c.Geometry[analysis.GeoStop] = math.Min(recentLow, fastNow-atr)
	c.Geometry[analysis.GeoTarget] = peakPrice
	c.Evidence["above_share"] = share
	c.Evidence["pullback"] = pullback
	c.Evidence["distance"] = distance

	bounceScore := 0.0
	if bounce {
		bounceScore = 1
		c.Evidence["bounce"] = 1
	}

	// Volume during the pullback against the bars before the peak.
	before := indicators.AverageVolume(s.volume, peak-m.cfg.TrendBars, peak-1)
	during := indicators.AverageVolume(s.volume, peak+1, last)
	volumeScore := 0.5
	if before > 0 {
		volumeScore = clip01(1.5 - during/before)
		c.Evidence["pullback_volume_ratio"] = during / before
	}

	centre := (m.cfg.MinPullback + m.cfg.MaxPullback) / 2
	trendScore := 0.5*clip01(safeDiv(share-m.cfg.MinAboveShare, 1-m.cfg.MinAboveShare)) +
		0.5*clip01((fastNow/slowNow-1)/0.10)
	confidence := 0.30*trendScore +
		0.20*peakScore(pullback, centre, centre) +
		0.25*clip01(1-distance/m.cfg.MaxDistance) +
		0.15*bounceScore +
		0.10*volumeScore

	if !finalize(&c, confidence, bounce) {
		return nil
	}
	return []analysis.Candidate{c}
}

// bounceSignal reports a long lower shadow or a close in the top 30% of the
// bar's range.
func bounceSignal(c models.Candle) bool {
	rng := c.Range()
	if rng <= 0 {
		return false
	}
	body := math.Abs(c.Close - c.Open)
	lowerShadow := math.Min(c.Open, c.Close) - c.Low
	if lowerShadow >= 2*body && lowerShadow >= 0.5*rng {
		return true
	}
	return (c.Close-c.Low)/rng >= 0.7
}
