// Package scoring runs the classifiers over validated bar series and turns
// their candidates into scored, graded and planned results.
package scoring

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

// Grade is a letter grade derived from a 0-100 score.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeAvoid Grade = "Avoid"
)

// Score thresholds for each grade.
const (
	ThresholdAPlus = 90.0
	ThresholdA     = 80.0
	ThresholdB     = 65.0
	ThresholdC     = 50.0
)

// GradeFor maps a score to its letter grade.
func GradeFor(score float64) Grade {
	switch {
	case score >= ThresholdAPlus:
		return GradeAPlus
	case score >= ThresholdA:
		return GradeA
	case score >= ThresholdB:
		return GradeB
	case score >= ThresholdC:
		return GradeC
	default:
		return GradeAvoid
	}
}

// regimeAdjustment is the score shift for a bullish pattern in each regime.
var regimeAdjustment = map[models.MarketRegime]float64{
	models.RegimeBull:       5,
	models.RegimeRecovery:   2,
	models.RegimeNeutral:    0,
	models.RegimeCorrection: -5,
	models.RegimeBear:       -10,
}

// tierAdjustment is the score shift for a bullish pattern in each trend tier.
var tierAdjustment = map[models.TrendTier]float64{
	models.Tier1: 5,
	models.Tier2: 0,
	models.Tier3: -5,
}

// strongBonus is added for candidates flagged strong.
const strongBonus = 5.0

// Score computes the 0-100 score of a candidate under the given tags.
// Bearish patterns receive the mirrored regime and tier adjustments; neutral
// patterns receive none.
func Score(c analysis.Candidate, regime models.MarketRegime, tier models.TrendTier) float64 {
	score := c.Confidence * 100

	var sign float64
	switch c.Type.Bias() {
	case analysis.PatternBullish:
		sign = 1
	case analysis.PatternBearish:
		sign = -1
	}
	score += sign * (regimeAdjustment[regime] + tierAdjustment[tier])

	if c.Strong {
		score += strongBonus
	}
	return math.Round(clamp(score, 0, 100)*10) / 10
}

// Plan is the trade plan derived from a candidate's levels. Missing levels
// are nil.
type Plan struct {
	Entry        *float64 `json:"entry" yaml:"entry"`
	Stop         *float64 `json:"stop" yaml:"stop"`
	Target       *float64 `json:"target" yaml:"target"`
	RiskPerShare *float64 `json:"risk_per_share" yaml:"risk_per_share"`
	RewardRisk   *float64 `json:"reward_risk" yaml:"reward_risk"`
}

// NewPlan derives a trade plan. Risk per share is the distance from entry to
// stop on the pattern's side: entry - stop for long setups, stop - entry for
// bearish ones. A stop on the wrong side of entry leaves risk nil.
func NewPlan(c analysis.Candidate) Plan {
	var p Plan
	if v, ok := c.Level(analysis.GeoEntry); ok {
		p.Entry = ptr(v)
	}
	if v, ok := c.Level(analysis.GeoStop); ok {
		p.Stop = ptr(v)
	}
	if v, ok := c.Level(analysis.GeoTarget); ok {
		p.Target = ptr(v)
	}
	if p.Entry == nil || p.Stop == nil {
		return p
	}

	short := isShort(c)
	risk := *p.Entry - *p.Stop
	if short {
		risk = -risk
	}
	if risk <= 0 {
		return p
	}
	p.RiskPerShare = ptr(risk)

	if p.Target != nil {
		reward := *p.Target - *p.Entry
		if short {
			reward = -reward
		}
		p.RewardRisk = ptr(reward / risk)
	}
	return p
}

// isShort reports whether the candidate's plan is a short setup. Neutral
// patterns follow the stop placement.
func isShort(c analysis.Candidate) bool {
	switch c.Type.Bias() {
	case analysis.PatternBearish:
		return true
	case analysis.PatternBullish:
		return false
	}
	entry, _ := c.Level(analysis.GeoEntry)
	stop, _ := c.Level(analysis.GeoStop)
	return stop > entry
}

func ptr(v float64) *float64 {
	return &v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
