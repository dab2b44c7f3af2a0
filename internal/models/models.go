// Package models provides domain models shared by the scanner packages.
package models

import (
	"math"
	"time"
)

// Timeframe labels used by the CLI and the store. The detection engine treats
// the label as opaque.
const (
	TimeframeDaily  = "1d"
	TimeframeWeekly = "1w"
)

// Candle represents OHLCV data for a time period (one bar).
type Candle struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Open      float64   `json:"open" yaml:"open"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Close     float64   `json:"close" yaml:"close"`
	Volume    float64   `json:"volume" yaml:"volume"`
}

// Valid reports whether every price and volume field is finite and the
// timestamp is set.
func (c Candle) Valid() bool {
	if c.Timestamp.IsZero() {
		return false
	}
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Range returns High - Low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// MarketRegime is an externally supplied classification of the broad market.
type MarketRegime string

const (
	RegimeBull       MarketRegime = "Bull"
	RegimeBear       MarketRegime = "Bear"
	RegimeCorrection MarketRegime = "Correction"
	RegimeRecovery   MarketRegime = "Recovery"
	RegimeNeutral    MarketRegime = "Neutral"
)

// ParseRegime maps a free-form label to a MarketRegime. Unknown labels map to
// RegimeNeutral.
func ParseRegime(s string) MarketRegime {
	switch MarketRegime(s) {
	case RegimeBull, RegimeBear, RegimeCorrection, RegimeRecovery, RegimeNeutral:
		return MarketRegime(s)
	}
	return RegimeNeutral
}

// TrendTier is an externally supplied classification of the instrument's trend.
type TrendTier string

const (
	Tier1 TrendTier = "Tier1"
	Tier2 TrendTier = "Tier2"
	Tier3 TrendTier = "Tier3"
)

// ParseTier maps a free-form label to a TrendTier. The empty string is
// returned for unknown labels so callers can detect "not supplied".
func ParseTier(s string) TrendTier {
	switch TrendTier(s) {
	case Tier1, Tier2, Tier3:
		return TrendTier(s)
	}
	return ""
}
