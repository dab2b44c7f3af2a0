// Package regime classifies the broad market regime from a benchmark
// index's bars, for callers that have no externally supplied regime.
package regime

import (
	"math"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

var validate = validator.New()

// Config holds the regime detection thresholds.
type Config struct {
	FastPeriod int `mapstructure:"fast_period" json:"fast_period" yaml:"fast_period" default:"50" validate:"gte=2"`
	SlowPeriod int `mapstructure:"slow_period" json:"slow_period" yaml:"slow_period" default:"200" validate:"gtfield=FastPeriod"`
	// SlopeLookback is the distance in bars over which the slow average's
	// direction is measured.
	SlopeLookback int `mapstructure:"slope_lookback" json:"slope_lookback" yaml:"slope_lookback" default:"20" validate:"gte=1"`
	// HighLookback is the window for the reference high drawdowns are
	// measured from.
	HighLookback       int     `mapstructure:"high_lookback" json:"high_lookback" yaml:"high_lookback" default:"252" validate:"gte=1"`
	CorrectionDrawdown float64 `mapstructure:"correction_drawdown" json:"correction_drawdown" yaml:"correction_drawdown" default:"0.10" validate:"gt=0,lt=1"`
	BearDrawdown       float64 `mapstructure:"bear_drawdown" json:"bear_drawdown" yaml:"bear_drawdown" default:"0.20" validate:"gtfield=CorrectionDrawdown,lt=1"`
}

// DefaultConfig returns the default regime configuration.
func DefaultConfig() Config {
	var cfg Config
	_ = defaults.Set(&cfg)
	return cfg
}

// Info is the regime with the readings it was derived from.
type Info struct {
	Regime    models.MarketRegime `json:"regime" yaml:"regime"`
	Close     float64             `json:"close" yaml:"close"`
	FastSMA   float64             `json:"fast_sma" yaml:"fast_sma"`
	SlowSMA   float64             `json:"slow_sma" yaml:"slow_sma"`
	SlowSlope float64             `json:"slow_slope" yaml:"slow_slope"`
	Drawdown  float64             `json:"drawdown" yaml:"drawdown"`
}

// Detector classifies benchmark bars into a MarketRegime. It holds no state
// beyond its configuration and is safe for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector. Zero fields take their defaults.
func NewDetector(cfg Config) (*Detector, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, err.Error())
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, err.Error())
	}
	return &Detector{cfg: cfg}, nil
}

// Classify derives the regime from the latest bar of candles.
//
//   - Bear: below the slow average with the fast average under it and a
//     drawdown of at least BearDrawdown.
//   - Correction: drawdown of at least CorrectionDrawdown and below the fast
//     average.
//   - Recovery: back above the fast average while still under the slow one
//     or still in a correction-sized drawdown.
//   - Bull: above a rising slow average with the fast average over it.
//   - Neutral otherwise.
func (d *Detector) Classify(candles []models.Candle) (Info, error) {
	need := d.cfg.SlowPeriod + d.cfg.SlopeLookback
	if len(candles) < need {
		return Info{}, errors.Wrapf(errors.ErrInsufficientData, "regime needs %d bars, have %d", need, len(candles))
	}
	closes := indicators.Closes(candles)
	last := len(closes) - 1

	fast, _ := indicators.SMA(closes, d.cfg.FastPeriod).Last()
	slowSeries := indicators.SMA(closes, d.cfg.SlowPeriod)
	slow, _ := slowSeries.Last()
	prevSlow, _ := slowSeries.At(last - d.cfg.SlopeLookback)

	from := len(closes) - d.cfg.HighLookback
	if from < 0 {
		from = 0
	}
	high := closes[indicators.HighestIndex(closes, from, last)]

	info := Info{
		Close:     closes[last],
		FastSMA:   fast,
		SlowSMA:   slow,
		SlowSlope: slow - prevSlow,
	}
	if high > 0 {
		info.Drawdown = math.Max(0, 1-info.Close/high)
	}
	info.Regime = d.classify(info)
	return info, nil
}

func (d *Detector) classify(info Info) models.MarketRegime {
	switch {
	case info.Close < info.SlowSMA && info.FastSMA < info.SlowSMA && info.Drawdown >= d.cfg.BearDrawdown:
		return models.RegimeBear
	case info.Drawdown >= d.cfg.CorrectionDrawdown && info.Close < info.FastSMA:
		return models.RegimeCorrection
	case info.Close > info.FastSMA && (info.Close < info.SlowSMA || info.Drawdown >= d.cfg.CorrectionDrawdown):
		return models.RegimeRecovery
	case info.Close > info.SlowSMA && info.FastSMA > info.SlowSMA && info.SlowSlope >= 0:
		return models.RegimeBull
	}
	return models.RegimeNeutral
}
