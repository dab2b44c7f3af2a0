package patterns

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"pattern-scanner/internal/errors"
)

var validate = validator.New()

// Config groups the thresholds of every classifier. Zero fields take the
// documented defaults when a classifier is constructed, so zero itself is
// never a configurable value.
type Config struct {
	VCP           VCPConfig           `mapstructure:"vcp" json:"vcp" yaml:"vcp"`
	CupHandle     CupHandleConfig     `mapstructure:"cup_handle" json:"cup_handle" yaml:"cup_handle"`
	Triangle      TriangleConfig      `mapstructure:"triangle" json:"triangle" yaml:"triangle"`
	Wedge         WedgeConfig         `mapstructure:"wedge" json:"wedge" yaml:"wedge"`
	Channel       ChannelConfig       `mapstructure:"channel" json:"channel" yaml:"channel"`
	HeadShoulders HeadShouldersConfig `mapstructure:"head_shoulders" json:"head_shoulders" yaml:"head_shoulders"`
	Double        DoubleConfig        `mapstructure:"double" json:"double" yaml:"double"`
	MAPullback    MAPullbackConfig    `mapstructure:"ma_pullback" json:"ma_pullback" yaml:"ma_pullback"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var cfg Config
	_ = defaults.Set(&cfg)
	return cfg
}

// Validate applies defaults to zero fields and checks every bound.
func (c *Config) Validate() error {
	return prepare(c)
}

// TrendlineConfig holds the settings shared by the line-pair classifiers.
type TrendlineConfig struct {
	MinBars   int     `mapstructure:"min_bars" json:"min_bars" yaml:"min_bars" default:"60" validate:"gte=20"`
	Windows   []int   `mapstructure:"windows" json:"windows" yaml:"windows" default:"[40,60,80,100]" validate:"min=1,dive,gte=20"`
	ATRPeriod int     `mapstructure:"atr_period" json:"atr_period" yaml:"atr_period" default:"14" validate:"gte=2"`
	PivotK    float64 `mapstructure:"pivot_k" json:"pivot_k" yaml:"pivot_k" default:"1.5" validate:"gt=0"`
	// LineTolATR is the inlier distance for boundary fits in ATR multiples.
	LineTolATR float64 `mapstructure:"line_tol_atr" json:"line_tol_atr" yaml:"line_tol_atr" default:"0.5" validate:"gt=0"`
	MinTouches int     `mapstructure:"min_touches" json:"min_touches" yaml:"min_touches" default:"2" validate:"gte=2"`
	// FitIterations caps the pairs sampled by the line fitter.
	FitIterations int   `mapstructure:"fit_iterations" json:"fit_iterations" yaml:"fit_iterations" default:"200" validate:"gte=1"`
	FitSeed       int64 `mapstructure:"fit_seed" json:"fit_seed" yaml:"fit_seed" default:"42"`
}

// TriangleConfig configures the triangle classifier.
type TriangleConfig struct {
	TrendlineConfig `mapstructure:",squash" yaml:",inline"`
	// MinConvergence is the fraction by which the boundary gap must shrink
	// from window start to end.
	MinConvergence float64 `mapstructure:"min_convergence" json:"min_convergence" yaml:"min_convergence" default:"0.2" validate:"gt=0,lt=1"`
	// FlatATR bounds the pivot stdev of a flat boundary in ATR multiples.
	FlatATR       float64 `mapstructure:"flat_atr" json:"flat_atr" yaml:"flat_atr" default:"1.0" validate:"gt=0"`
	MinSlopeRatio float64 `mapstructure:"min_slope_ratio" json:"min_slope_ratio" yaml:"min_slope_ratio" default:"0.5" validate:"gt=0"`
	MaxSlopeRatio float64 `mapstructure:"max_slope_ratio" json:"max_slope_ratio" yaml:"max_slope_ratio" default:"2.0" validate:"gtfield=MinSlopeRatio"`
}

// WedgeConfig configures the wedge classifier.
type WedgeConfig struct {
	TrendlineConfig `mapstructure:",squash" yaml:",inline"`
	MinConvergence  float64 `mapstructure:"min_convergence" json:"min_convergence" yaml:"min_convergence" default:"0.2" validate:"gt=0,lt=1"`
	// StrongVolumeTau is the volume trend below which a wedge can be strong.
	// Zero selects the default; use a small value such as 0.001 for "any
	// non-rising volume".
	StrongVolumeTau float64 `mapstructure:"strong_volume_tau" json:"strong_volume_tau" yaml:"strong_volume_tau" default:"-0.2" validate:"gte=-1,lte=1"`
}

// ChannelConfig configures the channel classifier.
type ChannelConfig struct {
	TrendlineConfig `mapstructure:",squash" yaml:",inline"`
	MinSlopeRatio   float64 `mapstructure:"min_slope_ratio" json:"min_slope_ratio" yaml:"min_slope_ratio" default:"0.7" validate:"gt=0"`
	MaxSlopeRatio   float64 `mapstructure:"max_slope_ratio" json:"max_slope_ratio" yaml:"max_slope_ratio" default:"1.3" validate:"gtfield=MinSlopeRatio"`
	// SidewaysDrift bounds each boundary's drift over the window as a
	// fraction of price.
	SidewaysDrift float64 `mapstructure:"sideways_drift" json:"sideways_drift" yaml:"sideways_drift" default:"0.02" validate:"gt=0"`
	MinWidthATR   float64 `mapstructure:"min_width_atr" json:"min_width_atr" yaml:"min_width_atr" default:"2" validate:"gt=0"`
	MaxWidthATR   float64 `mapstructure:"max_width_atr" json:"max_width_atr" yaml:"max_width_atr" default:"15" validate:"gtfield=MinWidthATR"`
}

// HeadShouldersConfig configures the head-and-shoulders classifier.
type HeadShouldersConfig struct {
	MinBars   int     `mapstructure:"min_bars" json:"min_bars" yaml:"min_bars" default:"80" validate:"gte=20"`
	ATRPeriod int     `mapstructure:"atr_period" json:"atr_period" yaml:"atr_period" default:"14" validate:"gte=2"`
	PivotK    float64 `mapstructure:"pivot_k" json:"pivot_k" yaml:"pivot_k" default:"1.5" validate:"gt=0"`
	// HeadATRMult is the minimum head prominence over the higher shoulder.
	HeadATRMult      float64 `mapstructure:"head_atr_mult" json:"head_atr_mult" yaml:"head_atr_mult" default:"1.0" validate:"gt=0"`
	ShoulderSymmetry float64 `mapstructure:"shoulder_symmetry" json:"shoulder_symmetry" yaml:"shoulder_symmetry" default:"0.85" validate:"gt=0,lte=1"`
	NecklineMinR2    float64 `mapstructure:"neckline_min_r2" json:"neckline_min_r2" yaml:"neckline_min_r2" default:"0.8" validate:"gte=0,lte=1"`
	// MaxNecklineTilt bounds the neckline's rise or fall across the pattern
	// relative to the head height.
	MaxNecklineTilt float64 `mapstructure:"max_neckline_tilt" json:"max_neckline_tilt" yaml:"max_neckline_tilt" default:"0.6" validate:"gt=0"`
	PriorTrendBars  int     `mapstructure:"prior_trend_bars" json:"prior_trend_bars" yaml:"prior_trend_bars" default:"60" validate:"gte=10"`
	PriorTrendTau   float64 `mapstructure:"prior_trend_tau" json:"prior_trend_tau" yaml:"prior_trend_tau" default:"0.3" validate:"gt=0,lte=1"`
	PriorTrendMove  float64 `mapstructure:"prior_trend_move" json:"prior_trend_move" yaml:"prior_trend_move" default:"0.05" validate:"gt=0"`
	MaxVolumeTau    float64 `mapstructure:"max_volume_tau" json:"max_volume_tau" yaml:"max_volume_tau" default:"0" validate:"gte=-1,lte=1"`
	// AllowUnconfirmed emits patterns before price crosses the neckline.
	AllowUnconfirmed bool `mapstructure:"allow_unconfirmed" json:"allow_unconfirmed" yaml:"allow_unconfirmed"`
	// MaxAgeBars bounds the distance from the right shoulder to the last bar.
	MaxAgeBars int `mapstructure:"max_age_bars" json:"max_age_bars" yaml:"max_age_bars" default:"60" validate:"gte=1"`
}

// DoubleConfig configures the double and triple top/bottom classifier.
type DoubleConfig struct {
	MinBars   int     `mapstructure:"min_bars" json:"min_bars" yaml:"min_bars" default:"60" validate:"gte=20"`
	ATRPeriod int     `mapstructure:"atr_period" json:"atr_period" yaml:"atr_period" default:"14" validate:"gte=2"`
	PivotK    float64 `mapstructure:"pivot_k" json:"pivot_k" yaml:"pivot_k" default:"1.5" validate:"gt=0"`
	// Tolerance is the largest price difference between matching pivots as a
	// fraction of their average.
	Tolerance     float64 `mapstructure:"tolerance" json:"tolerance" yaml:"tolerance" default:"0.03" validate:"gt=0,lt=1"`
	MinSeparation int     `mapstructure:"min_separation" json:"min_separation" yaml:"min_separation" default:"10" validate:"gte=2"`
	MaxSeparation int     `mapstructure:"max_separation" json:"max_separation" yaml:"max_separation" default:"60" validate:"gtfield=MinSeparation"`
	MinDepthATR   float64 `mapstructure:"min_depth_atr" json:"min_depth_atr" yaml:"min_depth_atr" default:"2" validate:"gt=0"`
	// MaxOvershoot bounds how far the last pivot may exceed the first in the
	// reversal direction.
	MaxOvershoot float64 `mapstructure:"max_overshoot" json:"max_overshoot" yaml:"max_overshoot" default:"0.02" validate:"gte=0,lt=1"`
	MaxAgeBars   int     `mapstructure:"max_age_bars" json:"max_age_bars" yaml:"max_age_bars" default:"60" validate:"gte=1"`
}

// CupHandleConfig configures the cup-and-handle classifier.
type CupHandleConfig struct {
	MinBars       int     `mapstructure:"min_bars" json:"min_bars" yaml:"min_bars" default:"80" validate:"gte=20"`
	ATRPeriod     int     `mapstructure:"atr_period" json:"atr_period" yaml:"atr_period" default:"14" validate:"gte=2"`
	PivotK        float64 `mapstructure:"pivot_k" json:"pivot_k" yaml:"pivot_k" default:"2.0" validate:"gt=0"`
	MinCupBars    int     `mapstructure:"min_cup_bars" json:"min_cup_bars" yaml:"min_cup_bars" default:"30" validate:"gte=5"`
	MaxCupBars    int     `mapstructure:"max_cup_bars" json:"max_cup_bars" yaml:"max_cup_bars" default:"150" validate:"gtfield=MinCupBars"`
	MinDepth      float64 `mapstructure:"min_depth" json:"min_depth" yaml:"min_depth" default:"0.12" validate:"gt=0,lt=1"`
	MaxDepth      float64 `mapstructure:"max_depth" json:"max_depth" yaml:"max_depth" default:"0.60" validate:"gtfield=MinDepth,lt=1"`
	RimTolATR     float64 `mapstructure:"rim_tol_atr" json:"rim_tol_atr" yaml:"rim_tol_atr" default:"2" validate:"gt=0"`
	MinRoundness  float64 `mapstructure:"min_roundness" json:"min_roundness" yaml:"min_roundness" default:"0.35" validate:"gte=0,lte=1"`
	MinHandleBars int     `mapstructure:"min_handle_bars" json:"min_handle_bars" yaml:"min_handle_bars" default:"5" validate:"gte=1"`
	MaxHandleBars int     `mapstructure:"max_handle_bars" json:"max_handle_bars" yaml:"max_handle_bars" default:"25" validate:"gtfield=MinHandleBars"`
	// Handle pullback bounds as a fraction of the cup depth (left rim minus
	// bottom).
	MinHandleRetrace float64 `mapstructure:"min_handle_retrace" json:"min_handle_retrace" yaml:"min_handle_retrace" default:"0.05" validate:"gt=0,lt=1"`
	MaxHandleRetrace float64 `mapstructure:"max_handle_retrace" json:"max_handle_retrace" yaml:"max_handle_retrace" default:"0.15" validate:"gtfield=MinHandleRetrace,lt=1"`
	// DryVolumeRatio is the handle-to-prior volume ratio that counts as
	// volume drying up.
	DryVolumeRatio float64 `mapstructure:"dry_volume_ratio" json:"dry_volume_ratio" yaml:"dry_volume_ratio" default:"0.8" validate:"gt=0,lte=1"`
}

// VCPConfig configures the volatility contraction classifier.
type VCPConfig struct {
	MinBars     int     `mapstructure:"min_bars" json:"min_bars" yaml:"min_bars" default:"60" validate:"gte=20"`
	ATRPeriod   int     `mapstructure:"atr_period" json:"atr_period" yaml:"atr_period" default:"14" validate:"gte=2"`
	PivotK      float64 `mapstructure:"pivot_k" json:"pivot_k" yaml:"pivot_k" default:"1.5" validate:"gt=0"`
	MinBaseBars int     `mapstructure:"min_base_bars" json:"min_base_bars" yaml:"min_base_bars" default:"20" validate:"gte=5"`
	// MaxBaseRangeATR bounds the base's high-low range in ATR multiples.
	MaxBaseRangeATR float64 `mapstructure:"max_base_range_atr" json:"max_base_range_atr" yaml:"max_base_range_atr" default:"20" validate:"gt=0"`
	MinLegs         int     `mapstructure:"min_legs" json:"min_legs" yaml:"min_legs" default:"3" validate:"gte=2"`
	// ShrinkRatio is the largest allowed decline of a leg relative to the
	// previous one.
	ShrinkRatio     float64 `mapstructure:"shrink_ratio" json:"shrink_ratio" yaml:"shrink_ratio" default:"0.8" validate:"gt=0,lt=1"`
	MaxFirstLeg     float64 `mapstructure:"max_first_leg" json:"max_first_leg" yaml:"max_first_leg" default:"0.40" validate:"gt=0,lt=1"`
	FinalLegMaxATR  float64 `mapstructure:"final_leg_max_atr" json:"final_leg_max_atr" yaml:"final_leg_max_atr" default:"5" validate:"gt=0"`
	ApproachATR     float64 `mapstructure:"approach_atr" json:"approach_atr" yaml:"approach_atr" default:"1.5" validate:"gt=0"`
	MaxAgeBars      int     `mapstructure:"max_age_bars" json:"max_age_bars" yaml:"max_age_bars" default:"40" validate:"gte=1"`
}

// MAPullbackConfig configures the moving-average pullback classifier.
type MAPullbackConfig struct {
	MinBars    int `mapstructure:"min_bars" json:"min_bars" yaml:"min_bars" default:"210" validate:"gte=50"`
	ATRPeriod  int `mapstructure:"atr_period" json:"atr_period" yaml:"atr_period" default:"14" validate:"gte=2"`
	FastPeriod int `mapstructure:"fast_period" json:"fast_period" yaml:"fast_period" default:"50" validate:"gte=2"`
	SlowPeriod int `mapstructure:"slow_period" json:"slow_period" yaml:"slow_period" default:"200" validate:"gtfield=FastPeriod"`
	// TrendBars is the lookback for the share of closes above the fast average.
	TrendBars     int     `mapstructure:"trend_bars" json:"trend_bars" yaml:"trend_bars" default:"20" validate:"gte=5"`
	MinAboveShare float64 `mapstructure:"min_above_share" json:"min_above_share" yaml:"min_above_share" default:"0.7" validate:"gt=0,lte=1"`
	MinPullback   float64 `mapstructure:"min_pullback" json:"min_pullback" yaml:"min_pullback" default:"0.03" validate:"gt=0,lt=1"`
	MaxPullback   float64 `mapstructure:"max_pullback" json:"max_pullback" yaml:"max_pullback" default:"0.15" validate:"gtfield=MinPullback,lt=1"`
	// MaxDistance bounds the close's distance above the fast average.
	MaxDistance float64 `mapstructure:"max_distance" json:"max_distance" yaml:"max_distance" default:"0.03" validate:"gt=0,lt=1"`
}

// prepare fills zero fields from default tags and validates the result.
func prepare(cfg interface{}) error {
	if err := defaults.Set(cfg); err != nil {
		return errors.Wrap(errors.ErrConfigInvalid, err.Error())
	}
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "%v", err)
	}
	return nil
}
