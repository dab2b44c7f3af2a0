// Package analysis provides the shared output types of the chart pattern
// detection engine.
package analysis

import (
	"math"
	"time"
)

// PatternType identifies the chart pattern a candidate represents.
type PatternType string

const (
	PatternVCP                     PatternType = "VCP"
	PatternCupAndHandle            PatternType = "CupAndHandle"
	PatternRoundingBottom          PatternType = "RoundingBottom"
	PatternTriangleAscending       PatternType = "TriangleAscending"
	PatternTriangleDescending      PatternType = "TriangleDescending"
	PatternTriangleSymmetrical     PatternType = "TriangleSymmetrical"
	PatternWedgeRising             PatternType = "WedgeRising"
	PatternWedgeFalling            PatternType = "WedgeFalling"
	PatternChannelUp               PatternType = "ChannelUp"
	PatternChannelDown             PatternType = "ChannelDown"
	PatternChannelSideways         PatternType = "ChannelSideways"
	PatternHeadAndShoulders        PatternType = "HeadAndShoulders"
	PatternInverseHeadAndShoulders PatternType = "InverseHeadAndShoulders"
	PatternDoubleTop               PatternType = "DoubleTop"
	PatternDoubleBottom            PatternType = "DoubleBottom"
	PatternTripleTop               PatternType = "TripleTop"
	PatternTripleBottom            PatternType = "TripleBottom"
	PatternMAPullback              PatternType = "MAPullback"
)

// AllPatternTypes lists every pattern type in catalogue order.
var AllPatternTypes = []PatternType{
	PatternVCP,
	PatternCupAndHandle,
	PatternRoundingBottom,
	PatternTriangleAscending,
	PatternTriangleDescending,
	PatternTriangleSymmetrical,
	PatternWedgeRising,
	PatternWedgeFalling,
	PatternChannelUp,
	PatternChannelDown,
	PatternChannelSideways,
	PatternHeadAndShoulders,
	PatternInverseHeadAndShoulders,
	PatternDoubleTop,
	PatternDoubleBottom,
	PatternTripleTop,
	PatternTripleBottom,
	PatternMAPullback,
}

// PatternDirection represents the expected direction of a pattern.
type PatternDirection string

const (
	PatternBullish PatternDirection = "bullish"
	PatternBearish PatternDirection = "bearish"
	PatternNeutral PatternDirection = "neutral"
)

// Bias returns the directional bias conventionally attached to a pattern type.
func (t PatternType) Bias() PatternDirection {
	switch t {
	case PatternVCP, PatternCupAndHandle, PatternRoundingBottom, PatternTriangleAscending,
		PatternWedgeFalling, PatternChannelUp, PatternInverseHeadAndShoulders,
		PatternDoubleBottom, PatternTripleBottom, PatternMAPullback:
		return PatternBullish
	case PatternTriangleDescending, PatternWedgeRising, PatternChannelDown,
		PatternHeadAndShoulders, PatternDoubleTop, PatternTripleTop:
		return PatternBearish
	}
	return PatternNeutral
}

// BreakoutDirection is the side on which price left the pattern.
type BreakoutDirection string

const (
	BreakoutUp   BreakoutDirection = "Up"
	BreakoutDown BreakoutDirection = "Down"
)

// Breakout describes the bar on which price escaped the pattern boundary.
type Breakout struct {
	Direction BreakoutDirection `json:"direction" yaml:"direction"`
	Price     float64           `json:"price" yaml:"price"`
	VolumeZ   float64           `json:"volume_z" yaml:"volume_z"`
	BarIndex  int               `json:"bar_index" yaml:"bar_index"`
}

// Geometry keys shared across classifiers.
const (
	GeoEntry  = "entry"
	GeoStop   = "stop"
	GeoTarget = "target"
)

// Candidate is a single detected chart pattern.
type Candidate struct {
	Symbol     string             `json:"symbol" yaml:"symbol"`
	Timeframe  string             `json:"timeframe" yaml:"timeframe"`
	Type       PatternType        `json:"pattern_type" yaml:"pattern_type"`
	Bias       PatternDirection   `json:"bias" yaml:"bias"`
	DetectedAt time.Time          `json:"detected_at" yaml:"detected_at"`
	StartIndex int                `json:"start_index" yaml:"start_index"`
	EndIndex   int                `json:"end_index" yaml:"end_index"`
	StartTime  time.Time          `json:"start_time" yaml:"start_time"`
	EndTime    time.Time          `json:"end_time" yaml:"end_time"`
	Geometry   map[string]float64 `json:"geometry" yaml:"geometry"`
	Touches    map[string]int     `json:"touches,omitempty" yaml:"touches,omitempty"`
	Confidence float64            `json:"confidence" yaml:"confidence"`
	Strong     bool               `json:"strong" yaml:"strong"`
	Breakout   *Breakout          `json:"breakout,omitempty" yaml:"breakout,omitempty"`
	Evidence   map[string]float64 `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// Level returns a named geometry value when present and finite.
func (c *Candidate) Level(name string) (float64, bool) {
	v, ok := c.Geometry[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Bars returns the number of bars spanned by the candidate window.
func (c *Candidate) Bars() int {
	return c.EndIndex - c.StartIndex + 1
}

// Confidence thresholds shared by every classifier.
const (
	MinConfidence    = 0.40
	StrongConfidence = 0.75
)
