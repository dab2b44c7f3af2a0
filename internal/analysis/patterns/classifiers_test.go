package patterns

import (
	"math"
	"testing"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

// zigzagAnchors alternates between bottom(i) and top(i) every step bars over
// bars [0, n), starting on the bottom boundary.
func zigzagAnchors(n, step int, top, bottom func(i float64) float64) []anchor {
	var out []anchor
	for k, i := 0, 0; i < n; k, i = k+1, i+step {
		p := bottom(float64(i))
		if k%2 == 1 {
			p = top(float64(i))
		}
		out = append(out, anchor{i, p})
	}
	return out
}

// dryingVolume falls linearly across the series.
func dryingVolume(n int) []float64 {
	volume := make([]float64, n)
	for i := range volume {
		volume[i] = 2_000_000 - 12_000*float64(i)
	}
	return volume
}

func findType(cands []analysis.Candidate, pt analysis.PatternType) (analysis.Candidate, bool) {
	for _, c := range cands {
		if c.Type == pt {
			return c, true
		}
	}
	return analysis.Candidate{}, false
}

type positiveCase struct {
	name     string
	detector string
	candles  []models.Candle
	want     analysis.PatternType
	// breakout is the expected direction, or "" for none.
	breakout analysis.BreakoutDirection
	strong   bool
}

func checkPositive(t *testing.T, r *Registry, tc positiveCase) analysis.Candidate {
	t.Helper()
	c, ok := r.Lookup(tc.detector)
	if !ok {
		t.Fatalf("missing detector %s", tc.detector)
	}
	got, ok := findType(c.Find(tc.candles, models.TimeframeDaily, "FIX"), tc.want)
	if !ok {
		t.Fatalf("%s: no %s candidate", tc.detector, tc.want)
	}
	switch {
	case tc.breakout == "" && got.Breakout != nil:
		t.Errorf("unexpected breakout %+v", got.Breakout)
	case tc.breakout != "" && got.Breakout == nil:
		t.Errorf("expected a %s breakout, got none", tc.breakout)
	case tc.breakout != "" && got.Breakout.Direction != tc.breakout:
		t.Errorf("breakout direction = %s, want %s", got.Breakout.Direction, tc.breakout)
	}
	if got.Strong != tc.strong {
		t.Errorf("strong = %v, want %v (confidence %.3f)", got.Strong, tc.strong, got.Confidence)
	}
	if got.Confidence < analysis.MinConfidence || got.Confidence > 1 {
		t.Errorf("confidence out of range: %v", got.Confidence)
	}
	return got
}

func TestLinePatternFixtures(t *testing.T) {
	line := func(n int, top, bottom func(i float64) float64, volume func(int) []float64, tail ...anchor) []models.Candle {
		closes := anchorPath(append(zigzagAnchors(n, 10, top, bottom), tail...)...)
		var v []float64
		if volume != nil {
			v = volume(len(closes))
		}
		return buildCandles(closes, 0.5, v)
	}

	tests := []positiveCase{
		{
			name:     "ascending triangle breaks out through flat resistance",
			detector: "triangle",
			candles: line(121,
				func(float64) float64 { return 120 },
				func(i float64) float64 { return 100 + 0.12*i },
				nil, anchor{125, 124}),
			want:     analysis.PatternTriangleAscending,
			breakout: analysis.BreakoutUp,
			strong:   true,
		},
		{
			name:     "descending triangle breaks down through flat support",
			detector: "triangle",
			candles: line(111,
				func(i float64) float64 { return 120 - 0.12*i },
				func(float64) float64 { return 100 },
				nil, anchor{115, 96}),
			want:     analysis.PatternTriangleDescending,
			breakout: analysis.BreakoutDown,
			strong:   true,
		},
		{
			name:     "symmetrical triangle breaks out upward",
			detector: "triangle",
			candles: line(121,
				func(i float64) float64 { return 120 - 0.06*i },
				func(i float64) float64 { return 100 + 0.06*i },
				nil, anchor{125, 116}),
			want:     analysis.PatternTriangleSymmetrical,
			breakout: analysis.BreakoutUp,
			strong:   true,
		},
		{
			name:     "rising wedge on drying volume breaks down",
			detector: "wedge",
			candles: line(121,
				func(i float64) float64 { return 100 + 0.10*i },
				func(i float64) float64 { return 90 + 0.18*i },
				dryingVolume, anchor{125, 104}),
			want:     analysis.PatternWedgeRising,
			breakout: analysis.BreakoutDown,
			strong:   true,
		},
		{
			name:     "rising wedge on flat volume is not strong",
			detector: "wedge",
			candles: line(121,
				func(i float64) float64 { return 100 + 0.10*i },
				func(i float64) float64 { return 90 + 0.18*i },
				nil, anchor{125, 104}),
			want:     analysis.PatternWedgeRising,
			breakout: analysis.BreakoutDown,
			strong:   false,
		},
		{
			name:     "falling wedge on drying volume breaks out",
			detector: "wedge",
			candles: line(121,
				func(i float64) float64 { return 130 - 0.18*i },
				func(i float64) float64 { return 120 - 0.10*i },
				dryingVolume, anchor{125, 114}),
			want:     analysis.PatternWedgeFalling,
			breakout: analysis.BreakoutUp,
			strong:   true,
		},
		{
			name:     "parallel rising channel",
			detector: "channel",
			candles: line(121,
				func(i float64) float64 { return 110 + 0.4*i },
				func(i float64) float64 { return 100 + 0.4*i },
				nil),
			want:   analysis.PatternChannelUp,
			strong: true,
		},
		{
			name:     "parallel falling channel",
			detector: "channel",
			candles: line(121,
				func(i float64) float64 { return 160 - 0.4*i },
				func(i float64) float64 { return 150 - 0.4*i },
				nil),
			want:   analysis.PatternChannelDown,
			strong: true,
		},
		{
			name:     "sideways range",
			detector: "channel",
			candles: line(121,
				func(float64) float64 { return 110 },
				func(float64) float64 { return 100 },
				nil),
			want:   analysis.PatternChannelSideways,
			strong: true,
		},
	}

	r := defaultRegistry(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkPositive(t, r, tc)
		})
	}
}

func TestChannelRejectsWideningGap(t *testing.T) {
	channel := func(top func(i float64) float64) []models.Candle {
		bottom := func(i float64) float64 { return 100 + 0.4*i }
		return buildCandles(anchorPath(zigzagAnchors(121, 10, top, bottom)...), 0.5, nil)
	}
	ch, err := NewChannelClassifier(ChannelConfig{})
	if err != nil {
		t.Fatalf("NewChannelClassifier: %v", err)
	}

	// Slopes 0.42 and 0.40 sit well inside the parallel ratio band, yet the
	// gap grows by about 17% over the longest window.
	slight := channel(func(i float64) float64 { return 110 + 0.42*i })
	if got := ch.Find(slight, models.TimeframeDaily, "WIDE"); len(got) != 0 {
		t.Errorf("slightly diverging boundaries accepted: %+v", got)
	}
	wide := channel(func(i float64) float64 { return 150 + 0.5*i })
	if got := ch.Find(wide, models.TimeframeDaily, "WIDE"); len(got) != 0 {
		t.Errorf("diverging boundaries accepted: %+v", got)
	}

	control := channel(func(i float64) float64 { return 110 + 0.4*i })
	got := ch.Find(control, models.TimeframeDaily, "PAR")
	if len(got) != 1 || got[0].Type != analysis.PatternChannelUp {
		t.Fatalf("parallel control: got %+v, want one ChannelUp", got)
	}
	if gs, ge := got[0].Geometry["gap_start"], got[0].Geometry["gap_end"]; math.Abs(gs-ge) > 1e-6 {
		t.Errorf("parallel gap changed from %v to %v", gs, ge)
	}
}

func TestDoubleFixtures(t *testing.T) {
	tests := []positiveCase{
		{
			name:     "double top confirmed below the neckline",
			candles:  buildCandles(anchorPath(anchor{0, 90}, anchor{30, 120}, anchor{50, 108}, anchor{70, 120}, anchor{90, 100}), 0.5, nil),
			want:     analysis.PatternDoubleTop,
			breakout: analysis.BreakoutDown,
			strong:   true,
		},
		{
			name:     "double bottom confirmed above the neckline",
			candles:  buildCandles(anchorPath(anchor{0, 130}, anchor{30, 100}, anchor{50, 112}, anchor{70, 100}, anchor{90, 120}), 0.5, nil),
			want:     analysis.PatternDoubleBottom,
			breakout: analysis.BreakoutUp,
			strong:   true,
		},
		{
			name:    "unconfirmed double top",
			candles: buildCandles(anchorPath(anchor{0, 90}, anchor{30, 120}, anchor{50, 108}, anchor{70, 120}, anchor{80, 112}), 0.5, nil),
			want:    analysis.PatternDoubleTop,
			strong:  false,
		},
		{
			name: "triple top",
			candles: buildCandles(anchorPath(anchor{0, 90}, anchor{30, 120}, anchor{45, 108}, anchor{60, 120},
				anchor{75, 108}, anchor{90, 120}, anchor{110, 100}), 0.5, nil),
			want:     analysis.PatternTripleTop,
			breakout: analysis.BreakoutDown,
			strong:   true,
		},
		{
			name: "triple bottom",
			candles: buildCandles(anchorPath(anchor{0, 130}, anchor{30, 100}, anchor{45, 112}, anchor{60, 100},
				anchor{75, 112}, anchor{90, 100}, anchor{110, 120}), 0.5, nil),
			want:     analysis.PatternTripleBottom,
			breakout: analysis.BreakoutUp,
			strong:   true,
		},
	}

	r := defaultRegistry(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.detector = "double"
			c := checkPositive(t, r, tc)
			if c.StartIndex != 30 {
				t.Errorf("start = %d, want first extreme at 30", c.StartIndex)
			}
		})
	}

	// Pivots used by a triple are not reported again as a double.
	d, _ := r.Lookup("double")
	for _, c := range d.Find(tests[3].candles, models.TimeframeDaily, "TT") {
		if c.Type != analysis.PatternTripleTop {
			t.Errorf("triple top also produced %s", c.Type)
		}
	}
}

// cupCloses is an advance to a left rim at 100 on bar 10, a parabolic cup
// with its bottom at 70 on bar 60, a right rim back at 100 on bar 110 and a
// handle pulling back to handleLow on bar 118.
func cupCloses(handleLow float64, tail ...anchor) []float64 {
	closes := anchorPath(anchor{0, 80}, anchor{10, 100})
	for i := 11; i <= 110; i++ {
		x := float64(i-60) / 50
		closes = append(closes, 70+30*x*x)
	}
	handle := anchorPath(append([]anchor{{110, 100}, {118, handleLow}}, tail...)...)
	return append(closes, handle[111:]...)
}

// cupVolume is quieter during the handle (110, handleEnd] and heavy after it.
func cupVolume(n, handleEnd int) []float64 {
	volume := make([]float64, n)
	for i := range volume {
		switch {
		case i <= 110:
			volume[i] = 1_000_000
		case i <= handleEnd:
			volume[i] = 600_000
		default:
			volume[i] = 3_000_000
		}
	}
	return volume
}

func TestCupHandleFixtures(t *testing.T) {
	breakout := cupCloses(97, anchor{124, 99.5}, anchor{126, 103})
	forming := cupCloses(97, anchor{125, 99})

	tests := []positiveCase{
		{
			name:     "handle breakout on heavy volume",
			candles:  buildCandles(breakout, 0.5, cupVolume(len(breakout), 124)),
			want:     analysis.PatternCupAndHandle,
			breakout: analysis.BreakoutUp,
			strong:   true,
		},
		{
			name:    "handle still forming",
			candles: buildCandles(forming, 0.5, cupVolume(len(forming), len(forming)-1)),
			want:    analysis.PatternCupAndHandle,
			strong:  true,
		},
	}

	r := defaultRegistry(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.detector = "cup_handle"
			c := checkPositive(t, r, tc)
			if c.StartIndex != 10 {
				t.Errorf("start = %d, want left rim at 10", c.StartIndex)
			}
			if tc.breakout != "" && c.Breakout.BarIndex != 125 {
				t.Errorf("breakout bar = %d, want 125", c.Breakout.BarIndex)
			}
			// 4 points below a 100.5 rim against a 31 point cup.
			if got := c.Evidence["handle_retrace"]; math.Abs(got-4.0/31) > 1e-9 {
				t.Errorf("handle retrace = %v, want %v", got, 4.0/31)
			}
		})
	}
}

func TestCupHandleRetraceIsFractionOfDepth(t *testing.T) {
	ch, err := NewCupHandleClassifier(CupHandleConfig{})
	if err != nil {
		t.Fatalf("NewCupHandleClassifier: %v", err)
	}
	find := func(handleLow float64) []analysis.Candidate {
		closes := cupCloses(handleLow, anchor{125, 99})
		return ch.Find(buildCandles(closes, 0.5, cupVolume(len(closes), len(closes)-1)), models.TimeframeDaily, "CUP")
	}

	// A 3% dip from the rim is 13% of the 31 point cup.
	shallow := find(97)
	if _, ok := findType(shallow, analysis.PatternCupAndHandle); !ok {
		t.Errorf("handle at 97 should qualify: %+v", shallow)
	}

	// A 12% dip from the rim is over 40% of the cup.
	deep := find(88)
	if c, ok := findType(deep, analysis.PatternCupAndHandle); ok {
		t.Errorf("handle at 88 retraces %v of the cup and should not qualify", c.Evidence["handle_retrace"])
	}
	rb, ok := findType(deep, analysis.PatternRoundingBottom)
	if !ok {
		t.Fatalf("cup without a valid handle should fall back to a rounding bottom: %+v", deep)
	}
	if rb.EndIndex != 110 {
		t.Errorf("rounding bottom ends at %d, want right rim 110", rb.EndIndex)
	}
}

func TestMAPullbackFixture(t *testing.T) {
	closes := anchorPath(anchor{0, 50}, anchor{250, 150}, anchor{259, 143})

	r := defaultRegistry(t)
	c := checkPositive(t, r, positiveCase{
		detector: "ma_pullback",
		candles:  buildCandles(closes, 0.5, nil),
		want:     analysis.PatternMAPullback,
		strong:   true,
	})
	if c.StartIndex != 250 || c.EndIndex != 259 {
		t.Errorf("window = [%d, %d], want [250, 259]", c.StartIndex, c.EndIndex)
	}
	if c.Evidence["bounce"] != 1 {
		t.Error("doji with a long lower shadow should count as a bounce")
	}

	// Opening at the high leaves no bounce: still emitted, no longer strong.
	candles := buildCandles(closes, 0.5, nil)
	candles[len(candles)-1].Open = candles[len(candles)-1].High
	checkPositive(t, r, positiveCase{
		detector: "ma_pullback",
		candles:  candles,
		want:     analysis.PatternMAPullback,
		strong:   false,
	})
}
