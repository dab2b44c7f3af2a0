package indicators

import (
	"math"
	"testing"

	"pattern-scanner/internal/models"
)

func TestATRSimpleAverage(t *testing.T) {
	high := []float64{10, 12, 11, 13}
	low := []float64{8, 9, 9, 10}
	close := []float64{9, 11, 10, 12}

	// TR: 2, max(3,3,0)=3, max(2,0,2)=2, max(3,3,0)=3
	atr := ATR(high, low, close, 2)

	if _, ok := atr.At(0); ok {
		t.Fatalf("expected missing ATR at index 0")
	}
	want := []float64{math.NaN(), 2.5, 2.5, 2.5}
	for i := 1; i < len(want); i++ {
		got, ok := atr.At(i)
		if !ok || math.Abs(got-want[i]) > 1e-9 {
			t.Errorf("ATR[%d] = %v (ok=%v), want %v", i, got, ok, want[i])
		}
	}
}

func TestATRDegenerateInput(t *testing.T) {
	atr := ATR(nil, nil, nil, 14)
	if len(atr) != 0 {
		t.Fatalf("expected empty series, got %d", len(atr))
	}

	short := ATR([]float64{1, 2}, []float64{0, 1}, []float64{1, 2}, 14)
	if len(short) != 2 {
		t.Fatalf("expected series aligned with input")
	}
	if _, ok := short.Last(); ok {
		t.Errorf("expected missing values for series shorter than period")
	}
}

func TestSMA(t *testing.T) {
	sma := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if v, ok := sma.At(2); !ok || v != 2 {
		t.Errorf("SMA[2] = %v, want 2", v)
	}
	if v, ok := sma.Last(); !ok || v != 4 {
		t.Errorf("SMA[4] = %v, want 4", v)
	}
}

func TestVolumeZScoreZeroDeviation(t *testing.T) {
	z := VolumeZScore([]float64{100, 100, 100, 100, 100}, 3)
	for i := 2; i < 5; i++ {
		v, ok := z.At(i)
		if !ok || v != 0 {
			t.Errorf("z[%d] = %v (ok=%v), want 0", i, v, ok)
		}
	}
}

func TestVolumeZScoreSpike(t *testing.T) {
	volume := []float64{100, 110, 90, 100, 105, 95, 400}
	z := VolumeZScore(volume, 5)
	v, ok := z.Last()
	if !ok || v <= 1.5 {
		t.Errorf("expected a large positive z-score for the spike, got %v", v)
	}
}

func TestTrendTau(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"rising", []float64{1, 2, 3, 4, 5}, 1},
		{"falling", []float64{5, 4, 3, 2, 1}, -1},
		{"flat", []float64{3, 3, 3, 3}, 0},
		{"single", []float64{1}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrendTau(tt.values); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TrendTau(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}

	mostlyDown := []float64{10, 9, 9.5, 8, 7, 7.5, 6}
	if tau := TrendTau(mostlyDown); tau >= 0 {
		t.Errorf("expected negative tau for a declining sequence, got %v", tau)
	}
}

func TestCurvatureScoreBowlVersusV(t *testing.T) {
	n := 41
	bowl := make([]float64, n)
	vee := make([]float64, n)
	for i := 0; i < n; i++ {
		x := 2*float64(i)/float64(n-1) - 1
		bowl[i] = 100 + 20*x*x
		vee[i] = 100 + 20*math.Abs(x)
	}

	bowlScore := CurvatureScore(bowl)
	veeScore := CurvatureScore(vee)

	if bowlScore < 0.9 {
		t.Errorf("expected bowl score >= 0.9, got %v", bowlScore)
	}
	if veeScore >= 0.5 {
		t.Errorf("expected V score < 0.5, got %v", veeScore)
	}
	if bowlScore <= veeScore {
		t.Errorf("bowl (%v) should score higher than V (%v)", bowlScore, veeScore)
	}
}

func TestCurvatureScoreDegenerate(t *testing.T) {
	if s := CurvatureScore([]float64{1, 2, 3}); s != 0 {
		t.Errorf("short input: got %v, want 0", s)
	}
	if s := CurvatureScore([]float64{5, 5, 5, 5, 5, 5}); s != 0 {
		t.Errorf("flat input: got %v, want 0", s)
	}

	dome := make([]float64, 21)
	for i := range dome {
		x := float64(i-10) / 10
		dome[i] = 100 - 20*x*x
	}
	if s := CurvatureScore(dome); s != 0 {
		t.Errorf("inverted bowl: got %v, want 0", s)
	}
}

func TestClassifyStage(t *testing.T) {
	rising := make([]float64, 200)
	falling := make([]float64, 200)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 400 - float64(i)
	}

	if got := ClassifyStage(rising, 150); got != StageAdvancing {
		t.Errorf("rising: got stage %d, want %d", got, StageAdvancing)
	}
	if got := ClassifyStage(falling, 150); got != StageDeclining {
		t.Errorf("falling: got stage %d, want %d", got, StageDeclining)
	}
	if got := ClassifyStage(rising[:50], 150); got != StageUnknown {
		t.Errorf("short: got stage %d, want %d", got, StageUnknown)
	}

	if StageAdvancing.Tier() != models.Tier1 || StageDeclining.Tier() != models.Tier3 {
		t.Errorf("unexpected stage to tier mapping")
	}
}

func TestClassifyStageZeroAverage(t *testing.T) {
	zeros := make([]float64, 200)
	// Average is zero and flat: near-flattening must not be evaluated.
	if got := ClassifyStage(zeros, 150); got != StageBasing {
		t.Errorf("got stage %d, want %d", got, StageBasing)
	}
}

func TestSeriesAtOrNearest(t *testing.T) {
	s := Series{math.NaN(), math.NaN(), 2, 3}
	if v, ok := s.AtOrNearest(0); !ok || v != 2 {
		t.Errorf("AtOrNearest(0) = %v, want first valid 2", v)
	}
	if v, ok := s.AtOrNearest(3); !ok || v != 3 {
		t.Errorf("AtOrNearest(3) = %v, want 3", v)
	}
	empty := NewSeries(3)
	if _, ok := empty.AtOrNearest(1); ok {
		t.Errorf("expected no value for all-missing series")
	}
}
