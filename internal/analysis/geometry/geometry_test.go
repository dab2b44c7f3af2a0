package geometry

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pattern-scanner/internal/analysis/indicators"
)

// constantATR returns an ATR series with the same value everywhere.
func constantATR(n int, v float64) indicators.Series {
	s := make(indicators.Series, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// path builds high/low series from a close path with a fixed half-range.
func path(closes []float64, halfRange float64) ([]float64, []float64) {
	high := make([]float64, len(closes))
	low := make([]float64, len(closes))
	for i, c := range closes {
		high[i] = c + halfRange
		low[i] = c - halfRange
	}
	return high, low
}

func TestZigZagBasicSwings(t *testing.T) {
	// up 0..10, down to 20, up to 30, down to 40
	var closes []float64
	for i := 0; i <= 10; i++ {
		closes = append(closes, 100+float64(i))
	}
	for i := 1; i <= 10; i++ {
		closes = append(closes, 110-float64(i))
	}
	for i := 1; i <= 10; i++ {
		closes = append(closes, 100+float64(i))
	}
	for i := 1; i <= 10; i++ {
		closes = append(closes, 110-float64(i))
	}
	high, low := path(closes, 0.5)

	pivots := ZigZag(high, low, constantATR(len(closes), 1), 2)

	want := []Pivot{
		{Index: 0, Price: 99.5, Kind: PivotLow},
		{Index: 10, Price: 110.5, Kind: PivotHigh},
		{Index: 20, Price: 99.5, Kind: PivotLow},
		{Index: 30, Price: 110.5, Kind: PivotHigh},
	}
	if len(pivots) != len(want) {
		t.Fatalf("got %d pivots %v, want %v", len(pivots), pivots, want)
	}
	for i := range want {
		if pivots[i] != want[i] {
			t.Errorf("pivot %d = %+v, want %+v", i, pivots[i], want[i])
		}
	}
}

func TestZigZagTiesKeepEarlier(t *testing.T) {
	closes := []float64{100, 105, 110, 110, 104, 100, 96}
	high, low := path(closes, 0.5)

	pivots := ZigZag(high, low, constantATR(len(closes), 1), 3)
	highs := Highs(pivots)
	if len(highs) != 1 || highs[0].Index != 2 {
		t.Fatalf("expected the first of two equal highs (index 2), got %v", pivots)
	}
}

func TestZigZagFlatSeries(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	high, low := path(closes, 0)
	if pivots := ZigZag(high, low, constantATR(50, 0), 2); len(pivots) != 0 {
		t.Errorf("expected no pivots for a flat series, got %v", pivots)
	}
}

func TestZigZagMonotonicSeries(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	high, low := path(closes, 0.5)
	pivots := ZigZag(high, low, constantATR(100, 1), 2)
	if len(Highs(pivots)) != 0 {
		t.Errorf("a strictly rising series has no confirmed swing high, got %v", pivots)
	}
}

func TestProperty_PivotsAlternate(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("no two consecutive pivots share a kind", prop.ForAll(
		func(steps []float64, k float64) bool {
			closes := make([]float64, len(steps))
			price := 100.0
			for i, s := range steps {
				price = math.Max(1, price+s)
				closes[i] = price
			}
			high, low := path(closes, 0.75)
			atr := indicators.ATR(high, low, closes, 14)

			pivots := ZigZag(high, low, atr, k)
			for i := 1; i < len(pivots); i++ {
				if pivots[i].Kind == pivots[i-1].Kind {
					return false
				}
				if pivots[i].Index <= pivots[i-1].Index {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(150, gen.Float64Range(-3, 3)),
		gen.Float64Range(0.5, 3),
	))

	properties.TestingRun(t)
}

func TestFitLineTwoPointsExact(t *testing.T) {
	line, ok := FitLine([]Point{{X: 2, Y: 10}, {X: 6, Y: 18}}, DefaultFitConfig(0.1))
	if !ok {
		t.Fatal("expected a fit")
	}
	if line.Slope != 2 || line.Intercept != 6 || line.RSquared != 1 || line.Touches != 2 {
		t.Errorf("got %+v, want slope 2 intercept 6 r2 1 touches 2", line)
	}
}

func TestFitLineNoFit(t *testing.T) {
	if _, ok := FitLine(nil, DefaultFitConfig(1)); ok {
		t.Error("expected no fit for empty input")
	}
	if _, ok := FitLine([]Point{{X: 1, Y: 1}}, DefaultFitConfig(1)); ok {
		t.Error("expected no fit for a single point")
	}
	if _, ok := FitLine([]Point{{X: 3, Y: 1}, {X: 3, Y: 5}}, DefaultFitConfig(1)); ok {
		t.Error("expected no fit for zero x-variance")
	}
}

func TestFitLineRejectsOutlier(t *testing.T) {
	points := []Point{
		{X: 0, Y: 100},
		{X: 10, Y: 110},
		{X: 20, Y: 120},
		{X: 30, Y: 130},
		{X: 15, Y: 150}, // outlier
	}
	line, ok := FitLine(points, DefaultFitConfig(0.5))
	if !ok {
		t.Fatal("expected a fit")
	}
	if math.Abs(line.Slope-1) > 1e-9 || math.Abs(line.Intercept-100) > 1e-9 {
		t.Errorf("outlier should be ignored, got slope %v intercept %v", line.Slope, line.Intercept)
	}
	if line.Touches != 4 {
		t.Errorf("touches = %d, want 4", line.Touches)
	}
	if line.RSquared < 0.999 {
		t.Errorf("r2 = %v, want ~1", line.RSquared)
	}
}

func TestFitLineDeterministic(t *testing.T) {
	var points []Point
	for i := 0; i < 40; i++ {
		y := 100 + 0.5*float64(i) + math.Sin(float64(i))*2
		points = append(points, Point{X: float64(i), Y: y})
	}
	cfg := FitConfig{Tolerance: 1, MaxIterations: 50, Seed: 7}

	first, ok := FitLine(points, cfg)
	if !ok {
		t.Fatal("expected a fit")
	}
	for i := 0; i < 5; i++ {
		again, _ := FitLine(points, cfg)
		if again != first {
			t.Fatalf("fit %d differs: %+v vs %+v", i, again, first)
		}
	}
}
