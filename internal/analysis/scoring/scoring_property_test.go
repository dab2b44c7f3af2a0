package scoring

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/models"
)

func walkCandles(steps []float64) []models.Candle {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, len(steps))
	price := 80.0
	for i, s := range steps {
		open := price
		price = math.Max(1, price*(1+s))
		spread := price * 0.01
		candles[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      open,
			High:      math.Max(open, price) + spread,
			Low:       math.Min(open, price) - spread,
			Close:     price,
			Volume:    1e6 * (1 + 0.5*math.Sin(float64(i))),
		}
	}
	return candles
}

// Scanning identical input twice yields identical scores and grades; only the
// detection timestamps may differ.
func TestProperty_PipelineDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	registry, err := patterns.NewRegistry(patterns.Config{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	p, err := NewPipeline(registry, Config{})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	properties.Property("repeated scans agree", prop.ForAll(
		func(steps []float64, regimeIdx int) bool {
			regimes := []models.MarketRegime{models.RegimeBull, models.RegimeBear, models.RegimeCorrection, models.RegimeRecovery, models.RegimeNeutral}
			req := ScanRequest{
				Symbol:    "DET",
				Timeframe: models.TimeframeDaily,
				Candles:   walkCandles(steps),
				Regime:    regimes[regimeIdx],
			}
			a, errA := p.Scan(context.Background(), req)
			b, errB := p.Scan(context.Background(), req)
			if errA != nil || errB != nil {
				return false
			}
			if a.Tier != b.Tier || len(a.Candidates) != len(b.Candidates) {
				return false
			}
			for i := range a.Candidates {
				x, y := a.Candidates[i], b.Candidates[i]
				if x.Type != y.Type || x.Score != y.Score || x.Grade != y.Grade ||
					x.Confidence != y.Confidence || x.StartIndex != y.StartIndex || x.EndIndex != y.EndIndex {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(220, gen.Float64Range(-0.03, 0.03)),
		gen.IntRange(0, 4),
	))

	properties.Property("scores stay in range and match their grade", prop.ForAll(
		func(steps []float64) bool {
			res, err := p.Scan(context.Background(), ScanRequest{Symbol: "RNG", Candles: walkCandles(steps)})
			if err != nil {
				return false
			}
			for i, c := range res.Candidates {
				if c.Score < 0 || c.Score > 100 || c.Grade != GradeFor(c.Score) {
					return false
				}
				if i > 0 && res.Candidates[i-1].Confidence < c.Confidence {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(220, gen.Float64Range(-0.03, 0.03)),
	))

	properties.TestingRun(t)
}
