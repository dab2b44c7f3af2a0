package scoring

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/models"
)

func benchRequests(n int) []ScanRequest {
	rng := rand.New(rand.NewSource(11))
	reqs := make([]ScanRequest, n)
	for i := range reqs {
		steps := make([]float64, 400)
		for j := range steps {
			steps[j] = (rng.Float64() - 0.48) * 0.04
		}
		reqs[i] = ScanRequest{
			Symbol:    fmt.Sprintf("SYM%03d", i),
			Timeframe: models.TimeframeDaily,
			Candles:   walkCandles(steps),
			Regime:    models.RegimeNeutral,
		}
	}
	return reqs
}

// BenchmarkPipelineScan benchmarks one symbol through every classifier.
func BenchmarkPipelineScan(b *testing.B) {
	registry, err := patterns.NewRegistry(patterns.Config{})
	if err != nil {
		b.Fatal(err)
	}
	p, err := NewPipeline(registry, Config{})
	if err != nil {
		b.Fatal(err)
	}
	req := benchRequests(1)[0]
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Scan(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkScreener benchmarks a 50-symbol screen at several worker counts.
func BenchmarkScreener(b *testing.B) {
	registry, err := patterns.NewRegistry(patterns.Config{})
	if err != nil {
		b.Fatal(err)
	}
	p, err := NewPipeline(registry, Config{})
	if err != nil {
		b.Fatal(err)
	}
	reqs := benchRequests(50)
	ctx := context.Background()

	for _, workers := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			s := NewScreener(p, workers)
			for i := 0; i < b.N; i++ {
				if _, err := s.ScanAll(ctx, reqs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
