package patterns

import (
	"math/rand"
	"testing"

	"pattern-scanner/internal/models"
)

// benchCandles returns a reproducible 500-bar random walk.
func benchCandles() []models.Candle {
	rng := rand.New(rand.NewSource(7))
	steps := make([]float64, 500)
	for i := range steps {
		steps[i] = (rng.Float64() - 0.48) * 0.04
	}
	volumes := make([]float64, 30)
	for i := range volumes {
		volumes[i] = 5e5 + rng.Float64()*1e6
	}
	return randomWalk(steps, volumes)
}

// BenchmarkClassifiers benchmarks each classifier on the same series.
func BenchmarkClassifiers(b *testing.B) {
	registry, err := NewRegistry(Config{})
	if err != nil {
		b.Fatal(err)
	}
	candles := benchCandles()

	for _, c := range registry.Classifiers() {
		b.Run(c.ID(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				c.Find(candles, "1d", "BENCH")
			}
		})
	}
}

// BenchmarkRegistryRunAll benchmarks a full sequential pass.
func BenchmarkRegistryRunAll(b *testing.B) {
	registry, err := NewRegistry(Config{})
	if err != nil {
		b.Fatal(err)
	}
	candles := benchCandles()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		registry.RunAll(candles, "1d", "BENCH")
	}
}
