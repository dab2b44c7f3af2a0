package regime

import (
	"testing"
	"time"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

func barsFrom(closes []float64) []models.Candle {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1e6,
		}
	}
	return out
}

func TestClassify(t *testing.T) {
	rising := make([]float64, 300)
	falling := make([]float64, 300)
	for i := range rising {
		rising[i] = 100 + 0.5*float64(i)
		falling[i] = 300 - 0.7*float64(i)
	}
	correction := make([]float64, 260)
	for i := range correction {
		if i < 250 {
			correction[i] = 100 + 0.5*float64(i)
		} else {
			correction[i] = 224.5 - 3.5*float64(i-249)
		}
	}

	tests := []struct {
		name   string
		closes []float64
		want   models.MarketRegime
	}{
		{"steady uptrend", rising, models.RegimeBull},
		{"steady downtrend", falling, models.RegimeBear},
		{"sharp pullback from highs", correction, models.RegimeCorrection},
	}

	d, err := NewDetector(Config{})
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := d.Classify(barsFrom(tt.closes))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if info.Regime != tt.want {
				t.Errorf("regime = %s, want %s (info %+v)", info.Regime, tt.want, info)
			}
		})
	}
}

func TestClassifyNeedsHistory(t *testing.T) {
	d, _ := NewDetector(Config{})
	_, err := d.Classify(barsFrom(make([]float64, 100)))
	if !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
}

func TestNewDetectorValidates(t *testing.T) {
	if _, err := NewDetector(Config{FastPeriod: 200, SlowPeriod: 50}); !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("fast >= slow: error = %v", err)
	}
	if _, err := NewDetector(Config{CorrectionDrawdown: 0.3, BearDrawdown: 0.2}); !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("bear < correction: error = %v", err)
	}
	if cfg := DefaultConfig(); cfg.SlowPeriod != 200 || cfg.BearDrawdown != 0.20 {
		t.Errorf("DefaultConfig = %+v", cfg)
	}
}
