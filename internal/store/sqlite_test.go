package store

import (
	"context"
	"math"
	"testing"
	"time"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

func scored(symbol string, pt analysis.PatternType, score, confidence float64) scoring.ScoredCandidate {
	detected := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := analysis.Candidate{
		Symbol:     symbol,
		Timeframe:  models.TimeframeDaily,
		Type:       pt,
		Bias:       pt.Bias(),
		DetectedAt: detected,
		StartIndex: 10,
		EndIndex:   70,
		StartTime:  detected.AddDate(0, 0, -60),
		EndTime:    detected,
		Geometry: map[string]float64{
			analysis.GeoEntry:  100,
			analysis.GeoStop:   95,
			analysis.GeoTarget: 115,
		},
		Touches:    map[string]int{"contractions": 3},
		Confidence: confidence,
		Breakout:   &analysis.Breakout{Direction: analysis.BreakoutUp, Price: 101, VolumeZ: 2.1, BarIndex: 70},
	}
	return scoring.ScoredCandidate{
		Candidate: c,
		Regime:    models.RegimeBull,
		Tier:      models.Tier1,
		Score:     score,
		Grade:     scoring.GradeFor(score),
		Plan:      scoring.NewPlan(c),
	}
}

func TestScanRunRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := &ScanRun{
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Timeframe:  models.TimeframeDaily,
		Regime:     models.RegimeBull,
		Symbols:    3,
		Rejected:   1,
	}
	cands := []scoring.ScoredCandidate{
		scored("AAPL", analysis.PatternVCP, 88, 0.83),
		scored("MSFT", analysis.PatternVCP, 91, 0.86),
		scored("NVDA", analysis.PatternCupAndHandle, 70, 0.65),
	}
	if err := store.SaveScanRun(ctx, run, cands); err != nil {
		t.Fatalf("SaveScanRun: %v", err)
	}
	if run.ID == "" || run.Candidates != 3 {
		t.Fatalf("run after save = %+v", run)
	}

	got, err := store.GetScanRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetScanRun: %v", err)
	}
	if got.Symbols != 3 || got.Rejected != 1 || got.Candidates != 3 || got.Regime != models.RegimeBull {
		t.Errorf("stored run = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}

	top, err := store.TopCandidates(ctx, CandidateFilter{Pattern: string(analysis.PatternVCP), Limit: 5})
	if err != nil {
		t.Fatalf("TopCandidates: %v", err)
	}
	if len(top) != 2 || top[0].Symbol != "MSFT" || top[1].Symbol != "AAPL" {
		t.Fatalf("top VCP = %+v", top)
	}
	first := top[0]
	if first.RunID != run.ID || first.Grade != string(scoring.GradeAPlus) {
		t.Errorf("first = %+v", first)
	}
	if first.Candidate.Plan.RiskPerShare == nil || *first.Candidate.Plan.RiskPerShare != 5 {
		t.Errorf("payload plan = %+v", first.Candidate.Plan)
	}
	if first.Candidate.Breakout == nil || first.Candidate.Breakout.Direction != analysis.BreakoutUp {
		t.Errorf("payload breakout = %+v", first.Candidate.Breakout)
	}
	if first.Candidate.Touches["contractions"] != 3 {
		t.Errorf("payload touches = %v", first.Candidate.Touches)
	}

	limited, err := store.TopCandidates(ctx, CandidateFilter{MinScore: 80})
	if err != nil {
		t.Fatalf("TopCandidates: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("candidates scoring >= 80 = %d, want 2", len(limited))
	}

	runs, err := store.ListScanRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListScanRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("runs = %+v", runs)
	}
}

func TestGetScanRunNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetScanRun(context.Background(), "missing")
	if !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("error = %v, want ErrDataNotFound", err)
	}
}

func TestCandlesQueries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	candles := generateTestCandles(10, 50, 1e6)
	if _, err := store.SaveCandles(ctx, "AAPL", models.TimeframeDaily, candles); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}
	// Re-importing overlapping bars replaces them.
	if _, err := store.SaveCandles(ctx, "AAPL", models.TimeframeDaily, candles[5:]); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}

	window, err := store.GetCandles(ctx, "AAPL", models.TimeframeDaily, candles[2].Timestamp, candles[4].Timestamp)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(window) != 3 || !window[0].Timestamp.Equal(candles[2].Timestamp) {
		t.Errorf("window = %+v", window)
	}

	fresh, err := store.GetCandlesFreshness(ctx, "AAPL", models.TimeframeDaily)
	if err != nil {
		t.Fatalf("GetCandlesFreshness: %v", err)
	}
	if !fresh.Equal(candles[9].Timestamp) {
		t.Errorf("freshness = %v, want %v", fresh, candles[9].Timestamp)
	}

	symbols, err := store.ListSymbols(ctx, "")
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0].Bars != 10 || !symbols[0].First.Equal(candles[0].Timestamp) {
		t.Errorf("symbols = %+v", symbols)
	}

	if _, err := store.GetCandles(ctx, "ZZZZ", models.TimeframeDaily, time.Time{}, time.Time{}); !errors.Is(err, errors.ErrSymbolNotFound) {
		t.Errorf("unknown symbol error = %v", err)
	}

	n, err := store.DeleteCandles(ctx, "AAPL", models.TimeframeDaily)
	if err != nil || n != 10 {
		t.Errorf("DeleteCandles = %d, %v", n, err)
	}
}

func TestSaveCandlesRejectsInvalidBars(t *testing.T) {
	store := openTestStore(t)
	candles := generateTestCandles(3, 50, 1e6)
	candles[1].Volume = math.NaN()

	_, err := store.SaveCandles(context.Background(), "BAD", models.TimeframeDaily, candles)
	if !errors.Is(err, errors.ErrMissingColumns) {
		t.Fatalf("error = %v, want ErrMissingColumns", err)
	}
	if _, err := store.GetCandles(context.Background(), "BAD", models.TimeframeDaily, time.Time{}, time.Time{}); !errors.Is(err, errors.ErrSymbolNotFound) {
		t.Errorf("partial import should have been rolled back, got %v", err)
	}
}
