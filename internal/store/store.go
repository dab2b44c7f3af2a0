// Package store provides persistence of imported bars and scan history.
package store

import (
	"context"
	"time"

	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Bars
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) (int, error)
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)
	ListSymbols(ctx context.Context, timeframe string) ([]SymbolInfo, error)
	DeleteCandles(ctx context.Context, symbol, timeframe string) (int64, error)

	// Scan history
	SaveScanRun(ctx context.Context, run *ScanRun, candidates []scoring.ScoredCandidate) error
	GetScanRun(ctx context.Context, id string) (*ScanRun, error)
	ListScanRuns(ctx context.Context, limit int) ([]ScanRun, error)
	TopCandidates(ctx context.Context, filter CandidateFilter) ([]StoredCandidate, error)

	Close() error
}

// SymbolInfo summarises the stored bars of one symbol.
type SymbolInfo struct {
	Symbol    string    `json:"symbol" yaml:"symbol"`
	Timeframe string    `json:"timeframe" yaml:"timeframe"`
	Bars      int       `json:"bars" yaml:"bars"`
	First     time.Time `json:"first" yaml:"first"`
	Last      time.Time `json:"last" yaml:"last"`
}

// ScanRun is one persisted invocation of the screener.
type ScanRun struct {
	ID         string              `json:"id" yaml:"id"`
	StartedAt  time.Time           `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time           `json:"finished_at" yaml:"finished_at"`
	Timeframe  string              `json:"timeframe" yaml:"timeframe"`
	Regime     models.MarketRegime `json:"regime" yaml:"regime"`
	Symbols    int                 `json:"symbols" yaml:"symbols"`
	Rejected   int                 `json:"rejected" yaml:"rejected"`
	Candidates int                 `json:"candidates" yaml:"candidates"`
}

// StoredCandidate is a persisted scored candidate.
type StoredCandidate struct {
	RunID      string                  `json:"run_id" yaml:"run_id"`
	Symbol     string                  `json:"symbol" yaml:"symbol"`
	Timeframe  string                  `json:"timeframe" yaml:"timeframe"`
	Pattern    string                  `json:"pattern_type" yaml:"pattern_type"`
	Score      float64                 `json:"score" yaml:"score"`
	Grade      string                  `json:"grade" yaml:"grade"`
	Confidence float64                 `json:"confidence" yaml:"confidence"`
	Strong     bool                    `json:"strong" yaml:"strong"`
	DetectedAt time.Time               `json:"detected_at" yaml:"detected_at"`
	Candidate  scoring.ScoredCandidate `json:"candidate" yaml:"candidate"`
}

// CandidateFilter selects persisted candidates.
type CandidateFilter struct {
	Pattern  string
	Symbol   string
	RunID    string
	MinScore float64
	Limit    int
}
