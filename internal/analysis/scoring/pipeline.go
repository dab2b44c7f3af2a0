package scoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
)

var validate = validator.New()

// liquidityWindow is the number of trailing bars averaged for the liquidity
// floor.
const liquidityWindow = 20

// Config holds the pipeline's input gates.
type Config struct {
	// MinBars rejects shorter series before any classifier runs.
	MinBars int `mapstructure:"min_bars" json:"min_bars" yaml:"min_bars" default:"60" validate:"gte=2"`
	// MinDollarVolume is the liquidity floor: last close times the 20-bar
	// average volume. Zero disables the check.
	MinDollarVolume float64 `mapstructure:"min_dollar_volume" json:"min_dollar_volume" yaml:"min_dollar_volume" validate:"gte=0"`
	// StagePeriod is the moving average period used to derive a trend tier
	// when the request carries none.
	StagePeriod int `mapstructure:"stage_period" json:"stage_period" yaml:"stage_period" default:"150" validate:"gte=2"`
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// ScanRequest is one symbol's bars and externally supplied tags.
type ScanRequest struct {
	Symbol    string
	Timeframe string
	Candles   []models.Candle
	Regime    models.MarketRegime
	// Tier may be empty, in which case it is derived from the Weinstein stage.
	Tier models.TrendTier
}

// ScoredCandidate is a candidate with its attached tags, score, grade and
// trade plan.
type ScoredCandidate struct {
	analysis.Candidate `yaml:",inline"`
	Regime             models.MarketRegime `json:"regime" yaml:"regime"`
	Tier               models.TrendTier    `json:"tier" yaml:"tier"`
	Score              float64             `json:"score" yaml:"score"`
	Grade              Grade               `json:"grade" yaml:"grade"`
	Plan               Plan                `json:"plan" yaml:"plan"`
}

// DetectorFailure records a classifier that failed for one symbol.
type DetectorFailure struct {
	Detector string `json:"detector" yaml:"detector"`
	Error    string `json:"error" yaml:"error"`
}

// ScanResult is the outcome of scanning one symbol.
type ScanResult struct {
	Symbol     string              `json:"symbol" yaml:"symbol"`
	Timeframe  string              `json:"timeframe" yaml:"timeframe"`
	Bars       int                 `json:"bars" yaml:"bars"`
	Regime     models.MarketRegime `json:"regime" yaml:"regime"`
	Tier       models.TrendTier    `json:"tier" yaml:"tier"`
	Candidates []ScoredCandidate   `json:"candidates" yaml:"candidates"`
	Failures   []DetectorFailure   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Duration   time.Duration       `json:"duration" yaml:"duration"`
}

// Metrics receives pipeline events. The zero-cost default discards them.
type Metrics interface {
	RecordScan(timeframe string, seconds float64)
	RecordCandidate(pattern string, grade string)
	RecordRejection(reason string)
	RecordDetectorFailure(detector string)
}

type nopMetrics struct{}

func (nopMetrics) RecordScan(string, float64)     {}
func (nopMetrics) RecordCandidate(string, string) {}
func (nopMetrics) RecordRejection(string)         {}
func (nopMetrics) RecordDetectorFailure(string)   {}

// Pipeline validates a symbol's bars, runs every registered classifier and
// scores the combined candidates. It holds no mutable state and is safe for
// concurrent use.
type Pipeline struct {
	cfg      Config
	registry *patterns.Registry
	logger   zerolog.Logger
	metrics  Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewPipeline creates a pipeline over registry. Zero config fields take
// their defaults.
func NewPipeline(registry *patterns.Registry, cfg Config, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "nil registry")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, err.Error())
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, err.Error())
	}
	p := &Pipeline{
		cfg:      cfg,
		registry: registry,
		logger:   zerolog.Nop(),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Registry returns the registry the pipeline runs.
func (p *Pipeline) Registry() *patterns.Registry {
	return p.registry
}

// Scan runs the full pipeline for one symbol. Rejected input returns a
// *errors.DataError; classifier failures are reported in the result and
// never abort the scan.
func (p *Pipeline) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	return p.scan(ctx, req, p.registry.Classifiers())
}

// Detect runs the pipeline with only the detector resolved from name, which
// may be an identifier, a pattern type or a synonym. Input gates, panic
// recovery and scoring are the same as for Scan.
func (p *Pipeline) Detect(ctx context.Context, name string, req ScanRequest) (*ScanResult, error) {
	c, ok := p.registry.LookupPattern(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrDetectorNotFound, "%q", name)
	}
	return p.scan(ctx, req, []patterns.Classifier{c})
}

func (p *Pipeline) scan(ctx context.Context, req ScanRequest, classifiers []patterns.Classifier) (*ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	logger := logging.WithSymbol(p.logger, req.Symbol)

	if err := p.check(req); err != nil {
		logging.LogRejection(logger, req.Symbol, err)
		p.metrics.RecordRejection(rejectionReason(err))
		return nil, err
	}

	regime := req.Regime
	if regime == "" {
		regime = models.RegimeNeutral
	}
	tier := req.Tier
	if tier == "" {
		tier = indicators.ClassifyStage(indicators.Closes(req.Candles), p.cfg.StagePeriod).Tier()
	}

	found, failures := p.runClassifiers(logger, req, classifiers)

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Confidence > found[j].Confidence
	})

	scored := make([]ScoredCandidate, len(found))
	for i, c := range found {
		score := Score(c, regime, tier)
		scored[i] = ScoredCandidate{
			Candidate: c,
			Regime:    regime,
			Tier:      tier,
			Score:     score,
			Grade:     GradeFor(score),
			Plan:      NewPlan(c),
		}
		p.metrics.RecordCandidate(string(c.Type), string(scored[i].Grade))
	}

	duration := time.Since(start)
	logging.LogScan(logger, req.Symbol, len(req.Candles), len(scored), duration)
	p.metrics.RecordScan(req.Timeframe, duration.Seconds())

	return &ScanResult{
		Symbol:     req.Symbol,
		Timeframe:  req.Timeframe,
		Bars:       len(req.Candles),
		Regime:     regime,
		Tier:       tier,
		Candidates: scored,
		Failures:   failures,
		Duration:   duration,
	}, nil
}

// check applies the length, completeness and liquidity gates.
func (p *Pipeline) check(req ScanRequest) error {
	n := len(req.Candles)
	if n < p.cfg.MinBars {
		return errors.NewDataError("bars", req.Symbol,
			fmt.Sprintf("%d bars, need %d", n, p.cfg.MinBars), errors.ErrInsufficientData)
	}
	for i, c := range req.Candles {
		if !c.Valid() {
			return errors.NewDataError("bars", req.Symbol,
				fmt.Sprintf("bar %d has a missing field", i), errors.ErrMissingColumns)
		}
	}
	if p.cfg.MinDollarVolume > 0 {
		volume := indicators.Volumes(req.Candles)
		avg := indicators.AverageVolume(volume, n-liquidityWindow, n-1)
		dollar := req.Candles[n-1].Close * avg
		if dollar < p.cfg.MinDollarVolume {
			return errors.NewDataError("liquidity", req.Symbol,
				fmt.Sprintf("dollar volume %.0f below %.0f", dollar, p.cfg.MinDollarVolume), errors.ErrIlliquid)
		}
	}
	return nil
}

// runClassifiers runs each classifier in its own goroutine and concatenates
// the results in the given order.
func (p *Pipeline) runClassifiers(logger zerolog.Logger, req ScanRequest, classifiers []patterns.Classifier) ([]analysis.Candidate, []DetectorFailure) {
	results := make([][]analysis.Candidate, len(classifiers))
	errs := make([]error, len(classifiers))

	var wg sync.WaitGroup
	for i, c := range classifiers {
		wg.Add(1)
		go func(i int, c patterns.Classifier) {
			defer wg.Done()
			results[i], errs[i] = runSafely(c, req)
		}(i, c)
	}
	wg.Wait()

	var found []analysis.Candidate
	var failures []DetectorFailure
	for i, c := range classifiers {
		if errs[i] != nil {
			logging.LogDetectorFailure(logging.WithDetector(logger, c.ID()), c.ID(), req.Symbol, errs[i])
			p.metrics.RecordDetectorFailure(c.ID())
			failures = append(failures, DetectorFailure{Detector: c.ID(), Error: errs[i].Error()})
			continue
		}
		found = append(found, results[i]...)
	}
	return found, failures
}

// runSafely converts a classifier panic into a *errors.DetectorError.
func runSafely(c patterns.Classifier, req ScanRequest) (out []analysis.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = errors.NewDetectorError(c.ID(), req.Symbol,
				fmt.Errorf("%w: %v", errors.ErrDetectorPanic, r))
		}
	}()
	return c.Find(req.Candles, req.Timeframe, req.Symbol), nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, errors.ErrMissingColumns):
		return "missing_columns"
	case errors.Is(err, errors.ErrIlliquid):
		return "illiquid"
	}
	return "other"
}
