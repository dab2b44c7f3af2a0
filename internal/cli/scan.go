package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/regime"
	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/data"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/internal/store"
)

// addScanCommands adds the detection commands.
func addScanCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newDetectCmd(app))
	rootCmd.AddCommand(newRegimeCmd(app))
}

// scanOptions are the flags shared by scan and detect.
type scanOptions struct {
	timeframe string
	regime    string
	benchmark string
	tier      string
	csv       bool
}

func (o *scanOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.timeframe, "timeframe", "t", "", "timeframe label (default from config)")
	cmd.Flags().StringVarP(&o.regime, "regime", "r", "", "market regime: Bull, Bear, Correction, Recovery or Neutral (default from config)")
	cmd.Flags().StringVar(&o.benchmark, "benchmark", "", "derive the regime from this stored symbol or CSV file (default from config)")
	cmd.Flags().StringVar(&o.tier, "tier", "", "trend tier: Tier1, Tier2 or Tier3 (default derived from the Weinstein stage)")
	cmd.Flags().BoolVar(&o.csv, "csv", false, "treat arguments as CSV files instead of stored symbols")
}

// resolve fills defaults from config and validates the tag flags. An
// explicit --regime wins over a benchmark, which wins over the configured
// default regime.
func (o *scanOptions) resolve(ctx context.Context, app *App) (models.MarketRegime, models.TrendTier, error) {
	if o.timeframe == "" {
		o.timeframe = app.Config.Scan.Timeframe
	}
	if o.benchmark == "" {
		o.benchmark = app.Config.Scan.Benchmark
	}
	marketRegime := app.Config.Regime()
	switch {
	case o.regime != "":
		marketRegime = models.ParseRegime(o.regime)
		if string(marketRegime) != o.regime {
			return "", "", errors.NewValidationError("regime", o.regime, "must be Bull, Bear, Correction, Recovery or Neutral")
		}
	case o.benchmark != "":
		info, err := app.benchmarkRegime(ctx, o.benchmark, o.timeframe)
		if err != nil {
			return "", "", err
		}
		marketRegime = info.Regime
	}
	var tier models.TrendTier
	if o.tier != "" {
		tier = models.ParseTier(o.tier)
		if tier == "" {
			return "", "", errors.NewValidationError("tier", o.tier, "must be Tier1, Tier2 or Tier3")
		}
	}
	return marketRegime, tier, nil
}

// benchmarkRegime classifies the regime from a benchmark's bars. Arguments
// ending in .csv are read as files, anything else from the store.
func (a *App) benchmarkRegime(ctx context.Context, benchmark, timeframe string) (regime.Info, error) {
	fromCSV := strings.EqualFold(filepath.Ext(benchmark), ".csv")
	symbol, candles, err := a.loadBars(ctx, benchmark, timeframe, fromCSV)
	if err != nil {
		return regime.Info{}, errors.Wrap(err, "loading benchmark")
	}
	info, err := a.Regime.Classify(candles)
	if err != nil {
		return regime.Info{}, errors.NewDataError("benchmark", symbol, "classifying regime", err)
	}
	a.Logger.Debug().
		Str("benchmark", symbol).
		Str("regime", string(info.Regime)).
		Float64("drawdown", info.Drawdown).
		Msg("Derived market regime")
	return info, nil
}

// loadBars reads one symbol's bars from the store or a CSV file.
func (a *App) loadBars(ctx context.Context, arg, timeframe string, fromCSV bool) (string, []models.Candle, error) {
	if fromCSV {
		candles, err := data.LoadFile(arg)
		return data.SymbolFromPath(arg), candles, err
	}
	st, err := a.OpenStore()
	if err != nil {
		return arg, nil, err
	}
	symbol := strings.ToUpper(arg)
	candles, err := st.GetCandles(ctx, symbol, timeframe, time.Time{}, time.Time{})
	return symbol, candles, err
}

// rejection is a symbol that produced no scan result.
type rejection struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Reason string `json:"reason" yaml:"reason"`
}

// scanReport is the machine-readable scan output.
type scanReport struct {
	RunID      string                               `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Timeframe  string                               `json:"timeframe" yaml:"timeframe"`
	Regime     models.MarketRegime                  `json:"regime" yaml:"regime"`
	Symbols    int                                  `json:"symbols" yaml:"symbols"`
	Duration   time.Duration                        `json:"duration" yaml:"duration"`
	Candidates []scoring.ScoredCandidate            `json:"candidates" yaml:"candidates"`
	Failures   map[string][]scoring.DetectorFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Rejected   []rejection                          `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

func newScanCmd(app *App) *cobra.Command {
	var (
		opts        scanOptions
		save        bool
		top         int
		perPattern  int
		minGrade    string
		workers     int
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "scan [symbols...]",
		Short: "Scan symbols for chart patterns and rank the candidates",
		Long: `Run every pattern detector over each symbol, score the candidates
against the market regime and trend tier, and print them ranked by score.

Without arguments every stored symbol for the timeframe is scanned. With
--csv the arguments are CSV files and the store is not touched unless
--save is given.`,
		Example: `  patternscan scan
  patternscan scan AAPL MSFT NVDA --regime Bull --top 20
  patternscan scan --csv data/*.csv --format yaml
  patternscan scan --save --metrics-file /var/lib/node_exporter/patternscan.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			marketRegime, tier, err := opts.resolve(ctx, app)
			if err != nil {
				return err
			}
			if top == 0 {
				top = app.Config.Scan.Top
			}
			if workers <= 0 {
				workers = app.Config.Scan.Workers
			}
			var floor float64
			if minGrade != "" {
				f, ok := gradeFloor(minGrade)
				if !ok {
					return errors.NewValidationError("min-grade", minGrade, "must be A+, A, B or C")
				}
				floor = f
			}

			if len(args) == 0 && !opts.csv {
				args, err = app.storedSymbols(ctx, opts.timeframe)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					output.Dim("No bars stored for %s. Use 'patternscan import <file.csv>' first.", opts.timeframe)
					return nil
				}
			}
			if len(args) == 0 {
				return errors.NewValidationError("args", "", "--csv needs at least one file")
			}

			started := time.Now().UTC()
			var (
				requests []scoring.ScanRequest
				rejected []rejection
			)
			for _, arg := range args {
				symbol, candles, err := app.loadBars(ctx, arg, opts.timeframe, opts.csv)
				if err != nil {
					app.Logger.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol")
					rejected = append(rejected, rejection{Symbol: symbol, Reason: err.Error()})
					continue
				}
				requests = append(requests, scoring.ScanRequest{
					Symbol:    symbol,
					Timeframe: opts.timeframe,
					Candles:   candles,
					Regime:    marketRegime,
					Tier:      tier,
				})
			}

			results, err := scoring.NewScreener(app.Pipeline, workers).ScanAll(ctx, requests)
			if err != nil {
				return err
			}

			report := scanReport{
				Timeframe: opts.timeframe,
				Regime:    marketRegime,
				Symbols:   len(args),
				Failures:  make(map[string][]scoring.DetectorFailure),
			}
			for _, r := range results {
				if r.Err != nil {
					rejected = append(rejected, rejection{Symbol: r.Symbol, Reason: r.Err.Error()})
					continue
				}
				if len(r.Result.Failures) > 0 {
					report.Failures[r.Symbol] = r.Result.Failures
				}
			}
			report.Rejected = rejected

			ranked := scoring.Ranked(results)
			if floor > 0 {
				ranked = filterByScore(ranked, floor)
			}
			ranked = scoring.TopPerPattern(ranked, perPattern)
			if top > 0 && len(ranked) > top {
				ranked = ranked[:top]
			}
			report.Candidates = ranked
			report.Duration = time.Since(started)

			if save {
				st, err := app.OpenStore()
				if err != nil {
					return err
				}
				run := &store.ScanRun{
					ID:         uuid.NewString(),
					StartedAt:  started,
					FinishedAt: time.Now().UTC(),
					Timeframe:  opts.timeframe,
					Regime:     marketRegime,
					Symbols:    len(args),
					Rejected:   len(rejected),
				}
				if err := st.SaveScanRun(ctx, run, ranked); err != nil {
					return err
				}
				report.RunID = run.ID
				runLogger := logging.WithRunID(app.Logger, run.ID)
				runLogger.Info().
					Int("candidates", run.Candidates).
					Int("rejected", run.Rejected).
					Msg("Saved scan run")
			}

			if metricsFile != "" {
				if err := app.Metrics.WriteTextfile(metricsFile); err != nil {
					return errors.Wrap(err, "writing metrics textfile")
				}
			}

			if output.IsStructured() {
				return output.Structured(report)
			}
			renderScanReport(output, app, report)
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "persist the ranked candidates as a scan run")
	cmd.Flags().IntVarP(&top, "top", "n", 0, "show only the N best candidates (default from config, 0 = all)")
	cmd.Flags().IntVar(&perPattern, "per-pattern", 0, "keep at most N candidates per pattern type")
	cmd.Flags().StringVar(&minGrade, "min-grade", "", "drop candidates below this grade (A+, A, B, C)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent symbol scans (default from config)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")

	return cmd
}

// storedSymbols lists the symbols with bars for timeframe.
func (a *App) storedSymbols(ctx context.Context, timeframe string) ([]string, error) {
	st, err := a.OpenStore()
	if err != nil {
		return nil, err
	}
	infos, err := st.ListSymbols(ctx, timeframe)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(infos))
	for i, info := range infos {
		symbols[i] = info.Symbol
	}
	return symbols, nil
}

// gradeFloor maps a grade label to its minimum score.
func gradeFloor(label string) (float64, bool) {
	switch strings.ToUpper(label) {
	case string(scoring.GradeAPlus):
		return scoring.ThresholdAPlus, true
	case string(scoring.GradeA):
		return scoring.ThresholdA, true
	case string(scoring.GradeB):
		return scoring.ThresholdB, true
	case string(scoring.GradeC):
		return scoring.ThresholdC, true
	}
	return 0, false
}

func filterByScore(cands []scoring.ScoredCandidate, min float64) []scoring.ScoredCandidate {
	out := cands[:0:0]
	for _, c := range cands {
		if c.Score >= min {
			out = append(out, c)
		}
	}
	return out
}

func renderScanReport(output *Output, app *App, report scanReport) {
	output.Bold("Pattern scan: %d symbols, %s, regime %s", report.Symbols, report.Timeframe, report.Regime)
	output.Dim("Completed in %s", FormatDuration(report.Duration))
	output.Println()

	if len(report.Candidates) == 0 {
		output.Warning("No patterns found.")
	} else {
		renderCandidates(output, app.Config.UI.DateFormat, report.Candidates)
	}

	if len(report.Rejected) > 0 {
		output.Println()
		output.Warning("Skipped %d symbols:", len(report.Rejected))
		for _, r := range report.Rejected {
			output.Dim("  %s: %s", r.Symbol, TruncateString(r.Reason, 100))
		}
	}
	for _, symbol := range failedSymbols(report.Failures) {
		for _, f := range report.Failures[symbol] {
			output.Error("%s: detector %s failed: %s", symbol, f.Detector, f.Error)
		}
	}
	if report.RunID != "" {
		output.Println()
		output.Success("✓ Saved scan run %s", report.RunID)
	}
}

// failedSymbols returns the symbols with detector failures in sorted order.
func failedSymbols(failures map[string][]scoring.DetectorFailure) []string {
	symbols := make([]string, 0, len(failures))
	for symbol := range failures {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// renderCandidates prints scored candidates as a table.
func renderCandidates(output *Output, layout string, cands []scoring.ScoredCandidate) {
	table := NewTable(output, "#", "SYMBOL", "PATTERN", "BIAS", "GRADE", "SCORE", "CONF",
		"TIER", "WINDOW", "ENTRY", "STOP", "TARGET", "R:R", "BREAKOUT")
	for i, c := range cands {
		pattern := string(c.Type)
		if c.Strong {
			pattern += " *"
		}
		table.AddRow(
			strconv.Itoa(i+1),
			c.Symbol,
			pattern,
			output.Bias(c.Bias),
			output.Grade(c.Grade),
			FormatScore(c.Score),
			FormatConfidence(c.Confidence),
			string(c.Tier),
			fmt.Sprintf("%s → %s (%s)", FormatDate(c.StartTime, layout), FormatDate(c.EndTime, layout),
				FormatBars(c.Bars())),
			FormatLevel(c.Plan.Entry),
			FormatLevel(c.Plan.Stop),
			FormatLevel(c.Plan.Target),
			FormatRewardRisk(c.Plan.RewardRisk),
			formatBreakout(output, c.Breakout),
		)
	}
	table.Render()
}

func formatBreakout(output *Output, b *analysis.Breakout) string {
	if b == nil {
		return output.DimText("pending")
	}
	text := fmt.Sprintf("%s @ %s (vol z %.1f)", b.Direction, FormatPrice(b.Price), b.VolumeZ)
	if b.Direction == analysis.BreakoutUp {
		return output.Green(text)
	}
	return output.Red(text)
}

func newDetectCmd(app *App) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "detect <detector-or-pattern> <symbol>",
		Short: "Run a single pattern detector on one symbol",
		Long: `Run one detector, looked up by identifier, pattern type or synonym
("vcp", "DoubleTop", "inverse h&s"), and print its scored candidates.
Use 'patternscan patterns' to list the accepted names.`,
		Example: `  patternscan detect vcp NVDA
  patternscan detect "cup and handle" data/AAPL.csv --csv --regime Bull`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			marketRegime, tier, err := opts.resolve(cmd.Context(), app)
			if err != nil {
				return err
			}

			symbol, candles, err := app.loadBars(cmd.Context(), args[1], opts.timeframe, opts.csv)
			if err != nil {
				return err
			}
			res, err := app.Pipeline.Detect(cmd.Context(), args[0], scoring.ScanRequest{
				Symbol:    symbol,
				Timeframe: opts.timeframe,
				Candles:   candles,
				Regime:    marketRegime,
				Tier:      tier,
			})
			if err != nil {
				return err
			}
			cands := res.Candidates

			if output.IsStructured() {
				return output.Structured(cands)
			}
			classifier, _ := app.Registry.LookupPattern(args[0])
			output.Bold("%s on %s (%d bars, tier %s)", classifier.Name(), symbol, len(candles), res.Tier)
			for _, f := range res.Failures {
				output.Error("Detector %s failed: %s", f.Detector, f.Error)
			}
			if len(cands) == 0 {
				output.Warning("No patterns found.")
				return nil
			}
			renderCandidates(output, app.Config.UI.DateFormat, cands)
			return nil
		},
	}

	opts.bind(cmd)
	return cmd
}

func newRegimeCmd(app *App) *cobra.Command {
	var timeframe string

	cmd := &cobra.Command{
		Use:   "regime <benchmark>",
		Short: "Classify the market regime from a benchmark's bars",
		Long: `Classify the broad market as Bull, Bear, Correction, Recovery or Neutral
from a benchmark's moving averages and drawdown from its high. The
benchmark is a stored symbol or, if it ends in .csv, a CSV file.`,
		Example: `  patternscan regime SPY
  patternscan regime data/spx.csv --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if timeframe == "" {
				timeframe = app.Config.Scan.Timeframe
			}
			info, err := app.benchmarkRegime(cmd.Context(), args[0], timeframe)
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Structured(info)
			}

			label := string(info.Regime)
			switch info.Regime {
			case models.RegimeBull, models.RegimeRecovery:
				label = output.Green(label)
			case models.RegimeBear, models.RegimeCorrection:
				label = output.Red(label)
			}
			output.Printf("Regime:    %s\n", label)
			output.Printf("Close:     %s\n", FormatPrice(info.Close))
			output.Printf("Fast SMA:  %s\n", FormatPrice(info.FastSMA))
			output.Printf("Slow SMA:  %s (%s over lookback)\n", FormatPrice(info.SlowSMA), FormatPercent(100*info.SlowSlope/info.SlowSMA))
			output.Printf("Drawdown:  %.2f%% below high\n", 100*info.Drawdown)
			return nil
		},
	}

	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "timeframe label (default from config)")
	return cmd
}
