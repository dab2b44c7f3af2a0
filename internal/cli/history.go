package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/store"
)

// addHistoryCommands adds commands over persisted scan runs.
func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoryCmd(app))
}

// patternInfo describes one registered detector.
type patternInfo struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Patterns []string `json:"patterns" yaml:"patterns"`
	Synonyms []string `json:"synonyms" yaml:"synonyms"`
}

func newPatternsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the pattern detectors and the names they answer to",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			var infos []patternInfo
			for _, c := range app.Registry.Classifiers() {
				info := patternInfo{
					ID:       c.ID(),
					Name:     c.Name(),
					Synonyms: app.Registry.Synonyms(c.ID()),
				}
				for _, pt := range c.Patterns() {
					info.Patterns = append(info.Patterns, string(pt))
				}
				infos = append(infos, info)
			}

			if output.IsStructured() {
				return output.Structured(infos)
			}
			table := NewTable(output, "ID", "DETECTOR", "PATTERNS")
			for _, info := range infos {
				table.AddRow(info.ID, info.Name, strings.Join(info.Patterns, ", "))
			}
			table.Render()
			output.Println()
			output.Dim("Detectors are also found by any synonym, e.g. 'detect \"inverse h&s\" AAPL'.")
			return nil
		},
	}
}

// parsePatternType resolves a pattern type name case-insensitively,
// ignoring spaces, dashes and underscores.
func parsePatternType(name string) (analysis.PatternType, bool) {
	clean := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(name)
	for _, pt := range analysis.AllPatternTypes {
		if strings.EqualFold(string(pt), clean) {
			return pt, true
		}
	}
	return "", false
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		top      int
		symbol   string
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "history [pattern-type]",
		Short: "Show the best persisted candidates, optionally for one pattern type",
		Long: `Query candidates saved by 'scan --save', best score first.

Without a pattern type the best candidates of every type are shown.`,
		Example: `  patternscan history VCP --top 10
  patternscan history "double bottom" --symbol AAPL
  patternscan history runs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			filter := store.CandidateFilter{
				Symbol:   strings.ToUpper(symbol),
				MinScore: minScore,
				Limit:    top,
			}
			if len(args) == 1 {
				pt, ok := parsePatternType(args[0])
				if !ok {
					return errors.NewValidationError("pattern-type", args[0], "unknown pattern type")
				}
				filter.Pattern = string(pt)
			}
			return showStoredCandidates(cmd, app, output, filter)
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of candidates to show")
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "only this symbol")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "only candidates scoring at least this")

	cmd.AddCommand(newHistoryRunsCmd(app))
	cmd.AddCommand(newHistoryRunCmd(app))
	return cmd
}

func newHistoryRunsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved scan runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			runs, err := st.ListScanRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Structured(runs)
			}
			if len(runs) == 0 {
				output.Dim("No saved scan runs. Use 'patternscan scan --save'.")
				return nil
			}
			table := NewTable(output, "RUN", "STARTED", "TF", "REGIME", "SYMBOLS", "REJECTED", "CANDIDATES", "TOOK")
			for _, r := range runs {
				table.AddRow(
					r.ID,
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Timeframe,
					string(r.Regime),
					strconv.Itoa(r.Symbols),
					strconv.Itoa(r.Rejected),
					strconv.Itoa(r.Candidates),
					FormatDuration(r.FinishedAt.Sub(r.StartedAt)),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func newHistoryRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Show one saved scan run and its candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			run, err := st.GetScanRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !output.IsStructured() {
				output.Bold("Scan run %s", run.ID)
				output.Dim("%s, %s, regime %s, %d symbols (%d skipped)",
					run.StartedAt.Local().Format("2006-01-02 15:04"), run.Timeframe, run.Regime, run.Symbols, run.Rejected)
				output.Println()
			}
			return showStoredCandidates(cmd, app, output, store.CandidateFilter{RunID: run.ID})
		},
	}
}

func showStoredCandidates(cmd *cobra.Command, app *App, output *Output, filter store.CandidateFilter) error {
	st, err := app.OpenStore()
	if err != nil {
		return err
	}
	stored, err := st.TopCandidates(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if output.IsStructured() {
		return output.Structured(stored)
	}
	if len(stored) == 0 {
		output.Warning("No saved candidates match.")
		return nil
	}

	cands := make([]scoring.ScoredCandidate, len(stored))
	for i, s := range stored {
		cands[i] = s.Candidate
	}
	renderCandidates(output, app.Config.UI.DateFormat, cands)
	return nil
}
