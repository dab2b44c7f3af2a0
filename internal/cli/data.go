package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pattern-scanner/internal/data"
	"pattern-scanner/internal/errors"
)

// addDataCommands adds bar import and inspection commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newSymbolsCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
}

type importResult struct {
	Symbol    string    `json:"symbol" yaml:"symbol"`
	File      string    `json:"file" yaml:"file"`
	Bars      int       `json:"bars" yaml:"bars"`
	Replaced  int64     `json:"replaced,omitempty" yaml:"replaced,omitempty"`
	LatestBar time.Time `json:"latest_bar" yaml:"latest_bar"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func newImportCmd(app *App) *cobra.Command {
	var (
		symbol    string
		timeframe string
		replace   bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>...",
		Short: "Import OHLCV bars from CSV files",
		Long: `Import daily or weekly bars from CSV files into the local store.

The header must name date, open, high, low, close and volume columns
(aliases such as timestamp, vol and "Adj Close" are accepted). The symbol
defaults to the file name without extension.`,
		Example: `  patternscan import data/AAPL.csv data/MSFT.csv
  patternscan import spx.csv --symbol SPX --timeframe 1w --replace`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if symbol != "" && len(args) > 1 {
				return errors.NewValidationError("symbol", symbol, "--symbol needs exactly one file")
			}
			if timeframe == "" {
				timeframe = app.Config.Scan.Timeframe
			}

			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			results := make([]importResult, 0, len(args))
			failed := 0
			for _, path := range args {
				res := importResult{File: path, Symbol: strings.ToUpper(symbol)}
				if res.Symbol == "" {
					res.Symbol = data.SymbolFromPath(path)
				}

				candles, err := data.LoadFile(path)
				if err == nil && replace {
					res.Replaced, err = st.DeleteCandles(ctx, res.Symbol, timeframe)
				}
				if err == nil {
					res.Bars, err = st.SaveCandles(ctx, res.Symbol, timeframe, candles)
				}
				if err == nil {
					res.LatestBar, err = st.GetCandlesFreshness(ctx, res.Symbol, timeframe)
				}
				if err != nil {
					failed++
					res.Error = err.Error()
					app.Logger.Warn().Err(err).Str("file", path).Msg("Import failed")
				} else {
					app.Logger.Info().
						Str("symbol", res.Symbol).
						Str("timeframe", timeframe).
						Int("bars", res.Bars).
						Msg("Imported bars")
				}
				results = append(results, res)
			}

			if output.IsStructured() {
				if err := output.Structured(results); err != nil {
					return err
				}
			} else {
				for _, res := range results {
					if res.Error != "" {
						output.Error("✗ %s: %s", res.File, res.Error)
						continue
					}
					output.Success("✓ %s: %d bars (%s), latest %s",
						res.Symbol, res.Bars, timeframe, FormatDate(res.LatestBar, app.Config.UI.DateFormat))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to import", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol to store the bars under (single file only)")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "timeframe label (default from config)")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete existing bars for the symbol first")

	return cmd
}

func newSymbolsCmd(app *App) *cobra.Command {
	var timeframe string

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List symbols in the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			symbols, err := st.ListSymbols(cmd.Context(), timeframe)
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Structured(symbols)
			}
			if len(symbols) == 0 {
				output.Dim("No bars stored. Use 'patternscan import <file.csv>' first.")
				return nil
			}

			layout := app.Config.UI.DateFormat
			table := NewTable(output, "SYMBOL", "TF", "BARS", "FIRST", "LAST")
			for _, s := range symbols {
				table.AddRow(s.Symbol, s.Timeframe, strconv.Itoa(s.Bars),
					FormatDate(s.First, layout), FormatDate(s.Last, layout))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "only list this timeframe")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var (
		timeframe string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "export <symbol>",
		Short: "Export stored bars as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if timeframe == "" {
				timeframe = app.Config.Scan.Timeframe
			}
			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			candles, err := st.GetCandles(cmd.Context(), strings.ToUpper(args[0]), timeframe, time.Time{}, time.Time{})
			if err != nil {
				return err
			}

			if outPath == "" {
				return data.WriteCSV(cmd.OutOrStdout(), candles)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return errors.Wrap(err, "creating export file")
			}
			if err := data.WriteCSV(f, candles); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			NewOutput(cmd).Success("✓ Wrote %d bars to %s", len(candles), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "timeframe label (default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}
