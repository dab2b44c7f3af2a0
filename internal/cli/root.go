package cli

import (
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/analysis/regime"
	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/config"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/metrics"
	"pattern-scanner/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Registry  *patterns.Registry
	Pipeline  *scoring.Pipeline
	Regime    *regime.Detector
	Metrics   *metrics.Recorder
	Store     store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "patternscan",
		Short: "Chart pattern scanner for OHLCV bar data",
		Long: `patternscan detects classical chart patterns (VCP, cup and handle,
triangles, wedges, channels, head and shoulders, double/triple tops and
bottoms, moving-average pullbacks) in daily or weekly bars, scores them
and ranks them across symbols.

Bars are imported from CSV into a local SQLite store, or read straight
from CSV files with 'scan --csv'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("config") {
				dir, _ := cmd.Flags().GetString("config")
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.ConfigDir = dir
				app.Logger = logging.NewLoggerWithConfig(loaded.LogConfig())
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			format, _ := cmd.Flags().GetString("format")
			if err := ValidateFormat(format); err != nil {
				return err
			}
			if !app.Config.UI.ColorEnabled {
				color.NoColor = true
			}
			return app.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/patternscan)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().String("format", FormatTable, "output format: table, json or yaml")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addScanCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)

	return rootCmd
}

// setup builds the detector registry and scan pipeline from the loaded
// configuration.
func (a *App) setup() error {
	registry, err := patterns.NewRegistry(a.Config.Patterns)
	if err != nil {
		return err
	}
	a.Registry = registry
	a.Metrics = metrics.New()

	pipeline, err := scoring.NewPipeline(registry, a.Config.Pipeline(),
		scoring.WithLogger(a.Logger),
		scoring.WithMetrics(a.Metrics),
	)
	if err != nil {
		return err
	}
	a.Pipeline = pipeline

	detector, err := regime.NewDetector(a.Config.Benchmark)
	if err != nil {
		return err
	}
	a.Regime = detector
	return nil
}

// OpenStore opens the SQLite store on first use.
func (a *App) OpenStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.Config.Store.Path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}
	s, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, errors.Wrap(err, "opening store")
	}
	a.Store = s
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	return s, nil
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// configDir returns the directory the configuration was loaded from.
func (a *App) configDir() string {
	if a.ConfigDir != "" {
		return a.ConfigDir
	}
	return config.DefaultConfigDir()
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newPatternsCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Structured(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("patternscan v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the scanner configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Structured(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.configDir())
			if output.IsStructured() {
				return output.Structured(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Scan")
	output.Printf("  Timeframe:         %s\n", cfg.Scan.Timeframe)
	output.Printf("  Regime:            %s\n", cfg.Regime())
	output.Printf("  Min bars:          %d\n", cfg.Scan.MinBars)
	output.Printf("  Min dollar volume: %s\n", FormatDollars(cfg.Scan.MinDollarVolume))
	output.Printf("  Stage period:      %d\n", cfg.Scan.StagePeriod)
	output.Printf("  Workers:           %d\n", cfg.Scan.Workers)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:              %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:             %s\n", cfg.Logging.Level)
	output.Printf("  File:              %v\n", cfg.Logging.File)
	if cfg.Logging.File {
		output.Printf("  Path:              %s\n", cfg.Logging.Path)
	}
}
