package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Pattern Scanner Configuration

[scan]
# Minimum number of bars a series needs before any classifier runs
min_bars = 60
# Liquidity floor: last close times the 20-bar average volume (0 disables)
min_dollar_volume = 0.0
# Moving average period used to derive a trend tier when none is given
stage_period = 150
# Number of symbols scanned concurrently
workers = 4
# Default timeframe label: "1d" or "1w"
timeframe = "1d"
# Default market regime: Bull, Bear, Correction, Recovery, Neutral
regime = "Neutral"
# Show at most this many ranked candidates (0 shows all)
top = 0
# Benchmark symbol whose stored bars derive the market regime; overrides regime
# benchmark = "SPY"

[logging]
# Log level: trace, debug, info, warn, error
level = "info"
# Also write a rotated log file
file = false
max_size_mb = 50
max_backups = 5
max_age_days = 30

[store]
# SQLite database holding imported bars and scan history
# path = "~/.config/patternscan/patternscan.db"

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "2006-01-02"

[benchmark]
# Regime detection from the benchmark's moving averages and drawdown
# fast_period = 50
# slow_period = 200
# correction_drawdown = 0.10
# bear_drawdown = 0.20

# Per-classifier thresholds. Omitted or zero values take built-in defaults,
# so a literal 0 cannot be configured: wedge.strong_volume_tau = 0 becomes
# -0.2 and fit_seed = 0 becomes 42. Use a small non-zero value instead.
[patterns.vcp]
# shrink_ratio = 0.8
# max_first_leg = 0.40

[patterns.cup_handle]
# min_depth = 0.12
# max_depth = 0.60
# Handle pullback as a fraction of the cup depth.
# min_handle_retrace = 0.05
# max_handle_retrace = 0.15

[patterns.triangle]
# windows = [40, 60, 80, 100]
# min_convergence = 0.2

[patterns.wedge]
# min_convergence = 0.2
# strong_volume_tau = -0.2

[patterns.channel]
# sideways_drift = 0.02
# min_width_atr = 2
# max_width_atr = 15

[patterns.head_shoulders]
# allow_unconfirmed = false
# shoulder_symmetry = 0.85

[patterns.double]
# tolerance = 0.03

[patterns.ma_pullback]
# fast_period = 50
# slow_period = 200
`

// WriteTemplate writes the commented default config.toml into configDir and
// returns its path. An existing file is left untouched.
func WriteTemplate(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}
	return path, nil
}
