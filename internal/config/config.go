// Package config provides configuration management for the pattern scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/analysis/regime"
	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
)

var validate = validator.New()

// Environment variables that override file settings.
const (
	EnvDBPath          = "PATTERNSCAN_DB_PATH"
	EnvLogLevel        = "PATTERNSCAN_LOG_LEVEL"
	EnvMinDollarVolume = "PATTERNSCAN_MIN_DOLLAR_VOLUME"
)

// Config holds all application configuration.
type Config struct {
	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	UI        UIConfig        `mapstructure:"ui" yaml:"ui"`
	Benchmark regime.Config   `mapstructure:"benchmark" yaml:"benchmark"`
	Patterns  patterns.Config `mapstructure:"patterns" yaml:"patterns"`
}

// ScanConfig holds scan pipeline and screener settings.
type ScanConfig struct {
	MinBars         int     `mapstructure:"min_bars" yaml:"min_bars" validate:"gte=2"`
	MinDollarVolume float64 `mapstructure:"min_dollar_volume" yaml:"min_dollar_volume" validate:"gte=0"`
	StagePeriod     int     `mapstructure:"stage_period" yaml:"stage_period" validate:"gte=2"`
	Workers         int     `mapstructure:"workers" yaml:"workers" validate:"gte=1,lte=64"`
	Timeframe       string  `mapstructure:"timeframe" yaml:"timeframe" validate:"required"`
	Regime          string  `mapstructure:"regime" yaml:"regime" validate:"omitempty,oneof=Bull Bear Correction Recovery Neutral"`
	Top             int     `mapstructure:"top" yaml:"top" validate:"gte=0"`
	Benchmark       string  `mapstructure:"benchmark" yaml:"benchmark"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	File       bool   `mapstructure:"file" yaml:"file"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
}

// StoreConfig holds the SQLite store settings.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled" yaml:"color_enabled"`
	DateFormat   string `mapstructure:"date_format" yaml:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "patternscan")
	}
	return filepath.Join(home, ".config", "patternscan")
}

// ConfigPath returns the path of config.toml inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	_ = v.Unmarshal(cfg)
	cfg.Benchmark = regime.DefaultConfig()
	cfg.Patterns = patterns.DefaultConfig()
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	pipeline := scoring.DefaultConfig()
	v.SetDefault("scan.min_bars", pipeline.MinBars)
	v.SetDefault("scan.min_dollar_volume", pipeline.MinDollarVolume)
	v.SetDefault("scan.stage_period", pipeline.StagePeriod)
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.timeframe", models.TimeframeDaily)
	v.SetDefault("scan.regime", string(models.RegimeNeutral))
	v.SetDefault("scan.top", 0)

	logs := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logs.Level)
	v.SetDefault("logging.file", logs.File)
	v.SetDefault("logging.path", filepath.Join(configDir, "logs", "patternscan.log"))
	v.SetDefault("logging.max_size_mb", logs.MaxSize)
	v.SetDefault("logging.max_backups", logs.MaxBackups)
	v.SetDefault("logging.max_age_days", logs.MaxAge)

	v.SetDefault("store.path", filepath.Join(configDir, "patternscan.db"))

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
}

// Load loads configuration from config.toml in configDir, writing a
// commented template first if the file does not exist. A .env file in
// configDir or the working directory is loaded before environment
// overrides are applied. If configDir is empty, the default directory is
// used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "reading config.toml")
		}
		if _, err := WriteTemplate(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config.toml")
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvMinDollarVolume); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.NewValidationError(EnvMinDollarVolume, v, "not a number")
		}
		cfg.Scan.MinDollarVolume = f
	}
	return nil
}

// Validate checks every section and fills zero pattern thresholds with their
// defaults.
func (c *Config) Validate() error {
	if err := validate.Struct(c.Scan); err != nil {
		return errors.Wrap(errors.ErrConfigInvalid, "scan: "+err.Error())
	}
	if err := validate.Struct(c.Logging); err != nil {
		return errors.Wrap(errors.ErrConfigInvalid, "logging: "+err.Error())
	}
	if err := validate.Struct(c.Store); err != nil {
		return errors.Wrap(errors.ErrConfigInvalid, "store: "+err.Error())
	}
	if _, err := regime.NewDetector(c.Benchmark); err != nil {
		return fmt.Errorf("benchmark: %w", err)
	}
	if err := c.Patterns.Validate(); err != nil {
		return fmt.Errorf("patterns: %w", err)
	}
	return nil
}

// Pipeline returns the scan pipeline configuration.
func (c *Config) Pipeline() scoring.Config {
	return scoring.Config{
		MinBars:         c.Scan.MinBars,
		MinDollarVolume: c.Scan.MinDollarVolume,
		StagePeriod:     c.Scan.StagePeriod,
	}
}

// LogConfig returns the logger configuration.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    true,
		File:       c.Logging.File,
		FilePath:   c.Logging.Path,
		MaxSize:    c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAgeDays,
	}
}

// Regime returns the configured default market regime.
func (c *Config) Regime() models.MarketRegime {
	return models.ParseRegime(c.Scan.Regime)
}
