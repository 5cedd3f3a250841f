package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Almaroo/hs-codes-analysis/internal/logging"
)

// Config materialises application configuration. Every pipeline
// parameter with a default (aggregate code, cutoff years, thresholds,
// baseline window) lives here so call sites receive it explicitly.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Charts    ChartsConfig    `mapstructure:"charts"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Reporting ReportingConfig `mapstructure:"reporting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// IngestConfig selects the raw CSV layout and the denominator rows.
type IngestConfig struct {
	Format        string `mapstructure:"format"`
	AggregateCode string `mapstructure:"aggregate_code"`
}

// AnalysisConfig holds the analytical defaults.
type AnalysisConfig struct {
	PartnerCode           string  `mapstructure:"partner_code"`
	CutoffYear            int     `mapstructure:"cutoff_year"`
	ComparisonCutoffYear  int     `mapstructure:"comparison_cutoff_year"`
	ShareSlopeThreshold   float64 `mapstructure:"share_slope_threshold"`
	HHISlopeThreshold     float64 `mapstructure:"hhi_slope_threshold"`
	LevelWindow           int     `mapstructure:"level_window"`
	SignificanceThreshold float64 `mapstructure:"significance_threshold"`
	BaselineEnd           int     `mapstructure:"baseline_end"`
}

// ChartsConfig sets PNG rendering behaviour.
type ChartsConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	TopN   int `mapstructure:"top_n"`
}

// DatabaseConfig encapsulates the optional results warehouse.
// An empty driver disables persistence entirely.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ReportingConfig defines delivery of screening summaries.
type ReportingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	MaxItems int            `mapstructure:"max_items"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HSCODES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hs-codes-analysis")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("ingest.format", "v1")
	v.SetDefault("ingest.aggregate_code", "EXT_EU27_2020")

	v.SetDefault("analysis.partner_code", "CN")
	v.SetDefault("analysis.cutoff_year", 2020)
	v.SetDefault("analysis.comparison_cutoff_year", 2022)
	v.SetDefault("analysis.share_slope_threshold", 0.5)
	v.SetDefault("analysis.hhi_slope_threshold", 50.0)
	v.SetDefault("analysis.level_window", 2)
	v.SetDefault("analysis.significance_threshold", 0.01)
	v.SetDefault("analysis.baseline_end", 2019)

	v.SetDefault("charts.width", 1280)
	v.SetDefault("charts.height", 720)
	v.SetDefault("charts.top_n", 20)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.path", "hs-codes-analysis.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("reporting.enabled", false)
	v.SetDefault("reporting.max_items", 10)
	v.SetDefault("reporting.telegram.enabled", false)
	v.SetDefault("reporting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("reporting.telegram.timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Ingest.Format {
	case "v1", "v2":
	default:
		return fmt.Errorf("ingest.format must be v1 or v2, got %q", c.Ingest.Format)
	}
	if c.Ingest.AggregateCode == "" {
		return fmt.Errorf("ingest.aggregate_code must not be empty")
	}
	if c.Analysis.ShareSlopeThreshold < 0 || c.Analysis.HHISlopeThreshold < 0 {
		return fmt.Errorf("analysis slope thresholds cannot be negative")
	}
	if c.Analysis.SignificanceThreshold < 0 || c.Analysis.SignificanceThreshold > 1 {
		return fmt.Errorf("analysis.significance_threshold must be within [0, 1]")
	}
	if c.Analysis.LevelWindow <= 0 {
		return fmt.Errorf("analysis.level_window must be greater than zero")
	}
	if c.Charts.Width <= 0 || c.Charts.Height <= 0 {
		return fmt.Errorf("charts dimensions must be greater than zero")
	}
	if c.Charts.TopN <= 0 {
		return fmt.Errorf("charts.top_n must be greater than zero")
	}
	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres driver")
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("database.path is required for the sqlite driver")
	}
	if c.Reporting.Telegram.Enabled {
		if c.Reporting.Telegram.BotToken == "" {
			return fmt.Errorf("reporting.telegram.bot_token is required")
		}
		if c.Reporting.Telegram.ChatID == "" {
			return fmt.Errorf("reporting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveTopN returns either the CLI override or the configured default.
func (c *Config) ResolveTopN(override int) int {
	if override > 0 {
		return override
	}
	return c.Charts.TopN
}
