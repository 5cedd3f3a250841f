package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("explicit missing config file should error")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load without a file should fall back to defaults: %v", err)
	}

	if cfg.Ingest.Format != "v1" {
		t.Fatalf("default format: %q", cfg.Ingest.Format)
	}
	if cfg.Ingest.AggregateCode != "EXT_EU27_2020" {
		t.Fatalf("default aggregate code: %q", cfg.Ingest.AggregateCode)
	}
	if cfg.Analysis.PartnerCode != "CN" {
		t.Fatalf("default partner: %q", cfg.Analysis.PartnerCode)
	}
	if cfg.Analysis.CutoffYear != 2020 || cfg.Analysis.ComparisonCutoffYear != 2022 {
		t.Fatalf("default cutoffs: %d / %d", cfg.Analysis.CutoffYear, cfg.Analysis.ComparisonCutoffYear)
	}
	if cfg.Analysis.ShareSlopeThreshold != 0.5 || cfg.Analysis.HHISlopeThreshold != 50 {
		t.Fatalf("default thresholds: %v / %v", cfg.Analysis.ShareSlopeThreshold, cfg.Analysis.HHISlopeThreshold)
	}
	if cfg.Analysis.SignificanceThreshold != 0.01 {
		t.Fatalf("default significance: %v", cfg.Analysis.SignificanceThreshold)
	}
	if cfg.Analysis.BaselineEnd != 2019 {
		t.Fatalf("default baseline end: %d", cfg.Analysis.BaselineEnd)
	}
	if cfg.Charts.Width != 1280 || cfg.Charts.Height != 720 || cfg.Charts.TopN != 20 {
		t.Fatalf("default chart settings: %+v", cfg.Charts)
	}
	if cfg.Database.Driver != "" {
		t.Fatalf("persistence should be disabled by default, got %q", cfg.Database.Driver)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
ingest:
  format: v2
analysis:
  partner_code: RU
  cutoff_year: 2014
database:
  driver: sqlite
  path: results.db
reporting:
  telegram:
    timeout: 5s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.Format != "v2" {
		t.Fatalf("format: %q", cfg.Ingest.Format)
	}
	if cfg.Analysis.PartnerCode != "RU" || cfg.Analysis.CutoffYear != 2014 {
		t.Fatalf("analysis overrides: %+v", cfg.Analysis)
	}
	// untouched keys keep their defaults
	if cfg.Analysis.ComparisonCutoffYear != 2022 {
		t.Fatalf("comparison cutoff should default: %d", cfg.Analysis.ComparisonCutoffYear)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "results.db" {
		t.Fatalf("database overrides: %+v", cfg.Database)
	}
	if cfg.Reporting.Telegram.Timeout.Seconds() != 5 {
		t.Fatalf("duration decode: %v", cfg.Reporting.Telegram.Timeout)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load defaults: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Ingest.Format = "v9"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown format should fail validation")
	}

	cfg = base()
	cfg.Analysis.SignificanceThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("significance above 1 should fail validation")
	}

	cfg = base()
	cfg.Database.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("postgres without DSN should fail validation")
	}

	cfg = base()
	cfg.Reporting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("telegram without credentials should fail validation")
	}

	cfg = base()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = "x.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid sqlite config should pass: %v", err)
	}
}

func TestResolveTopN(t *testing.T) {
	cfg := &Config{Charts: ChartsConfig{TopN: 20}}
	if got := cfg.ResolveTopN(0); got != 20 {
		t.Fatalf("unset override should use the default, got %d", got)
	}
	if got := cfg.ResolveTopN(5); got != 5 {
		t.Fatalf("override should win, got %d", got)
	}
}
