package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Almaroo/hs-codes-analysis/internal/config"
	"github.com/Almaroo/hs-codes-analysis/internal/reporting"
	"github.com/Almaroo/hs-codes-analysis/internal/storage"
	"github.com/Almaroo/hs-codes-analysis/internal/storage/postgres"
	"github.com/Almaroo/hs-codes-analysis/internal/storage/sqlite"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore opens the configured warehouse backend. An empty driver
// means persistence is disabled; callers receive a nil store.
func (a *App) openStore(ctx context.Context) (storage.Store, func(), error) {
	switch a.Config.Database.Driver {
	case "":
		return nil, nil, nil
	case "sqlite":
		store, err := sqlite.New(a.Config.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		store, err := postgres.New(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		// Validate rejects unknown drivers before commands run.
		return nil, nil, nil
	}
}

func (a *App) newNotifier() reporting.Notifier {
	if a.Config.Reporting.Telegram.Enabled {
		cfg := a.Config.Reporting.Telegram
		return reporting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

// AnalyzeOptions configure the full analysis pass.
type AnalyzeOptions struct {
	Input string
}

// ScreenOptions configure a single screening pass.
type ScreenOptions struct {
	Input      string
	Metric     string
	CutoffYear int
	Threshold  float64
	// ThresholdSet distinguishes an explicit zero (filtering disabled)
	// from an absent flag.
	ThresholdSet bool
}

// CompareOptions configure the two-cutoff robustness comparison.
type CompareOptions struct {
	Input string
}

// ExportOptions configure table and chart export.
type ExportOptions struct {
	Input   string
	Dir     string
	Product string
	Year    int
	Partner string
	TopN    int
}

// ShowOptions configure the warehouse inspection command.
type ShowOptions struct {
	Limit int
}
