// Package pipeline wires ingestion, derivation, and screening into the
// end-to-end analysis pass, with optional persistence and reporting.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Almaroo/hs-codes-analysis/internal/config"
	"github.com/Almaroo/hs-codes-analysis/internal/ingest"
	"github.com/Almaroo/hs-codes-analysis/internal/model"
	"github.com/Almaroo/hs-codes-analysis/internal/processing"
	"github.com/Almaroo/hs-codes-analysis/internal/reporting"
	"github.com/Almaroo/hs-codes-analysis/internal/screening"
	"github.com/Almaroo/hs-codes-analysis/internal/storage"
)

// MetricShare and MetricHHI name the two screened series types.
const (
	MetricShare = "share"
	MetricHHI   = "hhi"
)

// Pipeline runs the full analysis pass. Store and notifier are
// optional; a nil store skips persistence, a nil notifier skips
// delivery.
type Pipeline struct {
	cfg      *config.Config
	store    storage.Store
	notifier reporting.Notifier
	logger   zerolog.Logger
}

// Result carries every table one pass produces.
type Result struct {
	RunID      uuid.UUID
	SourceFile string

	Records     []model.TradeRecord
	Shares      []model.ShareRecord
	Weights     []model.ProductWeight
	HHI         []model.HHIRecord
	ShareBreaks []model.BreakpointResult
	HHIBreaks   []model.BreakpointResult
}

// New constructs the analysis pipeline.
func New(cfg *config.Config, store storage.Store, notifier reporting.Notifier, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run ingests the input file and derives every downstream table.
// Ingestion failures abort the pass; persistence and delivery problems
// are logged but do not invalidate the computed result.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	records, err := ingest.Load(p.cfg.Ingest.Format, inputPath)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", inputPath, err)
	}
	p.logger.Info().Str("file", inputPath).Int("records", len(records)).Msg("input normalised")

	analysis := p.cfg.Analysis
	shares := processing.ComputeShares(records, processing.ShareOptions{
		AggregateCode:         p.cfg.Ingest.AggregateCode,
		SignificanceThreshold: analysis.SignificanceThreshold,
	})
	weights := processing.ComputeProductWeights(shares, analysis.BaselineEnd)
	hhi := processing.ComputeHHI(shares)

	shareBreaks := screening.ScreenShareBreaks(shares, screening.Options{
		PartnerCode: analysis.PartnerCode,
		CutoffYear:  analysis.CutoffYear,
		Threshold:   analysis.ShareSlopeThreshold,
		LevelWindow: analysis.LevelWindow,
	})
	hhiBreaks := screening.ScreenHHIBreaks(hhi, screening.Options{
		CutoffYear:  analysis.CutoffYear,
		Threshold:   analysis.HHISlopeThreshold,
		LevelWindow: analysis.LevelWindow,
	})

	result := &Result{
		RunID:       uuid.New(),
		SourceFile:  inputPath,
		Records:     records,
		Shares:      shares,
		Weights:     weights,
		HHI:         hhi,
		ShareBreaks: shareBreaks,
		HHIBreaks:   hhiBreaks,
	}

	p.logger.Info().
		Stringer("run_id", result.RunID).
		Int("share_series", len(shareBreaks)).
		Int("hhi_series", len(hhiBreaks)).
		Msg("analysis pass complete")

	if p.store != nil {
		if err := p.persist(ctx, result); err != nil {
			p.logger.Error().Err(err).Stringer("run_id", result.RunID).Msg("failed to persist run")
		}
	}
	if p.notifier != nil && p.cfg.Reporting.Enabled {
		p.deliver(ctx, result)
	}

	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, result *Result) error {
	run := storage.Run{
		ID:            result.RunID,
		SourceFile:    result.SourceFile,
		Format:        p.cfg.Ingest.Format,
		AggregateCode: p.cfg.Ingest.AggregateCode,
		RecordCount:   len(result.Records),
	}
	if err := p.store.InsertRun(ctx, run); err != nil {
		return err
	}

	rows := make([]storage.TradeRow, 0, len(result.Records))
	for _, rec := range result.Records {
		rows = append(rows, storage.TradeRow{
			RunID:       result.RunID,
			PartnerCode: rec.PartnerCode,
			PartnerName: rec.PartnerName,
			ProductCode: rec.ProductCode,
			ProductName: rec.ProductName,
			TimePeriod:  rec.TimePeriod,
			Value:       decimal.NewFromFloat(rec.Value),
		})
	}
	if err := p.store.UpsertTradeRows(ctx, rows); err != nil {
		return err
	}

	breakRows := make([]storage.BreakpointRow, 0, len(result.ShareBreaks)+len(result.HHIBreaks))
	breakRows = append(breakRows, p.breakpointRows(result.RunID, MetricShare, p.cfg.Analysis.PartnerCode, result.ShareBreaks)...)
	breakRows = append(breakRows, p.breakpointRows(result.RunID, MetricHHI, "", result.HHIBreaks)...)
	return p.store.InsertBreakpoints(ctx, breakRows)
}

func (p *Pipeline) breakpointRows(runID uuid.UUID, metric, partnerCode string, results []model.BreakpointResult) []storage.BreakpointRow {
	rows := make([]storage.BreakpointRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, storage.BreakpointRow{
			RunID:        runID,
			Metric:       metric,
			PartnerCode:  partnerCode,
			CutoffYear:   p.cfg.Analysis.CutoffYear,
			ProductCode:  r.ProductCode,
			ProductName:  r.ProductName,
			SlopeBefore:  storage.NullableSlope(r.SlopeBefore),
			SlopeAfter:   storage.NullableSlope(r.SlopeAfter),
			SlopeChange:  storage.NullableSlope(r.SlopeChange),
			LevelBefore:  r.LevelBefore,
			LevelAfter:   r.LevelAfter,
			LevelChange:  r.LevelChange,
			Direction:    string(r.Direction),
			IsMeaningful: r.IsMeaningful,
		})
	}
	return rows
}

func (p *Pipeline) deliver(ctx context.Context, result *Result) {
	summaries := []reporting.Summary{
		{
			Metric:      MetricShare,
			PartnerCode: p.cfg.Analysis.PartnerCode,
			CutoffYear:  p.cfg.Analysis.CutoffYear,
			Threshold:   p.cfg.Analysis.ShareSlopeThreshold,
			SourceFile:  result.SourceFile,
			Results:     result.ShareBreaks,
			MaxItems:    p.cfg.Reporting.MaxItems,
		},
		{
			Metric:     MetricHHI,
			CutoffYear: p.cfg.Analysis.CutoffYear,
			Threshold:  p.cfg.Analysis.HHISlopeThreshold,
			SourceFile: result.SourceFile,
			Results:    result.HHIBreaks,
			MaxItems:   p.cfg.Reporting.MaxItems,
		},
	}

	for _, summary := range summaries {
		if len(summary.Meaningful()) == 0 {
			continue
		}
		if err := p.notifier.Notify(ctx, summary); err != nil {
			p.logger.Error().Err(err).Str("metric", summary.Metric).Msg("failed to deliver summary")
		}
	}
}
