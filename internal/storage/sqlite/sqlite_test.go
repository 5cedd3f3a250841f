package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Almaroo/hs-codes-analysis/internal/storage"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	older := storage.Run{
		ID:            uuid.New(),
		SourceFile:    "old.csv",
		Format:        "v1",
		AggregateCode: "EXT_EU27_2020",
		RecordCount:   10,
		CreatedAt:     time.Now().UTC().Add(-time.Hour),
	}
	newer := storage.Run{
		ID:            uuid.New(),
		SourceFile:    "new.csv",
		Format:        "v2",
		AggregateCode: "EXT_EU27_2020",
		RecordCount:   20,
		CreatedAt:     time.Now().UTC(),
	}
	for _, run := range []storage.Run{older, newer} {
		if err := store.InsertRun(ctx, run); err != nil {
			t.Fatalf("InsertRun: %v", err)
		}
	}

	runs, err := store.ListRecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer.ID {
		t.Fatalf("newest run should come first, got %s", runs[0].SourceFile)
	}
	if runs[0].Format != "v2" || runs[0].RecordCount != 20 {
		t.Fatalf("run fields lost: %+v", runs[0])
	}
}

func TestTradeRowUpsert(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := storage.Run{ID: uuid.New(), SourceFile: "a.csv", Format: "v1", AggregateCode: "WORLD"}
	if err := store.InsertRun(ctx, run); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	row := storage.TradeRow{
		RunID:       run.ID,
		PartnerCode: "CN",
		PartnerName: "China",
		ProductCode: "8542",
		ProductName: "Integrated circuits",
		TimePeriod:  2020,
		Value:       decimal.RequireFromString("1234.56"),
	}
	if err := store.UpsertTradeRows(ctx, []storage.TradeRow{row}); err != nil {
		t.Fatalf("UpsertTradeRows: %v", err)
	}

	// same key again updates rather than duplicating
	row.Value = decimal.RequireFromString("2000")
	if err := store.UpsertTradeRows(ctx, []storage.TradeRow{row}); err != nil {
		t.Fatalf("UpsertTradeRows (update): %v", err)
	}

	count, err := store.CountTradeRows(ctx, run.ID)
	if err != nil {
		t.Fatalf("CountTradeRows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", count)
	}
}

func TestBreakpointRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := storage.Run{ID: uuid.New(), SourceFile: "a.csv", Format: "v1", AggregateCode: "WORLD"}
	if err := store.InsertRun(ctx, run); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	defined := storage.BreakpointRow{
		RunID:        run.ID,
		Metric:       "share",
		PartnerCode:  "CN",
		CutoffYear:   2020,
		ProductCode:  "8542",
		ProductName:  "Integrated circuits",
		SlopeBefore:  storage.NullableSlope(1.0),
		SlopeAfter:   storage.NullableSlope(1.5),
		SlopeChange:  storage.NullableSlope(0.5),
		Direction:    "increasing",
		IsMeaningful: true,
	}
	undefined := storage.BreakpointRow{
		RunID:       run.ID,
		Metric:      "share",
		PartnerCode: "CN",
		CutoffYear:  2020,
		ProductCode: "9999",
		SlopeBefore: storage.NullableSlope(math.NaN()),
		SlopeAfter:  storage.NullableSlope(0.2),
		SlopeChange: storage.NullableSlope(math.NaN()),
		Direction:   "stable",
	}
	declining := storage.BreakpointRow{
		RunID:        run.ID,
		Metric:       "share",
		PartnerCode:  "CN",
		CutoffYear:   2020,
		ProductCode:  "0101",
		SlopeChange:  storage.NullableSlope(-2.0),
		Direction:    "declining",
		IsMeaningful: true,
	}
	if err := store.InsertBreakpoints(ctx, []storage.BreakpointRow{defined, undefined, declining}); err != nil {
		t.Fatalf("InsertBreakpoints: %v", err)
	}

	results, err := store.ListBreakpointsByRun(ctx, run.ID, "share")
	if err != nil {
		t.Fatalf("ListBreakpointsByRun: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 breakpoints, got %d", len(results))
	}

	// ascending by slope change, NULLs last
	if results[0].ProductCode != "0101" || results[1].ProductCode != "8542" || results[2].ProductCode != "9999" {
		t.Fatalf("wrong order: %s, %s, %s", results[0].ProductCode, results[1].ProductCode, results[2].ProductCode)
	}

	got := results[1]
	if got.SlopeChange == nil || *got.SlopeChange != 0.5 {
		t.Fatalf("slope change lost: %v", got.SlopeChange)
	}
	if !got.IsMeaningful || got.Direction != "increasing" {
		t.Fatalf("flags lost: %+v", got)
	}
	if results[2].SlopeChange != nil {
		t.Fatalf("undefined slope change should round-trip as nil, got %v", *results[2].SlopeChange)
	}
	if results[2].SlopeAfter == nil || *results[2].SlopeAfter != 0.2 {
		t.Fatalf("defined slope lost on the undefined row: %v", results[2].SlopeAfter)
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("empty path should error")
	}
}
