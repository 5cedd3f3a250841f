package charts

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
)

func sampleShares() []model.ShareRecord {
	mk := func(partner string, year int, value, share float64) model.ShareRecord {
		return model.ShareRecord{
			TradeRecord: model.TradeRecord{
				PartnerCode: partner,
				PartnerName: partner,
				ProductCode: "8542",
				ProductName: "Integrated circuits",
				TimePeriod:  year,
				Value:       value,
			},
			Share: &share,
		}
	}
	return []model.ShareRecord{
		mk("CN", 2019, 400, 0.40),
		mk("US", 2019, 300, 0.30),
		mk("JP", 2019, 200, 0.20),
		mk("KR", 2019, 100, 0.10),
		mk("CN", 2020, 450, 0.45),
		mk("US", 2020, 250, 0.25),
	}
}

func sampleHHI() []model.HHIRecord {
	return []model.HHIRecord{
		{TimePeriod: 2019, ProductCode: "8542", HHI: 3000},
		{TimePeriod: 2020, ProductCode: "8542", HHI: 3350},
	}
}

func checkPNG(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	if buf.Len() == 0 {
		t.Fatal("rendered image should not be empty")
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatal("output should carry the PNG signature")
	}
}

func TestPartnerValueBar(t *testing.T) {
	var buf bytes.Buffer
	err := PartnerValueBar(&buf, sampleShares(), "8542", 2019, 0.15, sampleHHI(), Options{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("PartnerValueBar: %v", err)
	}
	checkPNG(t, &buf)
}

func TestPartnerValueBarNoData(t *testing.T) {
	var buf bytes.Buffer
	err := PartnerValueBar(&buf, sampleShares(), "0000", 2019, 0.15, nil, Options{})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("no bytes should be written on an empty selection")
	}
}

func TestSharePie(t *testing.T) {
	var buf bytes.Buffer
	err := SharePie(&buf, sampleShares(), "8542", 2019, 0.15, sampleHHI(), Options{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("SharePie: %v", err)
	}
	checkPNG(t, &buf)
}

func TestShareLine(t *testing.T) {
	var buf bytes.Buffer
	err := ShareLine(&buf, sampleShares(), "8542", "CN", Options{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("ShareLine: %v", err)
	}
	checkPNG(t, &buf)

	buf.Reset()
	if err := ShareLine(&buf, sampleShares(), "8542", "XX", Options{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("unknown partner should yield ErrNoData, got %v", err)
	}
}

func TestHHILine(t *testing.T) {
	var buf bytes.Buffer
	err := HHILine(&buf, sampleHHI(), "8542", "Integrated circuits", Options{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("HHILine: %v", err)
	}
	checkPNG(t, &buf)
}

func TestSegmentedTrend(t *testing.T) {
	years := []int{2017, 2018, 2019, 2020, 2021, 2022}
	values := []float64{10, 11, 12, 12, 13.5, 15}

	var buf bytes.Buffer
	err := SegmentedTrend(&buf, years, values, 2020, "Share trend", "Share (%)", Options{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("SegmentedTrend: %v", err)
	}
	checkPNG(t, &buf)
}

func TestSegmentedTrendMismatchedInput(t *testing.T) {
	var buf bytes.Buffer
	if err := SegmentedTrend(&buf, []int{2019}, nil, 2020, "t", "y", Options{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestBreakpointSummary(t *testing.T) {
	results := []model.BreakpointResult{
		{ProductCode: "A", SlopeChange: -3},
		{ProductCode: "B", SlopeChange: 2},
		{ProductCode: "C", SlopeChange: -0.5},
		{ProductCode: "D", SlopeChange: math.NaN()},
	}

	var buf bytes.Buffer
	err := BreakpointSummary(&buf, results, 2, "Largest slope changes", Options{Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("BreakpointSummary: %v", err)
	}
	checkPNG(t, &buf)
}

func TestBreakpointSummaryAllUndefined(t *testing.T) {
	results := []model.BreakpointResult{
		{ProductCode: "A", SlopeChange: math.NaN()},
	}

	var buf bytes.Buffer
	if err := BreakpointSummary(&buf, results, 5, "t", Options{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
