package screening

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
)

func shareRow(partner, product string, year int, share float64) model.ShareRecord {
	return model.ShareRecord{
		TradeRecord: model.TradeRecord{
			PartnerCode: partner,
			ProductCode: product,
			ProductName: "Product " + product,
			TimePeriod:  year,
		},
		Share: &share,
	}
}

func TestFitLine(t *testing.T) {
	pts := []Point{{2017, 1}, {2018, 3}, {2019, 5}}
	slope, intercept, ok := FitLine(pts)
	require.True(t, ok)
	assert.InDelta(t, 2.0, slope, 1e-9)
	assert.InDelta(t, 1.0-2.0*2017.0, intercept, 1e-6)
}

func TestFitLineDegenerate(t *testing.T) {
	_, _, ok := FitLine([]Point{{2019, 5}})
	assert.False(t, ok, "one point cannot define a line")

	_, _, ok = FitLine([]Point{{2019, 5}, {2019, 7}})
	assert.False(t, ok, "vertical data has no least-squares slope")
}

func TestScreenShareBreaksBoundary(t *testing.T) {
	// slope 1.0 before the cutoff, slope 1.5 at and after it;
	// shares are stored as fractions and screened as percent.
	shares := []model.ShareRecord{
		shareRow("CN", "8542", 2017, 0.10),
		shareRow("CN", "8542", 2018, 0.11),
		shareRow("CN", "8542", 2019, 0.12),
		shareRow("CN", "8542", 2020, 0.12),
		shareRow("CN", "8542", 2021, 0.135),
		shareRow("CN", "8542", 2022, 0.15),
		// other partners never leak into the screened series
		shareRow("US", "8542", 2019, 0.50),
	}

	results := ScreenShareBreaks(shares, Options{
		PartnerCode: "CN",
		CutoffYear:  2020,
		Threshold:   0.5,
	})
	require.Len(t, results, 1)
	r := results[0]

	assert.Equal(t, "8542", r.ProductCode)
	assert.InDelta(t, 1.0, r.SlopeBefore, 1e-9)
	assert.InDelta(t, 1.5, r.SlopeAfter, 1e-9)
	assert.InDelta(t, 0.5, r.SlopeChange, 1e-9)

	// exactly at the threshold still counts
	assert.Equal(t, model.DirectionIncreasing, r.Direction)
	assert.True(t, r.IsMeaningful)

	// level means over the default two periods on each side
	require.NotNil(t, r.LevelBefore)
	assert.InDelta(t, 11.5, *r.LevelBefore, 1e-9)
	require.NotNil(t, r.LevelAfter)
	assert.InDelta(t, 12.75, *r.LevelAfter, 1e-9)
	require.NotNil(t, r.LevelChange)
	assert.InDelta(t, 1.25, *r.LevelChange, 1e-9)
}

func TestScreenShareBreaksDeclining(t *testing.T) {
	shares := []model.ShareRecord{
		shareRow("CN", "8542", 2017, 0.10),
		shareRow("CN", "8542", 2018, 0.12),
		shareRow("CN", "8542", 2019, 0.14),
		shareRow("CN", "8542", 2020, 0.13),
		shareRow("CN", "8542", 2021, 0.11),
		shareRow("CN", "8542", 2022, 0.09),
	}

	results := ScreenShareBreaks(shares, Options{PartnerCode: "CN", CutoffYear: 2020, Threshold: 1.0})
	require.Len(t, results, 1)

	assert.Equal(t, model.DirectionDeclining, results[0].Direction)
	assert.True(t, results[0].IsMeaningful)
	assert.Less(t, results[0].SlopeChange, 0.0)
}

func TestScreenShortSegments(t *testing.T) {
	shares := []model.ShareRecord{
		shareRow("CN", "8542", 2019, 0.10),
		shareRow("CN", "8542", 2020, 0.11),
		shareRow("CN", "8542", 2021, 0.12),
	}

	results := ScreenShareBreaks(shares, Options{PartnerCode: "CN", CutoffYear: 2020, Threshold: 0.5})
	require.Len(t, results, 1)
	r := results[0]

	assert.True(t, math.IsNaN(r.SlopeBefore), "single observation before the cutoff")
	assert.False(t, math.IsNaN(r.SlopeAfter))
	assert.True(t, math.IsNaN(r.SlopeChange))
	assert.Equal(t, model.DirectionStable, r.Direction, "undefined change never classifies as a break")
	assert.False(t, r.IsMeaningful)

	require.NotNil(t, r.LevelBefore, "level means need one observation, not two")
	assert.InDelta(t, 10.0, *r.LevelBefore, 1e-9)
}

func TestScreenSkipsNilShares(t *testing.T) {
	withNil := shareRow("CN", "8542", 2019, 0.10)
	withNil.Share = nil

	shares := []model.ShareRecord{
		withNil,
		shareRow("CN", "8542", 2020, 0.11),
	}

	results := ScreenShareBreaks(shares, Options{PartnerCode: "CN", CutoffYear: 2020})
	require.Len(t, results, 1)
	assert.True(t, math.IsNaN(results[0].SlopeBefore), "nil shares are excluded from the series")
	assert.Nil(t, results[0].LevelBefore)
}

func TestSortBySlopeChange(t *testing.T) {
	shares := []model.ShareRecord{}
	mk := func(product string, values map[int]float64) {
		for year, v := range values {
			shares = append(shares, shareRow("CN", product, year, v))
		}
	}
	// strong decline
	mk("A", map[int]float64{2017: 0.30, 2018: 0.32, 2019: 0.34, 2020: 0.30, 2021: 0.20, 2022: 0.10})
	// mild growth
	mk("B", map[int]float64{2017: 0.10, 2018: 0.11, 2019: 0.12, 2020: 0.13, 2021: 0.145, 2022: 0.16})
	// undefined: nothing before the cutoff
	mk("C", map[int]float64{2020: 0.10, 2021: 0.11})

	results := ScreenShareBreaks(shares, Options{PartnerCode: "CN", CutoffYear: 2020})
	require.Len(t, results, 3)

	assert.Equal(t, "A", results[0].ProductCode, "steepest decline leads")
	assert.Equal(t, "B", results[1].ProductCode)
	assert.Equal(t, "C", results[2].ProductCode, "undefined change sorts last")
	assert.True(t, math.IsNaN(results[2].SlopeChange))
}

func TestScreenHHIBreaks(t *testing.T) {
	hhi := []model.HHIRecord{
		{TimePeriod: 2017, ProductCode: "8542", HHI: 2000},
		{TimePeriod: 2018, ProductCode: "8542", HHI: 2100},
		{TimePeriod: 2019, ProductCode: "8542", HHI: 2200},
		{TimePeriod: 2020, ProductCode: "8542", HHI: 2400},
		{TimePeriod: 2021, ProductCode: "8542", HHI: 2800},
		{TimePeriod: 2022, ProductCode: "8542", HHI: 3200},
	}

	results := ScreenHHIBreaks(hhi, Options{CutoffYear: 2020, Threshold: 50})
	require.Len(t, results, 1)
	r := results[0]

	assert.InDelta(t, 100.0, r.SlopeBefore, 1e-9)
	assert.InDelta(t, 400.0, r.SlopeAfter, 1e-9)
	assert.InDelta(t, 300.0, r.SlopeChange, 1e-9)
	assert.Equal(t, model.DirectionIncreasing, r.Direction)
	assert.True(t, r.IsMeaningful)
}

func TestCompareBreakpoints(t *testing.T) {
	var shares []model.ShareRecord
	years := []int{2016, 2017, 2018, 2019, 2020, 2021, 2022, 2023}
	// flat until 2019, then accelerating decline; the 2022 cutoff sees
	// a stronger contrast than the 2020 one on the share side.
	values := []float64{0.30, 0.30, 0.30, 0.30, 0.29, 0.27, 0.24, 0.20}
	for i, y := range years {
		shares = append(shares, shareRow("CN", "8542", y, values[i]))
	}

	var hhi []model.HHIRecord
	hhiValues := []float64{2000, 2000, 2000, 2000, 2050, 2100, 2150, 2200}
	for i, y := range years {
		hhi = append(hhi, model.HHIRecord{TimePeriod: y, ProductCode: "8542", HHI: hhiValues[i]})
	}
	// present in shares only, so the join drops it
	shares = append(shares,
		shareRow("CN", "9999", 2018, 0.10),
		shareRow("CN", "9999", 2019, 0.11),
		shareRow("CN", "9999", 2020, 0.12),
		shareRow("CN", "9999", 2021, 0.13),
	)

	comparisons := CompareBreakpoints(shares, hhi, CompareOptions{
		PartnerCode: "CN",
		BaseCutoff:  2020,
		AltCutoff:   2022,
	})
	require.Len(t, comparisons, 1, "products missing either series are dropped")
	c := comparisons[0]

	assert.Equal(t, "8542", c.ProductCode)
	assert.False(t, math.IsNaN(c.ShareSlopeChgBase))
	assert.False(t, math.IsNaN(c.ShareSlopeChgAlt))
	assert.Equal(t, math.Abs(c.ShareSlopeChgAlt) > math.Abs(c.ShareSlopeChgBase), c.ShareStrongerAlt)
	assert.Equal(t, math.Abs(c.HHISlopeChgAlt) > math.Abs(c.HHISlopeChgBase), c.HHIStrongerAlt)
}
