// Package processing derives market shares, growth metrics, product
// weights, and concentration indices from canonical trade records.
// Every function is a pure transform from one table to another.
package processing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
)

// ShareOptions parameterise share derivation.
type ShareOptions struct {
	// AggregateCode names the partner rows that hold the denominator
	// for a product/year, e.g. the extra-EU world aggregate.
	AggregateCode string
	// SignificanceThreshold is the minimum share that counts as a
	// significant market position.
	SignificanceThreshold float64
}

type seriesKey struct {
	Partner string
	Product string
}

type cellKey struct {
	Year    int
	Product string
}

// ComputeShares joins each record to its product/year denominator and
// derives share, year-over-year growth, a centred 3-year moving
// average, and significance flags. Window metrics are computed per
// (partner, product) series ordered by year; a missing denominator
// leaves the share and its flags nil rather than failing.
func ComputeShares(records []model.TradeRecord, opts ShareOptions) []model.ShareRecord {
	denominator := make(map[cellKey]float64)
	for _, rec := range records {
		if rec.PartnerCode == opts.AggregateCode {
			denominator[cellKey{Year: rec.TimePeriod, Product: rec.ProductCode}] = rec.Value
		}
	}

	shares := make([]model.ShareRecord, 0, len(records))
	for _, rec := range records {
		if rec.PartnerCode == opts.AggregateCode || rec.ProductCode == model.TotalProductCode {
			continue
		}
		row := model.ShareRecord{TradeRecord: rec}
		if total, ok := denominator[cellKey{Year: rec.TimePeriod, Product: rec.ProductCode}]; ok && total != 0 {
			row.Share = ptr(rec.Value / total)
			row.IsSignificant = ptrBool(*row.Share >= opts.SignificanceThreshold)
		}
		shares = append(shares, row)
	}

	for _, group := range groupSeries(shares) {
		deriveWindows(shares, group)
	}

	return shares
}

// groupSeries indexes rows by (partner, product) and orders each group
// by year ascending. The ordering is what makes lag and rolling
// metrics meaningful, regardless of input row order.
func groupSeries(shares []model.ShareRecord) map[seriesKey][]int {
	groups := make(map[seriesKey][]int)
	for i, row := range shares {
		key := seriesKey{Partner: row.PartnerCode, Product: row.ProductCode}
		groups[key] = append(groups[key], i)
	}
	for _, idx := range groups {
		sort.Slice(idx, func(a, b int) bool {
			return shares[idx[a]].TimePeriod < shares[idx[b]].TimePeriod
		})
	}
	return groups
}

func deriveWindows(shares []model.ShareRecord, idx []int) {
	for pos, i := range idx {
		row := &shares[i]

		if pos > 0 {
			prev := shares[idx[pos-1]]
			if prev.Value != 0 {
				row.YoYRatio = ptr(row.Value / prev.Value)
				row.YoYChangePercent = ptr((row.Value - prev.Value) / prev.Value * 100)
			}
			if prev.IsSignificant != nil {
				row.WasSignificant = ptrBool(*prev.IsSignificant)
			}
		}

		if pos > 0 && pos < len(idx)-1 {
			left := shares[idx[pos-1]].Value
			right := shares[idx[pos+1]].Value
			row.MA3Y = ptr((left + row.Value + right) / 3)
		}
	}
}

// ComputeProductWeights ranks multi-digit product codes by their total
// value over the baseline window ending at baselineEnd. One- and
// two-character codes are broad category aggregates and are excluded.
func ComputeProductWeights(shares []model.ShareRecord, baselineEnd int) []model.ProductWeight {
	totals := make(map[string]decimal.Decimal)
	names := make(map[string]string)
	order := make([]string, 0)

	for _, row := range shares {
		if row.TimePeriod > baselineEnd || len(row.ProductCode) <= 2 {
			continue
		}
		if _, seen := totals[row.ProductCode]; !seen {
			order = append(order, row.ProductCode)
			names[row.ProductCode] = row.ProductName
		}
		totals[row.ProductCode] = totals[row.ProductCode].Add(decimal.NewFromFloat(row.Value))
	}

	grandTotal := decimal.Zero
	for _, code := range order {
		grandTotal = grandTotal.Add(totals[code])
	}

	weights := make([]model.ProductWeight, 0, len(order))
	for _, code := range order {
		weight := model.ProductWeight{
			ProductCode: code,
			ProductName: names[code],
			TotalValue:  totals[code].InexactFloat64(),
		}
		if !grandTotal.IsZero() {
			weight.WeightPct = totals[code].Div(grandTotal).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		weights = append(weights, weight)
	}

	sort.SliceStable(weights, func(a, b int) bool {
		return weights[a].WeightPct > weights[b].WeightPct
	})
	return weights
}

// ComputeHHI computes the concentration index per product/year:
// 10000 times the sum of squared partner shares. Rows without a share
// contribute nothing, so partial denominator coverage still yields a
// usable index for the partners that do have one.
func ComputeHHI(shares []model.ShareRecord) []model.HHIRecord {
	sums := make(map[cellKey]float64)
	for _, row := range shares {
		if row.Share == nil {
			continue
		}
		key := cellKey{Year: row.TimePeriod, Product: row.ProductCode}
		sums[key] += *row.Share * *row.Share
	}

	records := make([]model.HHIRecord, 0, len(sums))
	for key, sum := range sums {
		records = append(records, model.HHIRecord{
			TimePeriod:  key.Year,
			ProductCode: key.Product,
			HHI:         sum * 10000,
		})
	}

	sort.Slice(records, func(a, b int) bool {
		if records[a].TimePeriod != records[b].TimePeriod {
			return records[a].TimePeriod < records[b].TimePeriod
		}
		return records[a].ProductCode < records[b].ProductCode
	})
	return records
}

func ptr(v float64) *float64 { return &v }

func ptrBool(v bool) *bool { return &v }
