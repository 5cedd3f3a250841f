// Package ingest normalises the two raw Eurostat CSV layouts into the
// canonical trade record schema. Both loaders produce identical columns
// so every downstream transform is layout-agnostic.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
)

// v2 positional layout. The first line is a structure metadata row and
// the header proper repeats column names, so the file is read without
// headers and mapped by index.
const (
	v2ColPartnerCode = 7
	v2ColPartnerName = 8
	v2ColProductCode = 9
	v2ColProductName = 10
	v2ColTimePeriod  = 15
	v2ColValue       = 17

	v2MinColumns = 18
)

// ParseError reports a structurally invalid input row. Ingestion is
// all-or-nothing: one bad row fails the whole load with its location.
type ParseError struct {
	File   string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: line %d: column %q: %v", e.File, e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadV1 reads the header-based layout: composite "CODE:Name" partner
// and product columns, TIME_PERIOD and OBS_VALUE value columns.
func LoadV1(path string) ([]model.TradeRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trade csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"partner", "product", "TIME_PERIOD", "OBS_VALUE"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}

	records := make([]model.TradeRecord, 0, 256)
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}

		partnerCode, partnerName, err := splitComposite(row[idx["partner"]])
		if err != nil {
			return nil, &ParseError{File: path, Line: line, Column: "partner", Err: err}
		}
		productCode, productName, err := splitComposite(row[idx["product"]])
		if err != nil {
			return nil, &ParseError{File: path, Line: line, Column: "product", Err: err}
		}
		if productCode == model.TotalProductCode {
			continue
		}

		year, err := parseYear(row[idx["TIME_PERIOD"]])
		if err != nil {
			return nil, &ParseError{File: path, Line: line, Column: "TIME_PERIOD", Err: err}
		}
		value, err := parseValue(row[idx["OBS_VALUE"]])
		if err != nil {
			return nil, &ParseError{File: path, Line: line, Column: "OBS_VALUE", Err: err}
		}

		records = append(records, model.TradeRecord{
			PartnerCode: partnerCode,
			PartnerName: partnerName,
			ProductCode: productCode,
			ProductName: productName,
			TimePeriod:  year,
			Value:       value,
		})
	}

	return records, nil
}

// LoadV2 reads the header-less layout. The first line (structure
// metadata) is skipped and fields are taken by position; columns other
// than partner, product, time period, and value are ignored.
func LoadV2(path string) ([]model.TradeRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trade csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("%s: read structure row: %w", path, err)
	}

	records := make([]model.TradeRecord, 0, 256)
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		if len(row) < v2MinColumns {
			return nil, &ParseError{
				File:   path,
				Line:   line,
				Column: "row",
				Err:    fmt.Errorf("expected at least %d columns, got %d", v2MinColumns, len(row)),
			}
		}

		productCode := strings.TrimSpace(row[v2ColProductCode])
		if productCode == model.TotalProductCode {
			continue
		}

		year, err := parseYear(row[v2ColTimePeriod])
		if err != nil {
			return nil, &ParseError{File: path, Line: line, Column: "TIME_PERIOD", Err: err}
		}
		value, err := parseValue(row[v2ColValue])
		if err != nil {
			return nil, &ParseError{File: path, Line: line, Column: "OBS_VALUE", Err: err}
		}

		records = append(records, model.TradeRecord{
			PartnerCode: strings.TrimSpace(row[v2ColPartnerCode]),
			PartnerName: strings.TrimSpace(row[v2ColPartnerName]),
			ProductCode: productCode,
			ProductName: strings.TrimSpace(row[v2ColProductName]),
			TimePeriod:  year,
			Value:       value,
		})
	}

	return records, nil
}

// Load dispatches on the configured format name.
func Load(format, path string) ([]model.TradeRecord, error) {
	switch format {
	case "v1":
		return LoadV1(path)
	case "v2":
		return LoadV2(path)
	default:
		return nil, fmt.Errorf("unknown ingest format %q", format)
	}
}

func splitComposite(field string) (code, name string, err error) {
	code, name, found := strings.Cut(field, ":")
	if !found || code == "" {
		return "", "", fmt.Errorf("expected CODE:Name, got %q", field)
	}
	return strings.TrimSpace(code), strings.TrimSpace(name), nil
}

func parseYear(field string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, fmt.Errorf("non-numeric year %q", field)
	}
	return year, nil
}

func parseValue(field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric value %q", field)
	}
	return value, nil
}
