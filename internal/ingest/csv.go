// Package ingest parses raw source snapshots (price reports, utilization
// reports, drug reference) from CSV files into model rows.
package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"pricetrends/internal/model"
)

// dateLayouts covers the formats seen across source snapshots. Dates are
// normalized to ISO form so string comparison is chronological comparison.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

func openCSV(path string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}

	bufReader := bufio.NewReaderSize(file, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// readHeader reads the first row and returns a normalized column name →
// index map. Names are lowercased with spaces collapsed to underscores so
// "Effective Date" and "effective_date" resolve to the same column.
func readHeader(reader *csv.Reader) (map[string]int, error) {
	row, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	if len(row) > 0 {
		row[0] = strings.TrimPrefix(row[0], "﻿")
	}

	colIdx := make(map[string]int, len(row))
	for i, h := range row {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		colIdx[key] = i
	}
	return colIdx, nil
}

// col returns the index of the first matching column name, trying aliases in
// order. Source snapshots are not consistent about column naming across
// vintages.
func col(colIdx map[string]int, names ...string) (int, error) {
	for _, name := range names {
		if idx, ok := colIdx[name]; ok {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("missing column %q", names[0])
}

func field(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseDate(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unparsable date %q", s)
}

// parseFloat parses a numeric cell, tolerating thousands separators and
// treating an empty cell as zero.
func parseFloat(s string) (float64, error) {
	cleaned := strings.ReplaceAll(s, ",", "")
	if cleaned == "" {
		return 0, nil
	}
	return strconv.ParseFloat(cleaned, 64)
}

func parseBool(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "YES", "TRUE", "T", "1":
		return true
	}
	return false
}

// ReadPriceObservations parses a NADAC-style price snapshot. A row with an
// unparsable date or price fails the read: price data is the backbone of
// every derived table and a partial read must not look like a full one.
func ReadPriceObservations(path string) ([]model.PriceObservation, error) {
	file, reader, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	colIdx, err := readHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ndcIdx, err := col(colIdx, "ndc")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dateIdx, err := col(colIdx, "effective_date")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	priceIdx, err := col(colIdx, "unit_price", "nadac_per_unit")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	asOfIdx, err := col(colIdx, "as_of", "as_of_date")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	classIdx, err := col(colIdx, "classification", "classification_for_rate_setting")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rxIdx, err := col(colIdx, "is_rx", "pharmacy_type_indicator")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var obs []model.PriceObservation
	rowNum := int64(1)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, rowNum+1, err)
		}
		rowNum++

		effectiveDate, err := parseDate(field(row, dateIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: effective_date: %w", path, rowNum, err)
		}
		asOf, err := parseDate(field(row, asOfIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: as_of: %w", path, rowNum, err)
		}
		unitPrice, err := parseFloat(field(row, priceIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: unit_price: %w", path, rowNum, err)
		}

		obs = append(obs, model.PriceObservation{
			NDC:            field(row, ndcIdx),
			EffectiveDate:  effectiveDate,
			UnitPrice:      unitPrice,
			AsOf:           asOf,
			Classification: field(row, classIdx),
			IsRx:           parseBool(field(row, rxIdx)),
		})
	}
	return obs, nil
}

// ReadUtilizationObservations parses an SDUD-style utilization snapshot.
// Empty unit or prescription cells coerce to zero (suppressed small counts
// are common in the source data).
func ReadUtilizationObservations(path string) ([]model.UtilizationObservation, error) {
	file, reader, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	colIdx, err := readHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	stateIdx, err := col(colIdx, "state")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ndcIdx, err := col(colIdx, "ndc")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	yearIdx, err := col(colIdx, "year")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	quarterIdx, err := col(colIdx, "quarter")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	unitsIdx, err := col(colIdx, "units", "units_reimbursed")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rxIdx, err := col(colIdx, "rx_count", "number_of_prescriptions")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var obs []model.UtilizationObservation
	rowNum := int64(1)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, rowNum+1, err)
		}
		rowNum++

		year, err := strconv.Atoi(field(row, yearIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: year: %w", path, rowNum, err)
		}
		quarter, err := strconv.Atoi(field(row, quarterIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: quarter: %w", path, rowNum, err)
		}
		units, err := parseFloat(field(row, unitsIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: units: %w", path, rowNum, err)
		}
		rxCount, err := parseFloat(field(row, rxIdx))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: rx_count: %w", path, rowNum, err)
		}

		obs = append(obs, model.UtilizationObservation{
			State:   strings.ToUpper(field(row, stateIdx)),
			NDC:     field(row, ndcIdx),
			Year:    year,
			Quarter: quarter,
			Units:   units,
			RxCount: rxCount,
		})
	}
	return obs, nil
}

// ReadDrugReference parses the drug reference snapshot.
func ReadDrugReference(path string) ([]model.DrugReference, error) {
	file, reader, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	colIdx, err := readHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ndcIdx, err := col(colIdx, "ndc")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	nameIdx, err := col(colIdx, "product_name", "generic_name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	groupIdx, err := col(colIdx, "product_group", "gpi_generic_name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	formIdx, err := col(colIdx, "dosage_form")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rxIdx, err := col(colIdx, "is_rx")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var refs []model.DrugReference
	rowNum := int64(1)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, rowNum+1, err)
		}
		rowNum++

		refs = append(refs, model.DrugReference{
			NDC:          field(row, ndcIdx),
			ProductName:  field(row, nameIdx),
			ProductGroup: field(row, groupIdx),
			DosageForm:   field(row, formIdx),
			IsRx:         parseBool(field(row, rxIdx)),
		})
	}
	return refs, nil
}
