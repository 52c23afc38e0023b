// Package pipeline builds the persisted derived tables (price history, date
// index, utilization summary) from raw source snapshots.
package pipeline

import (
	"sort"

	"pricetrends/internal/model"
)

// monthKey returns the YYYY-MM bucket of an ISO date.
func monthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// BuildPriceHistory reduces raw price observations to one row per
// (ndc, month) with a previous-price lookback:
//
//  1. keep generic rx observations for eligible NDCs
//  2. per (ndc, effective_date), keep the first report (by as_of)
//  3. per (ndc, month), keep the latest effective_date — the price still in
//     effect at month end
//  4. previous_unit_price = the prior row's unit_price within the ndc
//     partition, nil for a drug's first row
//
// Deduplication happens before the lookback, so a same-month correction is
// never surfaced as a price change. MonthID is left unset; AssignMonthIDs
// fills it from the date index.
func BuildPriceHistory(obs []model.PriceObservation, eligible map[string]bool) []model.PriceHistoryRow {
	filtered := make([]model.PriceObservation, 0, len(obs))
	for _, o := range obs {
		if o.Classification == "G" && o.IsRx && eligible[o.NDC] {
			filtered = append(filtered, o)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.NDC != b.NDC {
			return a.NDC < b.NDC
		}
		if a.EffectiveDate != b.EffectiveDate {
			return a.EffectiveDate < b.EffectiveDate
		}
		return a.AsOf < b.AsOf
	})

	// First report wins per (ndc, effective_date).
	daily := filtered[:0]
	for _, o := range filtered {
		n := len(daily)
		if n > 0 && daily[n-1].NDC == o.NDC && daily[n-1].EffectiveDate == o.EffectiveDate {
			continue
		}
		daily = append(daily, o)
	}

	// Latest effective_date wins per (ndc, month). Input is sorted, so the
	// last observation of each (ndc, month) run is the latest.
	var monthly []model.PriceObservation
	for i, o := range daily {
		last := i == len(daily)-1 ||
			daily[i+1].NDC != o.NDC ||
			monthKey(daily[i+1].EffectiveDate) != monthKey(o.EffectiveDate)
		if last {
			monthly = append(monthly, o)
		}
	}

	rows := make([]model.PriceHistoryRow, 0, len(monthly))
	var prevNDC string
	var prevPrice float64
	for _, o := range monthly {
		row := model.PriceHistoryRow{
			NDC:           o.NDC,
			EffectiveDate: o.EffectiveDate,
			UnitPrice:     o.UnitPrice,
		}
		if o.NDC == prevNDC {
			p := prevPrice
			row.PreviousUnitPrice = &p
		}
		rows = append(rows, row)
		prevNDC, prevPrice = o.NDC, o.UnitPrice
	}
	return rows
}

// AssignMonthIDs sets MonthID on each history row from the date index.
func AssignMonthIDs(rows []model.PriceHistoryRow, index []model.DateIndexRow) {
	ids := make(map[string]int32, len(index))
	for _, d := range index {
		ids[d.MonthKey] = d.MonthID
	}
	for i := range rows {
		rows[i].MonthID = ids[monthKey(rows[i].EffectiveDate)]
	}
}

// PricedNDCs returns the set of NDCs present in the price history.
func PricedNDCs(rows []model.PriceHistoryRow) map[string]bool {
	ndcs := make(map[string]bool)
	for _, r := range rows {
		ndcs[r.NDC] = true
	}
	return ndcs
}
