package pipeline

import (
	"sort"

	"pricetrends/internal/model"
)

type period struct {
	year    int
	quarter int
}

// recentPeriods returns the n most recent distinct (year, quarter) periods
// present in the observations.
func recentPeriods(obs []model.UtilizationObservation, n int) map[period]bool {
	seen := make(map[period]bool)
	var periods []period
	for _, o := range obs {
		p := period{o.Year, o.Quarter}
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].year != periods[j].year {
			return periods[i].year > periods[j].year
		}
		return periods[i].quarter > periods[j].quarter
	})
	if len(periods) > n {
		periods = periods[:n]
	}

	keep := make(map[period]bool, len(periods))
	for _, p := range periods {
		keep[p] = true
	}
	return keep
}

// BuildUtilizationSummary collapses raw utilization observations to one
// summed row per (state, ndc), restricted to the n most recent reporting
// periods and to NDCs present in the price history. A pair with no rows in
// those periods is absent from the output, not zero-filled.
func BuildUtilizationSummary(obs []model.UtilizationObservation, priced map[string]bool, n int) []model.UtilizationSummaryRow {
	keep := recentPeriods(obs, n)

	type pair struct{ state, ndc string }
	sums := make(map[pair]*model.UtilizationSummaryRow)
	for _, o := range obs {
		if !keep[period{o.Year, o.Quarter}] || !priced[o.NDC] {
			continue
		}
		key := pair{o.State, o.NDC}
		row, ok := sums[key]
		if !ok {
			row = &model.UtilizationSummaryRow{State: o.State, NDC: o.NDC}
			sums[key] = row
		}
		row.Units += o.Units
		row.RxCount += o.RxCount
	}

	rows := make([]model.UtilizationSummaryRow, 0, len(sums))
	for _, row := range sums {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].State != rows[j].State {
			return rows[i].State < rows[j].State
		}
		return rows[i].NDC < rows[j].NDC
	})
	return rows
}
