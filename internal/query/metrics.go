package query

import (
	"math"

	"pricetrends/internal/model"
)

// Classification labels. Zero difference counts as an increase: the label
// answers "did the price go down", and it did not.
const (
	Increase = "Increase"
	Decrease = "Decrease"
)

func round2(x float64) float64 { return math.Round(x*100) / 100 }
func round4(x float64) float64 { return math.Round(x*10000) / 10000 }

func ptr(x float64) *float64 { return &x }

// classify labels a total difference. A nil difference (no previous price)
// classifies as Increase, same as zero.
func classify(totalDiff *float64) string {
	if totalDiff != nil && *totalDiff < 0 {
		return Decrease
	}
	return Increase
}

// applyRowMetrics fills the derived columns of one joined row. Cost columns
// are rounded to cents. A row with no previous price gets nil change
// columns: it carries no change information and is skipped by change sums.
func applyRowMetrics(row *model.JoinedRow) {
	row.NewTotalCost = round2(row.UnitPrice * row.Units)
	if row.PreviousUnitPrice != nil {
		prev := *row.PreviousUnitPrice
		row.OldTotalCost = ptr(round2(prev * row.Units))
		row.TotalDiff = ptr(row.NewTotalCost - *row.OldTotalCost)
		row.UnitPriceChange = ptr(row.UnitPrice - prev)
	}
	row.Classification = classify(row.TotalDiff)
}

// deriveMetrics recomputes every ratio metric of a result row from its
// summed base quantities. Ratios come from summed numerators over summed
// denominators — never from averaging per-row ratios — so the same formulas
// hold at any granularity. A zero denominator leaves that metric nil.
func deriveMetrics(row *model.ResultRow) {
	row.TotalDiffAbs = math.Abs(row.TotalDiff)
	row.Classification = classify(&row.TotalDiff)

	if row.Units != 0 {
		avgNew := round4(row.NewTotalCost / row.Units)
		avgOld := round4(row.OldTotalCost / row.Units)
		row.AvgNewPrice = ptr(avgNew)
		row.AvgOldPrice = ptr(avgOld)
		row.AvgUnitChange = ptr(round2(avgNew - avgOld))
	}
	if row.RxCount != 0 {
		perRx := round2(row.TotalDiff / row.RxCount)
		row.DiffPerRx = ptr(perRx)
		row.DiffPerRxAbs = ptr(math.Abs(perRx))
	}
	if row.OldTotalCost != 0 {
		row.PercentChange = ptr(round4((row.NewTotalCost - row.OldTotalCost) / row.OldTotalCost))
	}
}
