package query

import (
	"testing"

	"pricetrends/internal/model"
)

func TestApplyRowMetrics(t *testing.T) {
	prev := 10.00
	row := model.JoinedRow{Units: 100, RxCount: 10, UnitPrice: 12.00, PreviousUnitPrice: &prev}
	applyRowMetrics(&row)

	if row.NewTotalCost != 1200.00 {
		t.Errorf("new total = %v, want 1200", row.NewTotalCost)
	}
	if row.OldTotalCost == nil || *row.OldTotalCost != 1000.00 {
		t.Errorf("old total = %v, want 1000", row.OldTotalCost)
	}
	if row.TotalDiff == nil || *row.TotalDiff != 200.00 {
		t.Errorf("total diff = %v, want 200", row.TotalDiff)
	}
	if row.UnitPriceChange == nil || *row.UnitPriceChange != 2.00 {
		t.Errorf("unit price change = %v, want 2", row.UnitPriceChange)
	}
	if row.Classification != Increase {
		t.Errorf("classification = %q, want Increase", row.Classification)
	}
}

func TestApplyRowMetricsNoPreviousPrice(t *testing.T) {
	row := model.JoinedRow{Units: 100, RxCount: 10, UnitPrice: 12.00}
	applyRowMetrics(&row)

	if row.NewTotalCost != 1200.00 {
		t.Errorf("new total = %v, want 1200", row.NewTotalCost)
	}
	if row.OldTotalCost != nil || row.TotalDiff != nil || row.UnitPriceChange != nil {
		t.Errorf("change columns = %+v, want all nil without a previous price", row)
	}
	if row.Classification != Increase {
		t.Errorf("classification = %q, want Increase", row.Classification)
	}
}

func TestClassifyZeroIsIncrease(t *testing.T) {
	zero := 0.0
	if got := classify(&zero); got != Increase {
		t.Errorf("classify(0) = %q, want Increase", got)
	}
	neg := -0.01
	if got := classify(&neg); got != Decrease {
		t.Errorf("classify(-0.01) = %q, want Decrease", got)
	}
}

func TestDeriveMetrics(t *testing.T) {
	row := model.ResultRow{
		Units: 100, RxCount: 150,
		NewTotalCost: 1220.00, OldTotalCost: 1200.00, TotalDiff: 20.00,
	}
	deriveMetrics(&row)

	if row.DiffPerRx == nil || *row.DiffPerRx != 0.13 {
		t.Errorf("diff per rx = %v, want 0.13", row.DiffPerRx)
	}
	if row.AvgNewPrice == nil || *row.AvgNewPrice != 12.2 {
		t.Errorf("avg new = %v, want 12.2", row.AvgNewPrice)
	}
	if row.AvgOldPrice == nil || *row.AvgOldPrice != 12.0 {
		t.Errorf("avg old = %v, want 12.0", row.AvgOldPrice)
	}
	if row.AvgUnitChange == nil || *row.AvgUnitChange != 0.2 {
		t.Errorf("avg unit change = %v, want 0.2", row.AvgUnitChange)
	}
	if row.PercentChange == nil || *row.PercentChange != 0.0167 {
		t.Errorf("percent change = %v, want 0.0167", row.PercentChange)
	}
	if row.TotalDiffAbs != 20.00 {
		t.Errorf("total diff abs = %v, want 20", row.TotalDiffAbs)
	}
	if row.Classification != Increase {
		t.Errorf("classification = %q, want Increase", row.Classification)
	}
}

func TestDeriveMetricsZeroDenominators(t *testing.T) {
	// Zero prescriptions: diff_per_rx undefined, not an error, not infinity.
	row := model.ResultRow{Units: 100, RxCount: 0, NewTotalCost: 1050, OldTotalCost: 1000, TotalDiff: 50}
	deriveMetrics(&row)
	if row.DiffPerRx != nil || row.DiffPerRxAbs != nil {
		t.Errorf("diff per rx = %v, want nil for zero rx_count", row.DiffPerRx)
	}
	if row.AvgNewPrice == nil {
		t.Error("avg new price should still be derived")
	}

	// Zero old total: percent_change undefined.
	row = model.ResultRow{Units: 100, RxCount: 10, NewTotalCost: 1050, OldTotalCost: 0, TotalDiff: 1050}
	deriveMetrics(&row)
	if row.PercentChange != nil {
		t.Errorf("percent change = %v, want nil for zero old total", row.PercentChange)
	}

	// Zero units: average prices undefined.
	row = model.ResultRow{Units: 0, RxCount: 10, NewTotalCost: 0, OldTotalCost: 0, TotalDiff: 0}
	deriveMetrics(&row)
	if row.AvgNewPrice != nil || row.AvgOldPrice != nil || row.AvgUnitChange != nil {
		t.Errorf("avg metrics = %+v, want nil for zero units", row)
	}
}

func TestDeriveMetricsNegativeDiff(t *testing.T) {
	row := model.ResultRow{Units: 10, RxCount: 5, NewTotalCost: 90, OldTotalCost: 100, TotalDiff: -10}
	deriveMetrics(&row)

	if row.Classification != Decrease {
		t.Errorf("classification = %q, want Decrease", row.Classification)
	}
	if row.TotalDiffAbs != 10 {
		t.Errorf("total diff abs = %v, want 10", row.TotalDiffAbs)
	}
	if row.DiffPerRx == nil || *row.DiffPerRx != -2.00 {
		t.Errorf("diff per rx = %v, want -2", row.DiffPerRx)
	}
	if row.DiffPerRxAbs == nil || *row.DiffPerRxAbs != 2.00 {
		t.Errorf("diff per rx abs = %v, want 2", row.DiffPerRxAbs)
	}
	if row.PercentChange == nil || *row.PercentChange != -0.1 {
		t.Errorf("percent change = %v, want -0.1", row.PercentChange)
	}
}

func TestRounding(t *testing.T) {
	cases := []struct {
		in    float64
		want2 float64
		want4 float64
	}{
		{1.23456, 1.23, 1.2346},
		{1.006, 1.01, 1.006},
		{-1.23456, -1.23, -1.2346},
		{0, 0, 0},
	}
	for _, c := range cases {
		if got := round2(c.in); got != c.want2 {
			t.Errorf("round2(%v) = %v, want %v", c.in, got, c.want2)
		}
		if got := round4(c.in); got != c.want4 {
			t.Errorf("round4(%v) = %v, want %v", c.in, got, c.want4)
		}
	}
}
