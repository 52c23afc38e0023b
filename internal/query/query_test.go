package query

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pricetrends/internal/model"
	"pricetrends/internal/pipeline"
)

func f64(v float64) *float64 { return &v }

// openFixtureStore writes a small set of derived tables plus a reference
// snapshot and opens a Store over them.
//
// Fixture shape for month 2 (February):
//
//	CA D1 Lisinopril:  12.00 (was 10.00), 1000 units, 100 rx → diff +2000
//	CA D2 Lisinopril:  4.80 (was 5.00),   500 units, 50 rx  → diff -100
//	CA D3 Fluoxetine:  2.00 (was 2.00),   300 units, 30 rx  → diff 0
//	NY D1 Lisinopril:  12.00 (was 10.00), 200 units, 20 rx  → diff +400
//	CA D4 Sertraline:  priced in month 1 only — excluded from month 2 joins
//	CA D9:             utilization only, never priced — always excluded
func openFixtureStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()

	history := []model.PriceHistoryRow{
		{NDC: "D1", MonthID: 1, EffectiveDate: "2024-01-05", UnitPrice: 10.00},
		{NDC: "D1", MonthID: 2, EffectiveDate: "2024-02-10", UnitPrice: 12.00, PreviousUnitPrice: f64(10.00)},
		{NDC: "D2", MonthID: 1, EffectiveDate: "2024-01-08", UnitPrice: 5.00},
		{NDC: "D2", MonthID: 2, EffectiveDate: "2024-02-12", UnitPrice: 4.80, PreviousUnitPrice: f64(5.00)},
		{NDC: "D3", MonthID: 2, EffectiveDate: "2024-02-15", UnitPrice: 2.00, PreviousUnitPrice: f64(2.00)},
		{NDC: "D4", MonthID: 1, EffectiveDate: "2024-01-20", UnitPrice: 7.00},
	}
	index := []model.DateIndexRow{
		{MonthStart: "2024-01-01", MonthKey: "2024-01", MonthID: 1},
		{MonthStart: "2024-02-01", MonthKey: "2024-02", MonthID: 2},
	}
	util := []model.UtilizationSummaryRow{
		{State: "CA", NDC: "D1", Units: 1000, RxCount: 100},
		{State: "CA", NDC: "D2", Units: 500, RxCount: 50},
		{State: "CA", NDC: "D3", Units: 300, RxCount: 30},
		{State: "NY", NDC: "D1", Units: 200, RxCount: 20},
		{State: "CA", NDC: "D4", Units: 50, RxCount: 5},
		{State: "CA", NDC: "D9", Units: 10, RxCount: 1},
	}

	if err := pipeline.WriteTable(filepath.Join(dir, pipeline.PriceHistoryFile), history); err != nil {
		t.Fatalf("write history: %v", err)
	}
	if err := pipeline.WriteTable(filepath.Join(dir, pipeline.DateIndexFile), index); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := pipeline.WriteTable(filepath.Join(dir, pipeline.UtilizationSummaryFile), util); err != nil {
		t.Fatalf("write utilization: %v", err)
	}

	refPath := filepath.Join(dir, "reference.csv")
	refCSV := "ndc,product_name,product_group,dosage_form,is_rx\n" +
		"D1,Lisinopril 10mg Tab,Lisinopril,Tablet,Y\n" +
		"D2,Lisinopril 20mg Tab,Lisinopril,Tablet,Y\n" +
		"D3,Fluoxetine 20mg Cap,Fluoxetine,Capsule,Y\n" +
		"D4,Sertraline 50mg Tab,Sertraline,Tablet,Y\n" +
		"D9,Unpriced Drug Tab,Unpriced,Tablet,Y\n"
	if err := os.WriteFile(refPath, []byte(refCSV), 0o644); err != nil {
		t.Fatalf("write reference: %v", err)
	}

	store, err := Open(dir, refPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestQueryGroupByProductGroup(t *testing.T) {
	store := openFixtureStore(t)

	rows, err := store.Query(Params{MonthID: 2, State: "CA", GroupBy: GroupByProductGroup})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want Fluoxetine and Lisinopril", rows)
	}

	fluox, lisin := rows[0], rows[1]
	if fluox.GroupKey != "Fluoxetine" || lisin.GroupKey != "Lisinopril" {
		t.Fatalf("group keys = %q, %q", fluox.GroupKey, lisin.GroupKey)
	}

	// D1: 12000-10000 = +2000; D2: 2400-2500 = -100. Summed bases, ratios
	// recomputed from the sums: 1900 / 150 rx = 12.67.
	if lisin.Units != 1500 || lisin.RxCount != 150 {
		t.Errorf("lisinopril bases = %v units %v rx, want 1500/150", lisin.Units, lisin.RxCount)
	}
	if lisin.TotalDiff != 1900 {
		t.Errorf("lisinopril total diff = %v, want 1900", lisin.TotalDiff)
	}
	if lisin.DiffPerRx == nil || *lisin.DiffPerRx != 12.67 {
		t.Errorf("lisinopril diff per rx = %v, want 12.67 (1900/150)", lisin.DiffPerRx)
	}
	if lisin.Classification != Increase {
		t.Errorf("lisinopril classification = %q", lisin.Classification)
	}

	// Zero diff classifies as Increase.
	if fluox.TotalDiff != 0 || fluox.Classification != Increase {
		t.Errorf("fluoxetine = %+v, want zero diff Increase", fluox)
	}
}

func TestQueryAggregationFromSums(t *testing.T) {
	// Two drugs in one group: diffs +30 and -10 with 100 and 50 rx must
	// aggregate to 20/150 ≈ 0.13, not the mean of per-row ratios.
	dir := t.TempDir()

	history := []model.PriceHistoryRow{
		{NDC: "A1", MonthID: 1, EffectiveDate: "2024-01-05", UnitPrice: 1.30, PreviousUnitPrice: f64(1.00)},
		{NDC: "A2", MonthID: 1, EffectiveDate: "2024-01-06", UnitPrice: 0.90, PreviousUnitPrice: f64(1.00)},
	}
	index := []model.DateIndexRow{{MonthStart: "2024-01-01", MonthKey: "2024-01", MonthID: 1}}
	util := []model.UtilizationSummaryRow{
		{State: "CA", NDC: "A1", Units: 100, RxCount: 100},
		{State: "CA", NDC: "A2", Units: 100, RxCount: 50},
	}
	if err := pipeline.WriteTable(filepath.Join(dir, pipeline.PriceHistoryFile), history); err != nil {
		t.Fatal(err)
	}
	if err := pipeline.WriteTable(filepath.Join(dir, pipeline.DateIndexFile), index); err != nil {
		t.Fatal(err)
	}
	if err := pipeline.WriteTable(filepath.Join(dir, pipeline.UtilizationSummaryFile), util); err != nil {
		t.Fatal(err)
	}
	refPath := filepath.Join(dir, "reference.csv")
	refCSV := "ndc,product_name,product_group,dosage_form,is_rx\n" +
		"A1,Drug A 10mg Tab,Group A,Tablet,Y\n" +
		"A2,Drug A 20mg Tab,Group A,Tablet,Y\n"
	if err := os.WriteFile(refPath, []byte(refCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := Open(dir, refPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rows, err := store.Query(Params{MonthID: 1, GroupBy: GroupByProductGroup})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %+v, want one group", rows)
	}

	g := rows[0]
	if g.TotalDiff != 20 {
		t.Errorf("total diff = %v, want 20", g.TotalDiff)
	}
	if g.DiffPerRx == nil || *g.DiffPerRx != 0.13 {
		t.Errorf("diff per rx = %v, want 0.13 (sum/sum, not mean of 0.30 and -0.20)", g.DiffPerRx)
	}
}

func TestQueryInnerJoinExclusion(t *testing.T) {
	store := openFixtureStore(t)

	rows, err := store.Query(Params{MonthID: 2, State: "CA", GroupBy: GroupByProduct})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, r := range rows {
		// D9 has utilization but no price history at all; D4 is priced only
		// in month 1. Neither may appear in a month-2 result.
		if r.GroupKey == "Unpriced Drug Tab" || r.GroupKey == "Sertraline 50mg Tab" {
			t.Errorf("excluded drug leaked into result: %q", r.GroupKey)
		}
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3 products", len(rows))
	}
}

func TestQueryGroupByState(t *testing.T) {
	store := openFixtureStore(t)

	rows, err := store.Query(Params{MonthID: 2, GroupBy: GroupByState})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 || rows[0].GroupKey != "CA" || rows[1].GroupKey != "NY" {
		t.Fatalf("rows = %+v, want CA and NY", rows)
	}
	if rows[1].TotalDiff != 400 {
		t.Errorf("NY total diff = %v, want 400", rows[1].TotalDiff)
	}
}

func TestQueryChangeFilter(t *testing.T) {
	store := openFixtureStore(t)

	rows, err := store.Query(Params{
		MonthID: 2, State: "CA", GroupBy: GroupByProduct, Change: ChangeDecrease,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 || rows[0].GroupKey != "Lisinopril 20mg Tab" {
		t.Fatalf("rows = %+v, want only the decreased product", rows)
	}
}

func TestQueryProductGroupAllowList(t *testing.T) {
	store := openFixtureStore(t)

	rows, err := store.Query(Params{
		MonthID: 2, State: "CA", GroupBy: GroupByProduct,
		ProductGroups: []string{"Lisinopril"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want the two Lisinopril products", rows)
	}
}

func TestQueryUnknownMonth(t *testing.T) {
	store := openFixtureStore(t)

	_, err := store.Query(Params{MonthID: 99, GroupBy: GroupByState})
	if !errors.Is(err, ErrUnknownMonth) {
		t.Fatalf("err = %v, want ErrUnknownMonth", err)
	}
}

func TestQueryMalformedState(t *testing.T) {
	store := openFixtureStore(t)

	for _, state := range []string{"C", "CAL", "c1", "12"} {
		_, err := store.Query(Params{MonthID: 2, State: state, GroupBy: GroupByState})
		if !errors.Is(err, ErrUnknownState) {
			t.Errorf("state %q: err = %v, want ErrUnknownState", state, err)
		}
	}
}

func TestQueryEmptyResult(t *testing.T) {
	store := openFixtureStore(t)

	// Valid filters, no matching rows: WY has no utilization.
	_, err := store.Query(Params{MonthID: 2, State: "WY", GroupBy: GroupByState})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
}

func TestQueryInvalidGroupBy(t *testing.T) {
	store := openFixtureStore(t)

	_, err := store.Query(Params{MonthID: 2, GroupBy: "ndc"})
	if err == nil || errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want invalid group_by error", err)
	}
}

func TestDistinctValuesFilterContext(t *testing.T) {
	store := openFixtureStore(t)

	// NY only has D1, so the product-group choices under a NY filter are
	// just Lisinopril — the current filter context, not the full domain.
	groups, err := store.DistinctValues(GroupByProductGroup, Params{MonthID: 2, State: "NY"})
	if err != nil {
		t.Fatalf("DistinctValues: %v", err)
	}
	if len(groups) != 1 || groups[0] != "Lisinopril" {
		t.Fatalf("groups = %v, want [Lisinopril]", groups)
	}

	// The field's own allow-list is ignored; other allow-lists apply.
	products, err := store.DistinctValues(GroupByProduct, Params{
		MonthID: 2, State: "CA",
		Products:      []string{"Lisinopril 10mg Tab"},
		ProductGroups: []string{"Lisinopril"},
	})
	if err != nil {
		t.Fatalf("DistinctValues: %v", err)
	}
	want := []string{"Lisinopril 10mg Tab", "Lisinopril 20mg Tab"}
	if len(products) != 2 || products[0] != want[0] || products[1] != want[1] {
		t.Fatalf("products = %v, want %v", products, want)
	}
}

func TestDistinctValuesInvalidField(t *testing.T) {
	store := openFixtureStore(t)

	if _, err := store.DistinctValues(GroupByState, Params{MonthID: 2}); err == nil {
		t.Fatal("expected error for state field")
	}
}

func TestMonthsAndStates(t *testing.T) {
	store := openFixtureStore(t)

	months := store.Months()
	if len(months) != 2 || months[0].MonthID != 1 || months[1].MonthKey != "2024-02" {
		t.Fatalf("months = %+v", months)
	}

	states := store.States()
	if len(states) != 2 || states[0] != "CA" || states[1] != "NY" {
		t.Fatalf("states = %v, want [CA NY]", states)
	}
}
