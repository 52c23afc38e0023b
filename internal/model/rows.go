// Package model holds the row types shared by every pipeline stage. The
// persisted types mirror the Parquet table schemas exactly; transient types
// exist only while a query runs.
package model

// PriceObservation is one raw price report as parsed from a NADAC-style
// snapshot. Dates are ISO strings (YYYY-MM-DD) so chronological order is
// lexicographic order. AsOf is the report date of the snapshot row and is
// the tie-break key when a drug has several reports for the same day.
type PriceObservation struct {
	NDC            string
	EffectiveDate  string
	UnitPrice      float64
	AsOf           string
	Classification string
	IsRx           bool
}

// PriceHistoryRow is one row of the persisted price_history table: at most
// one row per (ndc, month_id), carrying the most recent price in effect as
// of month end. PreviousUnitPrice is nil for a drug's first month on record.
type PriceHistoryRow struct {
	NDC               string   `parquet:"ndc"`
	MonthID           int32    `parquet:"month_id"`
	EffectiveDate     string   `parquet:"effective_date"`
	UnitPrice         float64  `parquet:"unit_price"`
	PreviousUnitPrice *float64 `parquet:"previous_unit_price,optional"`
}

// DateIndexRow maps one distinct calendar month of the price history to its
// dense surrogate key. MonthID runs 1..N in chronological order. MonthKey is
// the YYYY-MM form callers use for display labels.
type DateIndexRow struct {
	MonthStart string `parquet:"month_start_date"`
	MonthKey   string `parquet:"month_key"`
	MonthID    int32  `parquet:"month_id"`
}

// UtilizationObservation is one raw state/drug/period row from an SDUD-style
// snapshot. Missing numeric cells parse as zero.
type UtilizationObservation struct {
	State   string
	NDC     string
	Year    int
	Quarter int
	Units   float64
	RxCount float64
}

// UtilizationSummaryRow is one row of the persisted utilization_summary
// table: units and prescriptions summed over the most recent reporting
// periods for one (state, ndc) pair. Pairs with no rows in those periods are
// absent, not zero.
type UtilizationSummaryRow struct {
	State   string  `parquet:"state"`
	NDC     string  `parquet:"ndc"`
	Units   float64 `parquet:"units"`
	RxCount float64 `parquet:"rx_count"`
}

// DrugReference is one row of the static drug reference lookup. Many NDCs
// share one ProductGroup (generic identity).
type DrugReference struct {
	NDC          string
	ProductName  string
	ProductGroup string
	DosageForm   string
	IsRx         bool
}

// JoinedRow is the transient join of one utilization summary row with the
// queried month's price history and the drug reference, plus the row-level
// derived columns. OldTotalCost, TotalDiff and UnitPriceChange are nil when
// the drug has no previous price (first month on record): such a row carries
// no change information and contributes nothing to change sums.
type JoinedRow struct {
	State        string
	NDC          string
	Product      string
	ProductGroup string

	Units   float64
	RxCount float64

	UnitPrice         float64
	PreviousUnitPrice *float64

	NewTotalCost    float64
	OldTotalCost    *float64
	TotalDiff       *float64
	UnitPriceChange *float64
	Classification  string
}

// ResultRow is one aggregated output row. Base quantities are group sums;
// every ratio metric is recomputed from those sums. Nil metrics are
// undefined (zero denominator), not zero.
type ResultRow struct {
	GroupKey string

	Units        float64
	RxCount      float64
	NewTotalCost float64
	OldTotalCost float64
	TotalDiff    float64

	TotalDiffAbs   float64
	AvgNewPrice    *float64
	AvgOldPrice    *float64
	AvgUnitChange  *float64
	DiffPerRx      *float64
	DiffPerRxAbs   *float64
	PercentChange  *float64
	Classification string
}
