// Command query prints an aggregated price-change table for ad-hoc
// inspection of the derived data.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"pricetrends/internal/query"
)

func main() {
	dataDir := flag.String("data", "data", "Directory holding the derived tables")
	referencePath := flag.String("reference", "", "Path to the drug reference CSV")
	monthID := flag.Int("month", 0, "Month id to query (0 = most recent)")
	state := flag.String("state", "", "State code filter (empty = all states)")
	groupBy := flag.String("group", "product_group", "Group by: state, product or product_group")
	products := flag.String("product", "", "Comma-separated product allow-list")
	productGroups := flag.String("product-group", "", "Comma-separated product group allow-list")
	change := flag.String("change", "all", "Change filter: all, Increase or Decrease")
	listMonths := flag.Bool("months", false, "List available months and exit")

	flag.Parse()

	if *referencePath == "" {
		fmt.Println("Usage: query -reference <csv> [options]")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	store, err := query.Open(*dataDir, *referencePath)
	if err != nil {
		log.Fatalf("Failed to open derived tables: %v", err)
	}

	months := store.Months()
	if len(months) == 0 {
		log.Fatal("Date index is empty; run rebuild first")
	}

	if *listMonths {
		for _, m := range months {
			fmt.Printf("%d\t%s\n", m.MonthID, m.MonthKey)
		}
		return
	}

	id := int32(*monthID)
	if id == 0 {
		id = months[len(months)-1].MonthID
	}

	params := query.Params{
		MonthID:       id,
		State:         strings.ToUpper(*state),
		GroupBy:       query.GroupBy(*groupBy),
		Products:      splitList(*products),
		ProductGroups: splitList(*productGroups),
		Change:        query.Change(*change),
	}

	rows, err := store.Query(params)
	if errors.Is(err, query.ErrEmptyResult) {
		log.Printf("No rows match the given filters")
		return
	}
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "group\tunits\trx_count\ttotal_diff\tdiff_per_rx\tavg_new\tavg_old\tpct_change\tclass")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.2f\t%s\t%s\t%s\t%s\t%s\n",
			r.GroupKey, r.Units, r.RxCount, r.TotalDiff,
			fmtPtr(r.DiffPerRx, "%.2f"), fmtPtr(r.AvgNewPrice, "%.4f"),
			fmtPtr(r.AvgOldPrice, "%.4f"), fmtPtr(r.PercentChange, "%.4f"),
			r.Classification)
	}
	w.Flush()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func fmtPtr(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
