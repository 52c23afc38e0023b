// Command rebuild regenerates the derived price-change tables from raw
// source snapshots.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"pricetrends/internal/pipeline"
)

// pathList collects a repeatable -flag value.
type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(value string) error {
	*p = append(*p, value)
	return nil
}

func main() {
	var pricePaths, utilPaths pathList
	flag.Var(&pricePaths, "price", "Path to a price snapshot CSV (repeatable)")
	flag.Var(&utilPaths, "utilization", "Path to a utilization snapshot CSV (repeatable)")
	referencePath := flag.String("reference", "", "Path to the drug reference CSV")
	dataDir := flag.String("out", "data", "Output directory for the derived tables")
	recentPeriods := flag.Int("periods", 4, "Number of most recent reporting periods to summarize")

	flag.Parse()

	if len(pricePaths) == 0 || len(utilPaths) == 0 || *referencePath == "" {
		fmt.Println("Usage: rebuild -price <csv> -utilization <csv> -reference <csv> [options]")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := pipeline.Config{
		PricePaths:       pricePaths,
		UtilizationPaths: utilPaths,
		ReferencePath:    *referencePath,
		DataDir:          *dataDir,
		RecentPeriods:    *recentPeriods,
	}

	result, err := pipeline.Rebuild(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Rebuild failed: %v", err)
	}

	log.Printf("Rebuild %s complete: %d price history rows, %d months, %d utilization rows (%s)",
		result.RunID, result.PriceHistoryRows, result.DateIndexRows,
		result.UtilizationSummaryRows, result.Elapsed)
}
