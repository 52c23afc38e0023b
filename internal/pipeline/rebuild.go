package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricetrends/internal/ingest"
	"pricetrends/internal/model"
	"pricetrends/internal/reference"
)

const defaultRecentPeriods = 4

// Config names every input and output of a rebuild. Which snapshot files to
// use is the caller's decision; the pipeline only reads what it is given.
type Config struct {
	// PricePaths are the NADAC-style price snapshot CSVs.
	PricePaths []string
	// UtilizationPaths are the SDUD-style utilization snapshot CSVs.
	UtilizationPaths []string
	// ReferencePath is the drug reference snapshot CSV.
	ReferencePath string
	// DataDir is where the derived Parquet tables land.
	DataDir string
	// RecentPeriods bounds the utilization summary to the N most recent
	// reporting periods. Zero means 4.
	RecentPeriods int
}

func (c Config) validate() error {
	if len(c.PricePaths) == 0 {
		return fmt.Errorf("no price snapshot paths configured")
	}
	if len(c.UtilizationPaths) == 0 {
		return fmt.Errorf("no utilization snapshot paths configured")
	}
	if c.ReferencePath == "" {
		return fmt.Errorf("no reference path configured")
	}
	if c.DataDir == "" {
		return fmt.Errorf("no data directory configured")
	}
	return nil
}

// RebuildResult reports what one rebuild run produced.
type RebuildResult struct {
	RunID                  uuid.UUID
	PriceHistoryRows       int
	DateIndexRows          int
	UtilizationSummaryRows int
	Elapsed                time.Duration
}

// Rebuild regenerates all three derived tables from the configured source
// snapshots. It is all-or-nothing: tables are written into a staging
// directory that replaces DataDir only after every table succeeded, so a
// failed run leaves prior outputs untouched. Re-running on identical
// snapshots yields value-identical tables.
func Rebuild(ctx context.Context, cfg Config) (*RebuildResult, error) {
	start := time.Now()
	runID := uuid.New()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	recent := cfg.RecentPeriods
	if recent == 0 {
		recent = defaultRecentPeriods
	}

	log.Printf("rebuild %s: reading source snapshots", runID)

	// The price and utilization sources are independent; read them
	// concurrently.
	var (
		wg      sync.WaitGroup
		refIdx  *reference.Index
		prices  []model.PriceObservation
		util    []model.UtilizationObservation
		refErr  error
		utilErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		refIdx, refErr = reference.Load(cfg.ReferencePath)
		if refErr != nil {
			return
		}
		for _, path := range cfg.PricePaths {
			obs, err := ingest.ReadPriceObservations(path)
			if err != nil {
				refErr = err
				return
			}
			prices = append(prices, obs...)
		}
	}()
	go func() {
		defer wg.Done()
		for _, path := range cfg.UtilizationPaths {
			obs, err := ingest.ReadUtilizationObservations(path)
			if err != nil {
				utilErr = err
				return
			}
			util = append(util, obs...)
		}
	}()
	wg.Wait()

	if refErr != nil {
		return nil, fmt.Errorf("read price sources: %w", refErr)
	}
	if utilErr != nil {
		return nil, fmt.Errorf("read utilization sources: %w", utilErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	history := BuildPriceHistory(prices, refIdx.OralSolidNDCs())
	index := BuildDateIndex(history)
	AssignMonthIDs(history, index)
	summary := BuildUtilizationSummary(util, PricedNDCs(history), recent)

	log.Printf("rebuild %s: %d history rows, %d months, %d utilization rows",
		runID, len(history), len(index), len(summary))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DataDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data parent dir: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(cfg.DataDir), ".rebuild-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := WriteTable(filepath.Join(staging, PriceHistoryFile), history); err != nil {
		return nil, err
	}
	if err := WriteTable(filepath.Join(staging, DateIndexFile), index); err != nil {
		return nil, err
	}
	if err := WriteTable(filepath.Join(staging, UtilizationSummaryFile), summary); err != nil {
		return nil, err
	}

	if err := swapDir(staging, cfg.DataDir); err != nil {
		return nil, err
	}

	result := &RebuildResult{
		RunID:                  runID,
		PriceHistoryRows:       len(history),
		DateIndexRows:          len(index),
		UtilizationSummaryRows: len(summary),
		Elapsed:                time.Since(start),
	}
	log.Printf("rebuild %s: done in %s", runID, result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// swapDir replaces dst with src, restoring dst if the swap fails midway.
func swapDir(src, dst string) error {
	old := dst + ".old"
	hadPrev := false
	if _, err := os.Stat(dst); err == nil {
		hadPrev = true
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("stash previous tables: %w", err)
		}
	}
	if err := os.Rename(src, dst); err != nil {
		if hadPrev {
			os.Rename(old, dst)
		}
		return fmt.Errorf("publish tables: %w", err)
	}
	if hadPrev {
		os.RemoveAll(old)
	}
	return nil
}
