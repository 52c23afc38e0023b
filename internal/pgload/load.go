// Package pgload copies the derived Parquet tables into PostgreSQL so SQL
// consumers can query the same data the in-process query layer serves.
package pgload

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricetrends/internal/model"
	"pricetrends/internal/pipeline"
)

//go:embed schema.sql
var schema string

// parseDate converts the ISO date strings of the Parquet tables into
// time.Time for binary COPY encoding.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// Stats reports what one load wrote.
type Stats struct {
	BatchID                uuid.UUID
	PriceHistoryRows       int64
	DateIndexRows          int64
	UtilizationSummaryRows int64
	Elapsed                time.Duration
}

// InitSchema creates the tables if they do not exist.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Load replaces the Postgres copies of the three derived tables with the
// contents of dataDir, in one transaction. Either all tables are swapped or
// none are.
func Load(ctx context.Context, pool *pgxpool.Pool, dataDir string) (*Stats, error) {
	start := time.Now()

	dateIndex, err := pipeline.ReadTable[model.DateIndexRow](filepath.Join(dataDir, pipeline.DateIndexFile))
	if err != nil {
		return nil, err
	}
	history, err := pipeline.ReadTable[model.PriceHistoryRow](filepath.Join(dataDir, pipeline.PriceHistoryFile))
	if err != nil {
		return nil, err
	}
	summary, err := pipeline.ReadTable[model.UtilizationSummaryRow](filepath.Join(dataDir, pipeline.UtilizationSummaryFile))
	if err != nil {
		return nil, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Order matters: price_history references date_index.
	if _, err := tx.Exec(ctx,
		`TRUNCATE price_history, date_index, utilization_summary`); err != nil {
		return nil, fmt.Errorf("truncate: %w", err)
	}

	stats := &Stats{BatchID: uuid.New()}

	stats.DateIndexRows, err = tx.CopyFrom(ctx,
		pgx.Identifier{"date_index"},
		[]string{"month_start_date", "month_key", "month_id"},
		pgx.CopyFromSlice(len(dateIndex), func(i int) ([]any, error) {
			d := dateIndex[i]
			monthStart, err := parseDate(d.MonthStart)
			if err != nil {
				return nil, fmt.Errorf("date_index month %d: %w", d.MonthID, err)
			}
			return []any{monthStart, d.MonthKey, d.MonthID}, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("copy date_index: %w", err)
	}

	stats.PriceHistoryRows, err = tx.CopyFrom(ctx,
		pgx.Identifier{"price_history"},
		[]string{"ndc", "month_id", "effective_date", "unit_price", "previous_unit_price"},
		pgx.CopyFromSlice(len(history), func(i int) ([]any, error) {
			h := history[i]
			effective, err := parseDate(h.EffectiveDate)
			if err != nil {
				return nil, fmt.Errorf("price_history %s: %w", h.NDC, err)
			}
			return []any{h.NDC, h.MonthID, effective, h.UnitPrice, h.PreviousUnitPrice}, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("copy price_history: %w", err)
	}

	stats.UtilizationSummaryRows, err = tx.CopyFrom(ctx,
		pgx.Identifier{"utilization_summary"},
		[]string{"state", "ndc", "units", "rx_count"},
		pgx.CopyFromSlice(len(summary), func(i int) ([]any, error) {
			u := summary[i]
			return []any{u.State, u.NDC, u.Units, u.RxCount}, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("copy utilization_summary: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO load_batches (batch_id, price_history_rows, date_index_rows, utilization_summary_rows)
		 VALUES ($1, $2, $3, $4)`,
		stats.BatchID, stats.PriceHistoryRows, stats.DateIndexRows, stats.UtilizationSummaryRows); err != nil {
		return nil, fmt.Errorf("record load batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	stats.Elapsed = time.Since(start)
	log.Printf("load %s: %d history, %d months, %d utilization rows in %s",
		stats.BatchID, stats.PriceHistoryRows, stats.DateIndexRows,
		stats.UtilizationSummaryRows, stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}
