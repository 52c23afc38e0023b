// Package query is the read side of the pipeline: it loads the persisted
// derived tables and answers aggregation queries over them. A Store is
// immutable after Open, so queries are safe to run concurrently.
package query

import (
	"fmt"
	"path/filepath"
	"sort"

	"pricetrends/internal/model"
	"pricetrends/internal/pipeline"
	"pricetrends/internal/reference"
)

// Store holds the three persisted tables and the drug reference index,
// indexed for join work.
type Store struct {
	months    []model.DateIndexRow
	monthByID map[int32]model.DateIndexRow

	// historyByMonth[monthID][ndc] — unique per (ndc, month) invariant.
	historyByMonth map[int32]map[string]model.PriceHistoryRow

	util []model.UtilizationSummaryRow

	ref *reference.Index
}

// Open loads the persisted tables from dataDir and the drug reference from
// referencePath.
func Open(dataDir, referencePath string) (*Store, error) {
	months, err := pipeline.ReadTable[model.DateIndexRow](filepath.Join(dataDir, pipeline.DateIndexFile))
	if err != nil {
		return nil, fmt.Errorf("load date index: %w", err)
	}
	history, err := pipeline.ReadTable[model.PriceHistoryRow](filepath.Join(dataDir, pipeline.PriceHistoryFile))
	if err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}
	util, err := pipeline.ReadTable[model.UtilizationSummaryRow](filepath.Join(dataDir, pipeline.UtilizationSummaryFile))
	if err != nil {
		return nil, fmt.Errorf("load utilization summary: %w", err)
	}
	ref, err := reference.Load(referencePath)
	if err != nil {
		return nil, err
	}

	sort.Slice(months, func(i, j int) bool { return months[i].MonthID < months[j].MonthID })

	monthByID := make(map[int32]model.DateIndexRow, len(months))
	for _, m := range months {
		monthByID[m.MonthID] = m
	}

	historyByMonth := make(map[int32]map[string]model.PriceHistoryRow)
	for _, h := range history {
		byNDC, ok := historyByMonth[h.MonthID]
		if !ok {
			byNDC = make(map[string]model.PriceHistoryRow)
			historyByMonth[h.MonthID] = byNDC
		}
		byNDC[h.NDC] = h
	}

	return &Store{
		months:         months,
		monthByID:      monthByID,
		historyByMonth: historyByMonth,
		util:           util,
		ref:            ref,
	}, nil
}

// Months returns the date index ascending by month_id, for callers that
// populate a time-period selector.
func (s *Store) Months() []model.DateIndexRow {
	out := make([]model.DateIndexRow, len(s.months))
	copy(out, s.months)
	return out
}

// States returns the distinct state codes present in the utilization
// summary, sorted.
func (s *Store) States() []string {
	seen := make(map[string]bool)
	var states []string
	for _, u := range s.util {
		if !seen[u.State] {
			seen[u.State] = true
			states = append(states, u.State)
		}
	}
	sort.Strings(states)
	return states
}
