package query

import (
	"errors"
	"fmt"
	"sort"

	"pricetrends/internal/model"
)

// GroupBy selects the aggregation dimension of a query.
type GroupBy string

const (
	GroupByState        GroupBy = "state"
	GroupByProduct      GroupBy = "product"
	GroupByProductGroup GroupBy = "product_group"
)

// Change filters rows by their price-change classification before grouping.
type Change string

const (
	ChangeAll      Change = "all"
	ChangeIncrease Change = Increase
	ChangeDecrease Change = Decrease
)

var (
	// ErrUnknownMonth is returned when the requested month_id is not in the
	// date index.
	ErrUnknownMonth = errors.New("unknown month id")
	// ErrUnknownState is returned for a malformed state code.
	ErrUnknownState = errors.New("malformed state code")
	// ErrEmptyResult signals that valid filters matched zero rows. It is an
	// explicit signal, not a failure.
	ErrEmptyResult = errors.New("no rows match the given filters")
)

// Params are the filters and grouping of one query.
type Params struct {
	// MonthID selects the price-history month. Required.
	MonthID int32
	// State restricts to one state code; empty means all states.
	State string
	// GroupBy is the aggregation dimension. Required for Query.
	GroupBy GroupBy
	// Products and ProductGroups are allow-lists; empty means no filter.
	Products      []string
	ProductGroups []string
	// Change keeps only rows with the given classification. Empty or
	// ChangeAll keeps everything.
	Change Change
}

func (s *Store) validate(p Params) error {
	if _, ok := s.monthByID[p.MonthID]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMonth, p.MonthID)
	}
	if p.State != "" && !validState(p.State) {
		return fmt.Errorf("%w: %q", ErrUnknownState, p.State)
	}
	switch p.Change {
	case "", ChangeAll, ChangeIncrease, ChangeDecrease:
	default:
		return fmt.Errorf("invalid change filter %q", p.Change)
	}
	return nil
}

// validState accepts two-letter uppercase codes. "XX" (national aggregate)
// is a legitimate code in the utilization data.
func validState(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// Query joins, filters, groups and annotates. Rows are joined for the
// requested month, row-level metrics materialize total_diff for the change
// filter, then base quantities are summed per group and every ratio metric
// is recomputed from the sums. Each group present in the join appears
// exactly once; groups with no rows do not appear. A valid query matching
// nothing returns ErrEmptyResult.
func (s *Store) Query(p Params) ([]model.ResultRow, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}
	groupKey, err := groupKeyFunc(p.GroupBy)
	if err != nil {
		return nil, err
	}

	joined := s.join(p)

	groups := make(map[string]*model.ResultRow)
	for i := range joined {
		row := &joined[i]
		applyRowMetrics(row)
		if p.Change != "" && p.Change != ChangeAll && row.Classification != string(p.Change) {
			continue
		}

		key := groupKey(row)
		agg, ok := groups[key]
		if !ok {
			agg = &model.ResultRow{GroupKey: key}
			groups[key] = agg
		}
		agg.Units += row.Units
		agg.RxCount += row.RxCount
		agg.NewTotalCost += row.NewTotalCost
		// Nil change columns (no previous price) contribute nothing to the
		// change sums, matching the null-skipping sum of the build side.
		if row.OldTotalCost != nil {
			agg.OldTotalCost += *row.OldTotalCost
		}
		if row.TotalDiff != nil {
			agg.TotalDiff += *row.TotalDiff
		}
	}

	if len(groups) == 0 {
		return nil, ErrEmptyResult
	}

	results := make([]model.ResultRow, 0, len(groups))
	for _, agg := range groups {
		deriveMetrics(agg)
		results = append(results, *agg)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].GroupKey < results[j].GroupKey })
	return results, nil
}

// DistinctValues returns the sorted distinct values of field visible under
// the current filters. The field's own allow-list is ignored so a dependent
// dropdown lists its full choices within the other filters' context.
func (s *Store) DistinctValues(field GroupBy, p Params) ([]string, error) {
	if field != GroupByProduct && field != GroupByProductGroup {
		return nil, fmt.Errorf("invalid distinct-values field %q", field)
	}
	if err := s.validate(p); err != nil {
		return nil, err
	}

	switch field {
	case GroupByProduct:
		p.Products = nil
	case GroupByProductGroup:
		p.ProductGroups = nil
	}

	seen := make(map[string]bool)
	var values []string
	for _, row := range s.join(p) {
		v := row.Product
		if field == GroupByProductGroup {
			v = row.ProductGroup
		}
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values, nil
}

func groupKeyFunc(g GroupBy) (func(*model.JoinedRow) string, error) {
	switch g {
	case GroupByState:
		return func(r *model.JoinedRow) string { return r.State }, nil
	case GroupByProduct:
		return func(r *model.JoinedRow) string { return r.Product }, nil
	case GroupByProductGroup:
		return func(r *model.JoinedRow) string { return r.ProductGroup }, nil
	default:
		return nil, fmt.Errorf("invalid group_by %q", g)
	}
}
