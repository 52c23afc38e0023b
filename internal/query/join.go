package query

import "pricetrends/internal/model"

// join inner-joins the utilization summary with the queried month's price
// history (on ndc) and the drug reference (on ndc), then applies the state
// and allow-list filters. Any NDC missing from one side is excluded: a
// utilization row with no priced counterpart, or a priced drug missing from
// the reference, is not meaningful for a price-change analysis.
func (s *Store) join(p Params) []model.JoinedRow {
	byNDC := s.historyByMonth[p.MonthID]
	if len(byNDC) == 0 {
		return nil
	}

	products := toSet(p.Products)
	groups := toSet(p.ProductGroups)

	var rows []model.JoinedRow
	for _, u := range s.util {
		if p.State != "" && u.State != p.State {
			continue
		}
		h, ok := byNDC[u.NDC]
		if !ok {
			continue
		}
		ref, ok := s.ref.Lookup(u.NDC)
		if !ok {
			continue
		}
		if products != nil && !products[ref.ProductName] {
			continue
		}
		if groups != nil && !groups[ref.ProductGroup] {
			continue
		}
		rows = append(rows, model.JoinedRow{
			State:             u.State,
			NDC:               u.NDC,
			Product:           ref.ProductName,
			ProductGroup:      ref.ProductGroup,
			Units:             u.Units,
			RxCount:           u.RxCount,
			UnitPrice:         h.UnitPrice,
			PreviousUnitPrice: h.PreviousUnitPrice,
		})
	}
	return rows
}

// toSet returns nil for an empty list: no allow-list means no filter.
func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
