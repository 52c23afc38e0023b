package pipeline

import (
	"sort"

	"pricetrends/internal/model"
)

// BuildDateIndex assigns a dense month_id (1..N, chronological) to every
// distinct month present in the deduplicated price history. Re-running on
// identical input yields the identical mapping.
func BuildDateIndex(history []model.PriceHistoryRow) []model.DateIndexRow {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range history {
		key := monthKey(r.EffectiveDate)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	index := make([]model.DateIndexRow, 0, len(keys))
	for i, key := range keys {
		index = append(index, model.DateIndexRow{
			MonthStart: key + "-01",
			MonthKey:   key,
			MonthID:    int32(i + 1),
		})
	}
	return index
}
