// Package reference provides the drug reference lookup: NDC to display name
// and product group, plus the eligibility set used to scope the price
// history.
package reference

import (
	"fmt"
	"regexp"
	"sort"

	"pricetrends/internal/ingest"
	"pricetrends/internal/model"
)

// oralSolidPattern matches the dosage forms considered oral solids
// (tablets and capsules in all their spellings).
var oralSolidPattern = regexp.MustCompile(`(?i)tab|cap`)

// Index is a read-only lookup over the drug reference snapshot.
type Index struct {
	byNDC map[string]model.DrugReference
}

// Load builds an Index from a reference CSV snapshot. Later rows win when a
// snapshot repeats an NDC.
func Load(path string) (*Index, error) {
	refs, err := ingest.ReadDrugReference(path)
	if err != nil {
		return nil, fmt.Errorf("load drug reference: %w", err)
	}

	byNDC := make(map[string]model.DrugReference, len(refs))
	for _, r := range refs {
		byNDC[r.NDC] = r
	}
	return &Index{byNDC: byNDC}, nil
}

// Lookup resolves an NDC to its reference row.
func (ix *Index) Lookup(ndc string) (model.DrugReference, bool) {
	r, ok := ix.byNDC[ndc]
	return r, ok
}

// Len returns the number of distinct NDCs in the index.
func (ix *Index) Len() int { return len(ix.byNDC) }

// OralSolidNDCs returns the eligibility set for the price history: rx-only
// NDCs whose dosage form is a tablet or capsule.
func (ix *Index) OralSolidNDCs() map[string]bool {
	eligible := make(map[string]bool)
	for ndc, r := range ix.byNDC {
		if r.IsRx && oralSolidPattern.MatchString(r.DosageForm) {
			eligible[ndc] = true
		}
	}
	return eligible
}

// NDCs returns all indexed NDCs in sorted order.
func (ix *Index) NDCs() []string {
	ndcs := make([]string, 0, len(ix.byNDC))
	for ndc := range ix.byNDC {
		ndcs = append(ndcs, ndc)
	}
	sort.Strings(ndcs)
	return ndcs
}
