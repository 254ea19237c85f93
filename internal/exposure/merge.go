package exposure

import (
	"iter"
	"slices"

	"exposurewatch/internal/domain"
)

// Merge combines breaches and scan records into one slice ordered by
// descending discovery time. Equal timestamps keep input order, breaches
// before records.
func Merge(breaches []domain.BreachRecord, records []domain.ScanRecord) []Exposure {
	out := make([]Exposure, 0, len(breaches)+len(records))
	for _, b := range breaches {
		out = append(out, FromBreach(b))
	}
	for _, r := range records {
		out = append(out, FromScanRecord(r))
	}
	slices.SortStableFunc(out, func(a, b Exposure) int {
		return b.Timestamp().Compare(a.Timestamp())
	})
	return out
}

// Sequence yields the merged exposures lazily. Each range over the returned
// sequence regenerates the same order from the same inputs.
func Sequence(breaches []domain.BreachRecord, records []domain.ScanRecord) iter.Seq[Exposure] {
	return func(yield func(Exposure) bool) {
		for _, e := range Merge(breaches, records) {
			if !yield(e) {
				return
			}
		}
	}
}
