// Package calendar resolves arbitrary calendar dates to the nearest trading
// day present in a series. Lookups are binary searches over the ordered
// trading-date set: a contribution schedule resolves hundreds of dates, so
// per-call scans are off the table.
package calendar

import (
	"sort"
	"time"
)

// Resolver answers nearest-trading-day queries over one ordered date set.
type Resolver struct {
	days []time.Time
}

// NewResolver builds a resolver over the given trading dates. The slice is
// copied and sorted; the caller's backing array is never retained.
func NewResolver(days []time.Time) *Resolver {
	owned := make([]time.Time, len(days))
	copy(owned, days)
	sort.Slice(owned, func(i, j int) bool { return owned[i].Before(owned[j]) })
	return &Resolver{days: owned}
}

// Len returns the number of trading days known to the resolver.
func (r *Resolver) Len() int { return len(r.days) }

// LastAtOrBefore returns the greatest trading date <= d, or false when d
// precedes the first trading date.
func (r *Resolver) LastAtOrBefore(d time.Time) (time.Time, bool) {
	i := sort.Search(len(r.days), func(i int) bool {
		return r.days[i].After(d)
	})
	if i == 0 {
		return time.Time{}, false
	}
	return r.days[i-1], true
}

// NextAtOrAfter returns the least trading date >= d, or false when d
// follows the last trading date.
func (r *Resolver) NextAtOrAfter(d time.Time) (time.Time, bool) {
	i := sort.Search(len(r.days), func(i int) bool {
		return !r.days[i].Before(d)
	})
	if i == len(r.days) {
		return time.Time{}, false
	}
	return r.days[i], true
}
