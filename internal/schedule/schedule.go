// Package schedule generates the execution dates of a monthly contribution
// plan: one theoretical date per calendar month on the anchor day, each
// shifted forward to the next trading day.
package schedule

import (
	"time"

	"github.com/aporte/returns-engine/internal/calendar"
	"github.com/aporte/returns-engine/internal/model"
)

// Generate produces the ordered, de-duplicated contribution dates for a
// plan anchored on anchorDay (the day-of-month of the original, pre-
// resolution start date).
//
// Starting in the calendar month of start, the theoretical date of each
// month is min(anchorDay, daysInMonth) — day 31 in a 30-day month clamps to
// day 30, it never rolls into the next month. Generation stops at the first
// theoretical date >= endExclusive, which is what makes a 12-month window
// yield exactly 12 contributions.
//
// Each theoretical date resolves to the next trading day at or after it.
// A theoretical date with no trading day left, or whose resolved day lands
// at or past endExclusive, is dropped — excluded, not an error.
func Generate(start, endExclusive time.Time, anchorDay int, cal *calendar.Resolver) []time.Time {
	var out []time.Time

	year, month := start.Year(), start.Month()
	for {
		day := anchorDay
		if max := model.DaysInMonth(year, month); day > max {
			day = max
		}
		theoretical := model.Day(year, month, day)
		if !theoretical.Before(endExclusive) {
			break
		}

		if resolved, ok := cal.NextAtOrAfter(theoretical); ok && resolved.Before(endExclusive) {
			if n := len(out); n == 0 || !out[n-1].Equal(resolved) {
				out = append(out, resolved)
			}
		}

		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return out
}
