package model

import "time"

// DateFormat is the wire format for calendar dates.
const DateFormat = "2006-01-02"

// Day returns the canonical representation of a calendar date: midnight UTC.
// Every date stored in a series or index goes through this normalization so
// time.Time equality works as date equality.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf truncates t to its calendar date, normalized to midnight UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Day(y, m, d)
}

// ParseDay parses a YYYY-MM-DD string into a normalized date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, err
	}
	return DayOf(t), nil
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
