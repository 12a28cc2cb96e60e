package models

import "time"

// DateLayout is the ISO 8601 calendar date format used for due dates.
// Dates in this layout compare correctly as strings.
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's location
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay truncates t to midnight in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
