package model

import "time"

// NextWeeklyBoundary returns the start of the next Monday in loc strictly after from.
// A Monday always maps to the following Monday, never to its own midnight.
func NextWeeklyBoundary(from time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := from.In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	days := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return midnight.AddDate(0, 0, days)
}
