package models

import "time"

// DayLayout is the format of a day partition, e.g. "2024-03-18".
const DayLayout = "2006-01-02"

// DayOf returns the day partition of t in t's location.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}

// CutoffDay returns the oldest day still inside a window of daysToKeep days
// ending at now. Records with a day before it are expired.
func CutoffDay(now time.Time, daysToKeep int) string {
	return DayOf(now.AddDate(0, 0, -daysToKeep))
}

// IsWeekStart reports whether t falls on the first day of a calendar week (Monday).
func IsWeekStart(t time.Time) bool {
	return t.Weekday() == time.Monday
}
