// Package calendar holds the date primitives the scheduling code is built on.
// Every function is pure and works in the location of its first time argument.
package calendar

import (
	"regexp"
	"strconv"
	"time"
)

var timeStringRegexp = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// At returns day's calendar date at hour:minute in day's location.
func At(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns the number of calendar days from a to b, ignoring
// time of day. b is interpreted in a's location. The result is negative when
// b falls on an earlier day.
func DaysBetween(a, b time.Time) int {
	b = b.In(a.Location())
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// ISOWeekNumber returns the ISO-8601 week number (1-53) of t.
func ISOWeekNumber(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// ISOWeekYear returns the ISO-8601 week-numbering year of t, which differs
// from the calendar year for a few days around New Year.
func ISOWeekYear(t time.Time) int {
	year, _ := t.ISOWeek()
	return year
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// SameISOWeek reports whether a and b fall in the same ISO week (Monday start).
func SameISOWeek(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// SameYear reports whether a and b fall in the same calendar year.
func SameYear(a, b time.Time) bool {
	return a.Year() == b.In(a.Location()).Year()
}

// WeekStart returns midnight of the Monday that starts t's ISO week.
func WeekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7 // Sunday
	}
	monday := t.AddDate(0, 0, -offset)
	return StartOfDay(monday)
}

// NthWeekdayOfMonth returns midnight of the n-th occurrence of weekday in the
// month. When the month has fewer than n occurrences the last occurrence is
// returned; the result never spills into the following month. n below 1 is
// treated as 1.
func NthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, n int, loc *time.Location) time.Time {
	if n < 1 {
		n = 1
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + (n-1)*7
	if day > DaysInMonth(year, month) {
		return LastWeekdayOfMonth(year, month, weekday, loc)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// LastWeekdayOfMonth returns midnight of the last occurrence of weekday in the
// month, found by stepping back from the month's final day.
func LastWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, loc *time.Location) time.Time {
	last := time.Date(year, month, DaysInMonth(year, month), 0, 0, 0, 0, loc)
	back := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -back)
}

// ClampDay returns day limited to the length of the month.
func ClampDay(year int, month time.Month, day int) int {
	if day < 1 {
		return 1
	}
	if n := DaysInMonth(year, month); day > n {
		return n
	}
	return day
}

// ParseTimeString parses a strict 24-hour "HH:MM" string. ok is false for
// anything else, including single-digit hours and out-of-range values.
func ParseTimeString(s string) (hour, minute int, ok bool) {
	m := timeStringRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, true
}
