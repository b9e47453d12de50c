package recurrence

import (
	"time"

	"github.com/ralpholazo24/turi/internal/calendar"
)

// NextDue returns the first due date/time strictly after now, in now's
// location. It returns nil when the rule cannot be scheduled.
//
// For a fixed rule the answer never moves backward as now increases: every
// kind picks the earliest member of a fixed candidate set that is after now.
// Biweekly shares the weekly search; the two only differ in how overdue is
// judged.
func NextDue(r Rule, now time.Time) *time.Time {
	if r.Validate() != nil {
		return nil
	}

	from := now
	if start, ok := r.startDay(now.Location()); ok && start.After(now) {
		from = start.Add(-time.Nanosecond)
	}

	var (
		due time.Time
		ok  bool
	)
	if r.Kind.MonthBased() {
		due, ok = r.nextInMonths(from)
	} else {
		due, ok = r.nextInWeek(from)
	}
	if !ok {
		return nil
	}
	return &due
}

// PreviousDue returns the latest due date/time at or before now, or nil when
// there is none (malformed rule, or now precedes the start date).
func PreviousDue(r Rule, now time.Time) *time.Time {
	if r.Validate() != nil {
		return nil
	}

	var (
		due time.Time
		ok  bool
	)
	if r.Kind.MonthBased() {
		due, ok = r.prevInMonths(now)
	} else {
		due, ok = r.prevInWeek(now)
	}
	if !ok {
		return nil
	}
	if start, has := r.startDay(now.Location()); has && due.Before(start) {
		return nil
	}
	return &due
}

// Upcoming returns up to n consecutive due dates after now.
func Upcoming(r Rule, now time.Time, n int) []time.Time {
	var out []time.Time
	at := now
	for len(out) < n {
		next := NextDue(r, at)
		if next == nil {
			break
		}
		out = append(out, *next)
		at = *next
	}
	return out
}

// Clock returns the rule's time of day, falling back to 09:00 when Time is
// empty or malformed.
func (r Rule) Clock() (hour, minute int) {
	if h, m, ok := calendar.ParseTimeString(r.Time); ok {
		return h, m
	}
	return DefaultHour, DefaultMinute
}

// startDay treats StartDate as a calendar date in loc.
func (r Rule) startDay(loc *time.Location) (time.Time, bool) {
	if r.StartDate == nil || r.StartDate.IsZero() {
		return time.Time{}, false
	}
	s := *r.StartDate
	return time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc), true
}

func (r Rule) onWeekday(wd time.Weekday) bool {
	switch r.Kind {
	case Daily:
		return true
	case Weekdays:
		return wd >= time.Monday && wd <= time.Friday
	case Weekends:
		return wd == time.Saturday || wd == time.Sunday
	case Weekly, Biweekly:
		target, ok := r.Weekday()
		return ok && wd == target
	}
	return false
}

// nextInWeek scans today plus the following seven days, which always holds
// at least one candidate for every weekday-based kind.
func (r Rule) nextInWeek(from time.Time) (time.Time, bool) {
	hour, minute := r.Clock()
	today := calendar.StartOfDay(from)
	for i := 0; i <= 7; i++ {
		day := today.AddDate(0, 0, i)
		if !r.onWeekday(day.Weekday()) {
			continue
		}
		if c := calendar.At(day, hour, minute); c.After(from) {
			return c, true
		}
	}
	return time.Time{}, false
}

func (r Rule) prevInWeek(now time.Time) (time.Time, bool) {
	hour, minute := r.Clock()
	today := calendar.StartOfDay(now)
	for i := 0; i <= 7; i++ {
		day := today.AddDate(0, 0, -i)
		if !r.onWeekday(day.Weekday()) {
			continue
		}
		if c := calendar.At(day, hour, minute); !c.After(now) {
			return c, true
		}
	}
	return time.Time{}, false
}

func monthIndex(year int, month time.Month) int {
	return year*12 + int(month) - 1
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// inCycle reports whether the month index is one the rule recurs in. Cycles
// are anchored on StartDate's month, or on January when there is none.
func (r Rule) inCycle(idx int, loc *time.Location) bool {
	period := r.Kind.periodMonths()
	if period == 1 {
		return true
	}
	anchor := 0
	if start, ok := r.startDay(loc); ok {
		anchor = monthIndex(start.Year(), start.Month())
	}
	return floorMod(idx-anchor, period) == 0
}

// placeInMonth returns the due date/time within the month at idx.
func (r Rule) placeInMonth(idx int, loc *time.Location) time.Time {
	year := idx / 12
	month := time.Month(idx%12 + 1)

	var day time.Time
	switch r.EffectiveMode() {
	case ModeNthWeekday:
		day = calendar.NthWeekdayOfMonth(year, month, *r.DayOfWeek, r.Week, loc)
	case ModeLastWeekday:
		day = calendar.LastWeekdayOfMonth(year, month, *r.DayOfWeek, loc)
	case ModeDayOfMonth:
		day = time.Date(year, month, calendar.ClampDay(year, month, r.DayOfMonth), 0, 0, 0, 0, loc)
	default:
		want := 1
		if start, ok := r.startDay(loc); ok {
			want = start.Day()
		}
		day = time.Date(year, month, calendar.ClampDay(year, month, want), 0, 0, 0, 0, loc)
	}

	hour, minute := r.Clock()
	return calendar.At(day, hour, minute)
}

// nextInMonths tries the current month, then each following month in the
// rule's cycle. Two full periods always contain a candidate after from.
func (r Rule) nextInMonths(from time.Time) (time.Time, bool) {
	loc := from.Location()
	base := monthIndex(from.Year(), from.Month())
	limit := 2 * r.Kind.periodMonths()
	for i := 0; i <= limit; i++ {
		idx := base + i
		if !r.inCycle(idx, loc) {
			continue
		}
		if c := r.placeInMonth(idx, loc); c.After(from) {
			return c, true
		}
	}
	return time.Time{}, false
}

func (r Rule) prevInMonths(now time.Time) (time.Time, bool) {
	loc := now.Location()
	base := monthIndex(now.Year(), now.Month())
	limit := 2 * r.Kind.periodMonths()
	for i := 0; i <= limit; i++ {
		idx := base - i
		if !r.inCycle(idx, loc) {
			continue
		}
		if c := r.placeInMonth(idx, loc); !c.After(now) {
			return c, true
		}
	}
	return time.Time{}, false
}
