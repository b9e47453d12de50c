package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// LegacySchedule is the older flat task schedule: a frequency name plus
// optional week-of-month, weekday and time fields.
type LegacySchedule struct {
	Frequency    string     `json:"frequency"`
	ScheduleWeek *int       `json:"scheduleWeek,omitempty"`
	ScheduleDay  *int       `json:"scheduleDay,omitempty"`
	ScheduleTime string     `json:"scheduleTime,omitempty"`
	StartDate    *time.Time `json:"startDate,omitempty"`
}

var legacyKinds = map[string]Kind{
	"daily":        Daily,
	"weekdays":     Weekdays,
	"weekends":     Weekends,
	"weekly":       Weekly,
	"biweekly":     Biweekly,
	"monthly":      Monthly,
	"every3months": Every3Months,
	"quarterly":    Every3Months,
	"every6months": Every6Months,
	"semiannual":   Every6Months,
	"yearly":       Yearly,
	"annually":     Yearly,
}

// LookupKind resolves a frequency name, including the older aliases, to a
// Kind. Matching ignores case and surrounding space.
func LookupKind(name string) (Kind, bool) {
	k, ok := legacyKinds[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// FromLegacy converts the flat representation into a Rule. A monthly week of
// 5 or -1 means the last such weekday; a monthly weekday without a week is
// read as the first such weekday. The result is validated.
func FromLegacy(l LegacySchedule) (Rule, error) {
	kind, ok := LookupKind(l.Frequency)
	if !ok {
		return Rule{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, l.Frequency)
	}

	r := Rule{Kind: kind, Time: l.ScheduleTime, StartDate: l.StartDate}

	if l.ScheduleDay != nil {
		if *l.ScheduleDay < 0 || *l.ScheduleDay > 6 {
			return Rule{}, fmt.Errorf("%w: scheduleDay %d out of range", ErrInvalidRule, *l.ScheduleDay)
		}
		r.DayOfWeek = WeekdayPtr(time.Weekday(*l.ScheduleDay))
	}

	// A week without a weekday is left for Validate to reject.
	if kind.MonthBased() && (r.DayOfWeek != nil || l.ScheduleWeek != nil) {
		week := 1
		if l.ScheduleWeek != nil {
			week = *l.ScheduleWeek
		}
		switch week {
		case -1, 5:
			r.Mode = ModeLastWeekday
		default:
			r.Mode = ModeNthWeekday
			r.Week = week
		}
	}

	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}
