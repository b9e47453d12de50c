// Package display turns schedule computations into localized labels.
package display

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ralpholazo24/turi/internal/calendar"
	"github.com/ralpholazo24/turi/internal/chore"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/recurrence"
)

// Info is the rendered schedule of one task.
type Info struct {
	RepeatLabel  string       `json:"repeat_label"`
	DueDateLabel string       `json:"due_date_label"`
	TimeLabel    string       `json:"time_label"`
	IsOverdue    bool         `json:"is_overdue"`
	Status       chore.Status `json:"status"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
}

// FormatScheduleInfo renders the task's recurrence and next due date.
// Overdue tasks are always labelled as due today.
func FormatScheduleInfo(task model.Task, now time.Time, tr Translator) Info {
	status, due := chore.ComputeStatus(task, now)
	hour, minute := task.Schedule.Clock()

	info := Info{
		RepeatLabel: RepeatLabel(task.Schedule, tr),
		TimeLabel:   fmt.Sprintf("%02d:%02d", hour, minute),
		IsOverdue:   status == chore.StatusOverdue,
		Status:      status,
		DueDate:     due,
	}

	switch {
	case info.IsOverdue:
		info.DueDateLabel = tr.Sprintf("Today")
	case due == nil:
		info.DueDateLabel = tr.Sprintf("Not scheduled")
	default:
		info.DueDateLabel = DueDateLabel(*due, now, tr)
	}
	return info
}

// DueDateLabel is "Today" or "Tomorrow" for the next two days, the weekday
// name within a week, and an absolute date beyond that.
func DueDateLabel(due, now time.Time, tr Translator) string {
	switch days := calendar.DaysBetween(now, due); {
	case days == 0:
		return tr.Sprintf("Today")
	case days == 1:
		return tr.Sprintf("Tomorrow")
	case days >= 2 && days <= 7:
		return tr.Title(weekdayName(due.In(now.Location()).Weekday(), tr))
	}
	return DateLabel(due.In(now.Location()), tr)
}

// DateLabel formats t as "Feb 28, 2025" in the translator's language.
func DateLabel(t time.Time, tr Translator) string {
	month := tr.Sprintf(t.Month().String()[:3])
	return tr.Sprintf("%[1]s %[2]s, %[3]s", month, strconv.Itoa(t.Day()), strconv.Itoa(t.Year()))
}

var ordinals = [...]string{"first", "second", "third", "fourth"}

// RepeatLabel describes how often the rule recurs.
func RepeatLabel(r recurrence.Rule, tr Translator) string {
	switch r.Kind {
	case recurrence.Daily:
		return tr.Sprintf("Every day")
	case recurrence.Weekdays:
		return tr.Sprintf("Weekdays")
	case recurrence.Weekends:
		return tr.Sprintf("Weekends")
	case recurrence.Weekly:
		if wd, ok := r.Weekday(); ok {
			return tr.Sprintf("Every %[1]s", weekdayName(wd, tr))
		}
	case recurrence.Biweekly:
		if wd, ok := r.Weekday(); ok {
			return tr.Sprintf("Every other %[1]s", weekdayName(wd, tr))
		}
	case recurrence.Monthly:
		return monthlyLabel(r, tr)
	case recurrence.Every3Months:
		return tr.Sprintf("Every 3 months")
	case recurrence.Every6Months:
		return tr.Sprintf("Every 6 months")
	case recurrence.Yearly:
		return tr.Sprintf("Every year")
	}
	return tr.Sprintf("Not scheduled")
}

func monthlyLabel(r recurrence.Rule, tr Translator) string {
	wd, hasDay := r.Weekday()
	switch r.EffectiveMode() {
	case recurrence.ModeNthWeekday:
		if hasDay && r.Week >= 1 && r.Week <= len(ordinals) {
			return tr.Sprintf("Monthly on the %[1]s %[2]s", tr.Sprintf(ordinals[r.Week-1]), weekdayName(wd, tr))
		}
	case recurrence.ModeLastWeekday:
		if hasDay {
			return tr.Sprintf("Monthly on the last %[1]s", weekdayName(wd, tr))
		}
	case recurrence.ModeDayOfMonth:
		return tr.Sprintf("Monthly on day %[1]d", r.DayOfMonth)
	}
	return tr.Sprintf("Monthly")
}

func weekdayName(wd time.Weekday, tr Translator) string {
	return tr.Sprintf(wd.String())
}
