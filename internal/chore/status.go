package chore

import (
	"log/slog"
	"time"

	"github.com/ralpholazo24/turi/internal/calendar"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/recurrence"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusCompleted   Status = "completed"
	StatusOverdue     Status = "overdue"
	StatusUnscheduled Status = "unscheduled"
)

// LastCompletion returns the most recent completion time in the task's
// history, or nil if it was never completed.
func LastCompletion(task model.Task) *time.Time {
	var last *time.Time
	for i := range task.CompletionHistory {
		at := task.CompletionHistory[i].CompletedAt
		if last == nil || at.After(*last) {
			last = &at
		}
	}
	return last
}

// SamePeriod reports whether a and b fall in the same completion period for
// the kind: the same day for daily, the same ISO week for the weekday-based
// kinds, the same month for monthly and multi-month kinds, the same year for
// yearly.
func SamePeriod(kind recurrence.Kind, a, b time.Time) bool {
	switch kind {
	case recurrence.Daily:
		return calendar.SameDay(a, b)
	case recurrence.Weekdays, recurrence.Weekends, recurrence.Weekly, recurrence.Biweekly:
		return calendar.SameISOWeek(a, b)
	case recurrence.Monthly, recurrence.Every3Months, recurrence.Every6Months:
		return calendar.SameMonth(a, b)
	case recurrence.Yearly:
		return calendar.SameYear(a, b)
	}
	return false
}

// IsCompletedForCurrentPeriod reports whether the last completion falls in
// the same period as now.
func IsCompletedForCurrentPeriod(task model.Task, now time.Time) bool {
	last := LastCompletion(task)
	if last == nil {
		return false
	}
	return SamePeriod(task.Schedule.Kind, now, *last)
}

// IsOverdue reports whether a due occurrence has passed since the task was
// last completed. The missed occurrence is the latest one at or before now;
// a completion earlier in that occurrence's period still covers it. Tasks
// that were never completed are not overdue.
func IsOverdue(task model.Task, now time.Time) bool {
	last := LastCompletion(task)
	if last == nil {
		return false
	}
	if SamePeriod(task.Schedule.Kind, now, *last) {
		return false
	}
	prev := recurrence.PreviousDue(task.Schedule, now)
	if prev == nil {
		return false
	}
	return last.Before(*prev) && !SamePeriod(task.Schedule.Kind, *prev, *last)
}

// ComputeStatus determines the status and next due date of a task.
func ComputeStatus(task model.Task, now time.Time) (Status, *time.Time) {
	if err := task.Schedule.Validate(); err != nil {
		slog.Error("invalid recurrence rule", "task_id", task.ID, "rule", task.Schedule.String(), "error", err)
		return StatusUnscheduled, nil
	}

	due := recurrence.NextDue(task.Schedule, now)
	if due == nil {
		return StatusUnscheduled, nil
	}

	switch {
	case IsCompletedForCurrentPeriod(task, now):
		return StatusCompleted, due
	case IsOverdue(task, now):
		return StatusOverdue, due
	}
	return StatusPending, due
}
