// Package reminder derives when a task's reminder should fire and keeps a
// notifier's schedule in step with the tasks of a group.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ralpholazo24/turi/internal/chore"
	"github.com/ralpholazo24/turi/internal/display"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/recurrence"
	"github.com/ralpholazo24/turi/internal/rotation"
)

// DefaultLeadMinutes is used when a group has no reminder setting.
const DefaultLeadMinutes = 30

// Notification is a reminder ready to be handed to a Notifier.
type Notification struct {
	TaskID  string    `json:"task_id"`
	GroupID string    `json:"group_id"`
	FireAt  time.Time `json:"fire_at"`
	DueAt   time.Time `json:"due_at"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
}

// Notifier schedules and cancels reminders. Delivery is its business.
type Notifier interface {
	Cancel(ctx context.Context, taskID string) error
	Schedule(ctx context.Context, n Notification) error
}

// plan returns the next due date and the fire time leadMinutes before it.
// Both are nil when no reminder should be scheduled.
func plan(task model.Task, leadMinutes int, now time.Time) (due, fire *time.Time) {
	next := recurrence.NextDue(task.Schedule, now)
	if next == nil {
		return nil, nil
	}
	at := next.Add(-time.Duration(leadMinutes) * time.Minute)
	if !at.After(now) {
		return nil, nil
	}
	if last := chore.LastCompletion(task); last != nil && chore.SamePeriod(task.Schedule.Kind, *next, *last) {
		return nil, nil
	}
	return next, &at
}

// FireTime returns when the reminder for the task's next due date should
// fire. It returns nil when the task cannot be scheduled, when the fire time
// has already passed, or when the task is already completed for the period
// of that due date.
func FireTime(task model.Task, leadMinutes int, now time.Time) *time.Time {
	_, fire := plan(task, leadMinutes, now)
	return fire
}

// Build returns the notification for the task, addressed to its current
// assignee. It reports false when FireTime is nil or the task has no
// members.
func Build(group model.Group, task model.Task, leadMinutes int, now time.Time, tr display.Translator) (Notification, bool) {
	assignee, ok := rotation.CurrentAssignee(task)
	if !ok {
		return Notification{}, false
	}
	due, fire := plan(task, leadMinutes, now)
	if fire == nil {
		return Notification{}, false
	}

	dueLabel := display.DueDateLabel(*due, *fire, tr)
	clock := due.Format("15:04")

	var body string
	if m := group.Member(assignee); m != nil {
		body = tr.Sprintf("%[1]s, it's your turn (%[2]s, %[3]s)", m.Name, dueLabel, clock)
	} else {
		body = tr.Sprintf("Due %[1]s, %[2]s", dueLabel, clock)
	}

	return Notification{
		TaskID:  task.ID,
		GroupID: group.ID,
		FireAt:  *fire,
		DueAt:   *due,
		Title:   tr.Sprintf("Time for %[1]s", task.Name),
		Body:    body,
	}, true
}

// Reschedule cancels the task's pending reminder and schedules a new one
// if there should be one. It reports whether a reminder was scheduled.
func Reschedule(ctx context.Context, n Notifier, group model.Group, task model.Task, leadMinutes int, now time.Time, tr display.Translator) (bool, error) {
	if err := n.Cancel(ctx, task.ID); err != nil {
		return false, fmt.Errorf("cancel reminder for task %s: %w", task.ID, err)
	}
	notif, ok := Build(group, task, leadMinutes, now, tr)
	if !ok {
		return false, nil
	}
	if err := n.Schedule(ctx, notif); err != nil {
		return false, fmt.Errorf("schedule reminder for task %s: %w", task.ID, err)
	}
	return true, nil
}

// Summary counts the outcome of RescheduleGroup.
type Summary struct {
	Scheduled  int
	Suppressed int
	Failed     int
}

// RescheduleGroup runs Reschedule for every task in order. A failing task
// does not stop the others; all errors are returned joined.
func RescheduleGroup(ctx context.Context, n Notifier, group model.Group, leadMinutes int, now time.Time, tr display.Translator) (Summary, error) {
	var (
		sum  Summary
		errs []error
	)
	for _, task := range group.Tasks {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		scheduled, err := Reschedule(ctx, n, group, task, leadMinutes, now, tr)
		switch {
		case err != nil:
			sum.Failed++
			errs = append(errs, err)
		case scheduled:
			sum.Scheduled++
		default:
			sum.Suppressed++
		}
	}
	return sum, errors.Join(errs...)
}
