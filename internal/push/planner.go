package push

import (
	"context"
	"fmt"
	"time"

	"github.com/ralpholazo24/turi/internal/display"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/reminder"
	"github.com/ralpholazo24/turi/internal/store"
)

// Planner keeps the scheduled_reminders table in step with a group's tasks.
// It is the reminder.Notifier used by the server and the scheduler loop.
type Planner struct {
	push     *store.PushStore
	tasks    *store.TaskStore
	settings *store.SettingsStore
	catalog  *display.Catalog

	// Used when a group has no setting of its own.
	LeadMinutes int
	Locale      string
	Location    *time.Location
}

var _ reminder.Notifier = (*Planner)(nil)

func NewPlanner(ps *store.PushStore, ts *store.TaskStore, ss *store.SettingsStore, catalog *display.Catalog) *Planner {
	return &Planner{
		push:        ps,
		tasks:       ts,
		settings:    ss,
		catalog:     catalog,
		LeadMinutes: reminder.DefaultLeadMinutes,
		Locale:      "en",
		Location:    time.Local,
	}
}

func (p *Planner) Cancel(ctx context.Context, taskID string) error {
	return p.push.CancelReminder(ctx, taskID)
}

func (p *Planner) Schedule(ctx context.Context, n reminder.Notification) error {
	return p.push.ScheduleReminder(ctx, model.ScheduledReminder{
		TaskID:  n.TaskID,
		GroupID: n.GroupID,
		FireAt:  n.FireAt,
		DueAt:   n.DueAt,
		Title:   n.Title,
		Body:    n.Body,
	})
}

// Preferences returns the group's lead time and translator.
func (p *Planner) Preferences(ctx context.Context, groupID string) (int, display.Translator, error) {
	lead, err := p.settings.GetInt(ctx, groupID, model.SettingReminderMinutes, p.LeadMinutes)
	if err != nil {
		return 0, nil, err
	}
	locale, ok, err := p.settings.Get(ctx, groupID, model.SettingLocale)
	if err != nil {
		return 0, nil, err
	}
	if !ok || locale == "" {
		locale = p.Locale
	}
	return lead, p.catalog.For(locale), nil
}

// Replan re-plans every task in the group.
func (p *Planner) Replan(ctx context.Context, groupID string, now time.Time) (reminder.Summary, error) {
	g, err := p.tasks.Load(ctx, groupID)
	if err != nil {
		return reminder.Summary{}, err
	}
	if g == nil {
		return reminder.Summary{}, fmt.Errorf("replan group %s: %w", groupID, store.ErrNotFound)
	}
	lead, tr, err := p.Preferences(ctx, groupID)
	if err != nil {
		return reminder.Summary{}, err
	}
	return reminder.RescheduleGroup(ctx, p, *g, lead, now.In(p.Location), tr)
}

// ReplanTask re-plans one task after it changed. A task that no longer
// exists just has its reminder dropped.
func (p *Planner) ReplanTask(ctx context.Context, groupID, taskID string, now time.Time) (bool, error) {
	g, err := p.tasks.Load(ctx, groupID)
	if err != nil {
		return false, err
	}
	var task *model.Task
	if g != nil {
		task = g.Task(taskID)
	}
	if task == nil {
		return false, p.Cancel(ctx, taskID)
	}
	lead, tr, err := p.Preferences(ctx, groupID)
	if err != nil {
		return false, err
	}
	return reminder.Reschedule(ctx, p, *g, *task, lead, now.In(p.Location), tr)
}
