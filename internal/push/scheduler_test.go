package push

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ralpholazo24/turi/internal/database"
	"github.com/ralpholazo24/turi/internal/display"
	"github.com/ralpholazo24/turi/internal/metrics"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/recurrence"
	"github.com/ralpholazo24/turi/internal/store"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []Payload
	expired map[string]bool
}

func (f *fakeSender) Send(_ context.Context, sub *model.PushSubscription, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired[sub.Endpoint] {
		return ErrExpired
	}
	f.sent = append(f.sent, p)
	return nil
}

type env struct {
	groups    *store.GroupStore
	tasks     *store.TaskStore
	push      *store.PushStore
	settings  *store.SettingsStore
	planner   *Planner
	sender    *fakeSender
	scheduler *Scheduler
	group     *model.Group
	task      *model.Task
}

// newEnv sets up a group with Ana and Ben sharing a daily 19:00 task.
func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	catalog, err := display.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	e := &env{
		groups:   store.NewGroupStore(db),
		tasks:    store.NewTaskStore(db),
		push:     store.NewPushStore(db),
		settings: store.NewSettingsStore(db),
		sender:   &fakeSender{expired: map[string]bool{}},
	}
	e.planner = NewPlanner(e.push, e.tasks, e.settings, catalog)
	e.planner.Location = time.UTC
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.scheduler = NewScheduler(e.sender, e.push, e.groups, e.planner, metrics.New(nil), logger)

	ctx := context.Background()
	if e.group, err = e.groups.Create(ctx, "Flat 3B"); err != nil {
		t.Fatalf("create group: %v", err)
	}
	var ids []string
	for _, name := range []string{"Ana", "Ben"} {
		m, err := e.groups.AddMember(ctx, e.group.ID, name, "#e11d48")
		if err != nil {
			t.Fatalf("add member: %v", err)
		}
		ids = append(ids, m.ID)
	}
	rule := recurrence.Rule{Kind: recurrence.Daily, Time: "19:00"}
	if e.task, err = e.tasks.Create(ctx, e.group.ID, "Dishes", "sink", rule, ids); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return e
}

func morning() time.Time { return time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC) }

func TestPlannerReplan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sum, err := e.planner.Replan(ctx, e.group.ID, morning())
	if err != nil {
		t.Fatalf("Replan: %v", err)
	}
	if sum.Scheduled != 1 {
		t.Errorf("scheduled = %d, want 1", sum.Scheduled)
	}

	r, err := e.push.GetReminder(ctx, e.task.ID)
	if err != nil || r == nil {
		t.Fatalf("GetReminder = %v, %v", r, err)
	}
	wantFire := time.Date(2025, 3, 3, 18, 30, 0, 0, time.UTC)
	if !r.FireAt.Equal(wantFire) {
		t.Errorf("fire at = %v, want %v", r.FireAt, wantFire)
	}
	if r.Title != "Time for Dishes" {
		t.Errorf("title = %q", r.Title)
	}
	if r.Body != "Ana, it's your turn (Today, 19:00)" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestPlannerGroupSettings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.settings.Set(ctx, e.group.ID, model.SettingReminderMinutes, "60"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.settings.Set(ctx, e.group.ID, model.SettingLocale, "es"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := e.planner.ReplanTask(ctx, e.group.ID, e.task.ID, morning()); err != nil {
		t.Fatalf("ReplanTask: %v", err)
	}
	r, _ := e.push.GetReminder(ctx, e.task.ID)
	if r == nil {
		t.Fatal("no reminder scheduled")
	}
	if want := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC); !r.FireAt.Equal(want) {
		t.Errorf("fire at = %v, want %v", r.FireAt, want)
	}
	if r.Title != "Hora de Dishes" {
		t.Errorf("title = %q, want Spanish", r.Title)
	}
}

func TestPlannerReplanTaskDeleted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.planner.Replan(ctx, e.group.ID, morning()); err != nil {
		t.Fatalf("Replan: %v", err)
	}
	if err := e.tasks.Delete(ctx, e.task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	scheduled, err := e.planner.ReplanTask(ctx, e.group.ID, e.task.ID, morning())
	if err != nil || scheduled {
		t.Fatalf("ReplanTask = %v, %v, want false, nil", scheduled, err)
	}
	if r, _ := e.push.GetReminder(ctx, e.task.ID); r != nil {
		t.Errorf("reminder still present: %+v", r)
	}
}

func TestSendDue(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.push.CreateSubscription(ctx, e.group.ID, "https://push.example/phone", "p", "a", "phone"); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if _, err := e.push.CreateSubscription(ctx, e.group.ID, "https://push.example/old", "p", "a", "old"); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	e.sender.expired["https://push.example/old"] = true

	if _, err := e.planner.Replan(ctx, e.group.ID, morning()); err != nil {
		t.Fatalf("Replan: %v", err)
	}

	// Before the fire time nothing goes out.
	if n := e.scheduler.SendDue(ctx, morning()); n != 0 {
		t.Errorf("SendDue before fire time = %d, want 0", n)
	}

	fire := time.Date(2025, 3, 3, 18, 31, 0, 0, time.UTC)
	if n := e.scheduler.SendDue(ctx, fire); n != 1 {
		t.Fatalf("SendDue = %d, want 1", n)
	}
	if len(e.sender.sent) != 1 {
		t.Errorf("deliveries = %d, want 1", len(e.sender.sent))
	}
	if got := e.sender.sent[0].Tag; got != "task-"+e.task.ID {
		t.Errorf("tag = %q", got)
	}

	subs, err := e.push.ListByGroup(ctx, e.group.ID)
	if err != nil {
		t.Fatalf("ListByGroup: %v", err)
	}
	if len(subs) != 1 || subs[0].DeviceName != "phone" {
		t.Errorf("subscriptions = %+v, want only phone", subs)
	}

	r, _ := e.push.GetReminder(ctx, e.task.ID)
	if r == nil || r.SentAt == nil {
		t.Fatalf("reminder not marked sent: %+v", r)
	}

	// A second pass does not resend.
	if n := e.scheduler.SendDue(ctx, fire.Add(time.Minute)); n != 0 {
		t.Errorf("second SendDue = %d, want 0", n)
	}
}

func TestTickSendsBeforeReplanning(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.push.CreateSubscription(ctx, e.group.ID, "https://push.example/phone", "p", "a", "phone"); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	now := morning()
	e.scheduler.now = func() time.Time { return now }
	e.scheduler.Tick(ctx)
	if len(e.sender.sent) != 0 {
		t.Fatalf("sent %d at 10:00, want 0", len(e.sender.sent))
	}

	// Past the fire time and past the re-plan interval.
	now = time.Date(2025, 3, 3, 18, 30, 30, 0, time.UTC)
	e.scheduler.Tick(ctx)
	if len(e.sender.sent) != 1 {
		t.Fatalf("sent %d after fire time, want 1", len(e.sender.sent))
	}

	// The re-plan dropped today's reminder instead of resending it.
	if r, _ := e.push.GetReminder(ctx, e.task.ID); r != nil {
		t.Errorf("reminder after re-plan = %+v, want none", r)
	}

	// Once today's due time has passed, tomorrow's reminder is planned.
	now = time.Date(2025, 3, 3, 19, 31, 0, 0, time.UTC)
	e.scheduler.Tick(ctx)
	r, _ := e.push.GetReminder(ctx, e.task.ID)
	if r == nil {
		t.Fatal("no reminder for tomorrow")
	}
	if want := time.Date(2025, 3, 4, 18, 30, 0, 0, time.UTC); !r.FireAt.Equal(want) {
		t.Errorf("next fire = %v, want %v", r.FireAt, want)
	}
	if len(e.sender.sent) != 1 {
		t.Errorf("sent = %d, want still 1", len(e.sender.sent))
	}
}

func TestStartStop(t *testing.T) {
	e := newEnv(t)
	e.scheduler.interval = time.Hour
	e.scheduler.Start(context.Background())
	e.scheduler.Stop()
}
