package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ralpholazo24/turi/internal/model"
)

func TestCreateSubscriptionUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.push.CreateSubscription(ctx, f.group.ID, "https://push.example/1", "p1", "a1", "phone")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.ID == "" || sub.DeviceName != "phone" {
		t.Errorf("sub = %+v", sub)
	}

	again, err := f.push.CreateSubscription(ctx, f.group.ID, "https://push.example/1", "p2", "a2", "tablet")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if again.ID != sub.ID || again.P256dhKey != "p2" || again.DeviceName != "tablet" {
		t.Errorf("upserted = %+v", again)
	}

	subs, err := f.push.ListByGroup(ctx, f.group.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("len = %d, want 1", len(subs))
	}
}

func TestDeleteSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, _ := f.push.CreateSubscription(ctx, f.group.ID, "https://push.example/1", "p", "a", "")
	if err := f.push.DeleteSubscription(ctx, sub.ID, "other-group"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete from other group = %v, want ErrNotFound", err)
	}
	if err := f.push.DeleteSubscription(ctx, sub.ID, f.group.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	f.push.CreateSubscription(ctx, f.group.ID, "https://push.example/2", "p", "a", "")
	if err := f.push.DeleteByEndpoint(ctx, "https://push.example/2"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, _ := f.push.ListByGroup(ctx, f.group.ID)
	if len(subs) != 0 {
		t.Errorf("len = %d, want 0", len(subs))
	}
}

func TestScheduledReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "Dishes")
	fire := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)

	r := model.ScheduledReminder{
		TaskID: task.ID, GroupID: f.group.ID,
		FireAt: fire, DueAt: fire.Add(30 * time.Minute),
		Title: "Time for Dishes", Body: "Ana, it's your turn",
	}
	if err := f.push.ScheduleReminder(ctx, r); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	due, err := f.push.DueReminders(ctx, fire.Add(-time.Minute))
	if err != nil {
		t.Fatalf("due reminders: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("reminders before fire time = %d, want 0", len(due))
	}

	due, err = f.push.DueReminders(ctx, fire)
	if err != nil {
		t.Fatalf("due reminders: %v", err)
	}
	if len(due) != 1 || !due[0].FireAt.Equal(fire) || due[0].Title != r.Title {
		t.Fatalf("due = %+v", due)
	}

	if err := f.push.MarkSent(ctx, task.ID, fire); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	due, _ = f.push.DueReminders(ctx, fire.Add(time.Hour))
	if len(due) != 0 {
		t.Errorf("sent reminder still due")
	}

	// Rescheduling replaces the row and clears sent_at.
	r.FireAt = fire.Add(24 * time.Hour)
	if err := f.push.ScheduleReminder(ctx, r); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	got, err := f.push.GetReminder(ctx, task.ID)
	if err != nil {
		t.Fatalf("get reminder: %v", err)
	}
	if got.SentAt != nil || !got.FireAt.Equal(r.FireAt) {
		t.Errorf("reminder = %+v", got)
	}

	if err := f.push.CancelReminder(ctx, task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got, _ := f.push.GetReminder(ctx, task.ID); got != nil {
		t.Error("reminder still present after cancel")
	}
	if err := f.push.MarkSent(ctx, task.ID, fire); !errors.Is(err, ErrNotFound) {
		t.Errorf("mark sent after cancel = %v, want ErrNotFound", err)
	}
}
