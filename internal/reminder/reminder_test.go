package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ralpholazo24/turi/internal/display"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/recurrence"
)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func daily(completions ...time.Time) model.Task {
	task := model.Task{ID: "t1", Name: "Dishes", MemberIDs: []string{"m1"}, Schedule: recurrence.Rule{Kind: recurrence.Daily}}
	for _, c := range completions {
		task.CompletionHistory = append(task.CompletionHistory, model.Completion{MemberID: "m1", CompletedAt: c})
	}
	return task
}

func english(t *testing.T) display.Translator {
	t.Helper()
	c, err := display.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c.For("en")
}

func TestFireTime(t *testing.T) {
	tests := []struct {
		name string
		task model.Task
		lead int
		now  time.Time
		want *time.Time
	}{
		{"lead before due", daily(), 30, at(2025, 3, 10, 8, 0), ptr(at(2025, 3, 10, 8, 30))},
		{"fire time passed", daily(), 30, at(2025, 3, 10, 8, 45), nil},
		{"zero lead", daily(), 0, at(2025, 3, 10, 8, 45), ptr(at(2025, 3, 10, 9, 0))},
		{"completed today suppresses", daily(at(2025, 3, 10, 7, 0)), 30, at(2025, 3, 10, 8, 0), nil},
		{"completed yesterday", daily(at(2025, 3, 9, 20, 0)), 30, at(2025, 3, 10, 8, 0), ptr(at(2025, 3, 10, 8, 30))},
		{"after due rolls to tomorrow", daily(at(2025, 3, 10, 9, 30)), 30, at(2025, 3, 10, 10, 0), ptr(at(2025, 3, 11, 8, 30))},
		{
			"weekly done earlier in week",
			model.Task{
				ID: "t2", MemberIDs: []string{"m1"},
				Schedule:          recurrence.Rule{Kind: recurrence.Weekly, DayOfWeek: recurrence.WeekdayPtr(time.Friday)},
				CompletionHistory: []model.Completion{{MemberID: "m1", CompletedAt: at(2025, 2, 3, 12, 0)}},
			},
			30, at(2025, 2, 5, 12, 0), nil,
		},
		{"malformed rule", model.Task{ID: "t3", Schedule: recurrence.Rule{Kind: recurrence.Weekly}}, 30, at(2025, 2, 5, 12, 0), nil},
	}

	for _, tt := range tests {
		got := FireTime(tt.task, tt.lead, tt.now)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%s: FireTime = %v, want nil", tt.name, *got)
		case tt.want != nil && got == nil:
			t.Errorf("%s: FireTime = nil, want %v", tt.name, *tt.want)
		case tt.want != nil && !got.Equal(*tt.want):
			t.Errorf("%s: FireTime = %v, want %v", tt.name, *got, *tt.want)
		}
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestBuild(t *testing.T) {
	group := model.Group{ID: "g1", Members: []model.Member{{ID: "m1", Name: "Ana"}}}
	task := daily()

	n, ok := Build(group, task, 30, at(2025, 3, 10, 8, 0), english(t))
	if !ok {
		t.Fatal("Build reported no notification")
	}
	if n.TaskID != "t1" || n.GroupID != "g1" {
		t.Errorf("ids = %q/%q", n.TaskID, n.GroupID)
	}
	if !n.FireAt.Equal(at(2025, 3, 10, 8, 30)) || !n.DueAt.Equal(at(2025, 3, 10, 9, 0)) {
		t.Errorf("FireAt = %v, DueAt = %v", n.FireAt, n.DueAt)
	}
	if n.Title != "Time for Dishes" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Body != "Ana, it's your turn (Today, 09:00)" {
		t.Errorf("Body = %q", n.Body)
	}

	task.MemberIDs = nil
	if _, ok := Build(group, task, 30, at(2025, 3, 10, 8, 0), english(t)); ok {
		t.Error("Build without members should report false")
	}
}

type call struct {
	op     string
	taskID string
}

type fakeNotifier struct {
	calls        []call
	failSchedule string
}

func (f *fakeNotifier) Cancel(_ context.Context, taskID string) error {
	f.calls = append(f.calls, call{"cancel", taskID})
	return nil
}

func (f *fakeNotifier) Schedule(_ context.Context, n Notification) error {
	f.calls = append(f.calls, call{"schedule", n.TaskID})
	if n.TaskID == f.failSchedule {
		return errors.New("boom")
	}
	return nil
}

func TestRescheduleGroup(t *testing.T) {
	done := daily(at(2025, 3, 10, 7, 0))
	done.ID = "done"
	open := daily()
	open.ID = "open"
	broken := daily()
	broken.ID = "broken"

	group := model.Group{ID: "g1", Members: []model.Member{{ID: "m1", Name: "Ana"}}, Tasks: []model.Task{open, done, broken}}
	n := &fakeNotifier{failSchedule: "broken"}

	sum, err := RescheduleGroup(context.Background(), n, group, 30, at(2025, 3, 10, 8, 0), english(t))
	if err == nil {
		t.Error("expected joined error from failing task")
	}
	if sum.Scheduled != 1 || sum.Suppressed != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}

	want := []call{
		{"cancel", "open"}, {"schedule", "open"},
		{"cancel", "done"},
		{"cancel", "broken"}, {"schedule", "broken"},
	}
	if len(n.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", n.calls, want)
	}
	for i := range want {
		if n.calls[i] != want[i] {
			t.Errorf("call[%d] = %v, want %v", i, n.calls[i], want[i])
		}
	}
}

func TestRescheduleGroupCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := &fakeNotifier{}
	group := model.Group{Tasks: []model.Task{daily()}}
	if _, err := RescheduleGroup(ctx, n, group, 30, at(2025, 3, 10, 8, 0), english(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(n.calls) != 0 {
		t.Errorf("calls = %v, want none", n.calls)
	}
}
