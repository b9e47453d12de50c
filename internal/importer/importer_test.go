package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ralpholazo24/turi/internal/database"
	"github.com/ralpholazo24/turi/internal/recurrence"
	"github.com/ralpholazo24/turi/internal/store"
)

const sample = `{
  "groups": [{
    "id": "g1",
    "name": "Flat 3B",
    "members": [
      {"id": "m1", "name": "Ana", "avatarColor": "#e11d48", "streakCount": 4, "lastStreakDate": "2025-02-27T09:00:00Z"},
      {"id": "m2", "name": "Ben", "avatarColor": "#2563eb"},
      {"id": "m3", "name": "Cy", "avatarColor": "#16a34a"}
    ],
    "tasks": [
      {
        "id": "t1", "name": "Bins", "icon": "trash",
        "memberIds": ["m1", "m2", "m3"], "assignedIndex": 2,
        "schedule": {"type": "monthly", "dayOfWeek": 5, "week": 4, "time": "18:30"},
        "completionHistory": [
          {"memberId": "m1", "completedAt": "2025-01-24T18:40:00Z"},
          {"memberId": "m2", "completedAt": "2025-02-28T19:00:00Z"}
        ],
        "skipHistory": [{"memberId": "m3", "skippedAt": "2025-02-10T08:00:00Z"}]
      },
      {
        "id": "t2", "name": "Plants",
        "memberIds": ["m2", "gone", "m3"], "assignedIndex": 2,
        "frequency": "weekly", "scheduleDay": 0,
        "lastCompletedAt": "2025-03-02T10:00:00Z"
      },
      {
        "id": "t3", "name": "Broken",
        "memberIds": ["m1"], "frequency": "fortnightly"
      },
      {
        "id": "t4", "name": "Rent",
        "memberIds": ["m1", "m2"],
        "schedule": {"type": "monthly", "mode": "day_of_month", "dayOfMonth": 31}
      }
    ]
  }]
}`

func setup(t *testing.T) (*Importer, *store.GroupStore, *store.TaskStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	groups := store.NewGroupStore(db)
	tasks := store.NewTaskStore(db)
	return New(groups, tasks, store.NewActivityStore(db)), groups, tasks
}

func TestImport(t *testing.T) {
	im, groups, tasks := setup(t)
	ctx := context.Background()

	blob, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rep, err := im.Import(ctx, blob)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if rep.Groups != 1 || rep.Members != 3 || rep.Tasks != 3 {
		t.Errorf("report = %+v, want 1 group, 3 members, 3 tasks", rep)
	}
	if rep.Completions != 2 || rep.Skips != 1 {
		t.Errorf("completions, skips = %d, %d, want 2, 1", rep.Completions, rep.Skips)
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0] != "Flat 3B/Broken" {
		t.Errorf("skipped = %v, want [Flat 3B/Broken]", rep.Skipped)
	}

	all, err := groups.List(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("List groups = %v, %v", all, err)
	}
	g, err := tasks.Load(ctx, all[0].ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	names := map[string]string{}
	for _, m := range g.Members {
		names[m.ID] = m.Name
		if m.Name == "Ana" && m.StreakCount != 4 {
			t.Errorf("Ana streak = %d, want 4", m.StreakCount)
		}
	}

	byName := map[string]int{}
	for i, task := range g.Tasks {
		byName[task.Name] = i
	}
	if _, ok := byName["Broken"]; ok {
		t.Error("task with invalid schedule was imported")
	}

	bins := g.Tasks[byName["Bins"]]
	if bins.Schedule.EffectiveMode() != recurrence.ModeNthWeekday || bins.Schedule.Week != 4 {
		t.Errorf("Bins schedule = %v, want 4th weekday", bins.Schedule)
	}
	if got := names[bins.MemberIDs[bins.AssignedIndex]]; got != "Cy" {
		t.Errorf("Bins assignee = %s, want Cy", got)
	}
	if len(bins.CompletionHistory) != 2 || len(bins.SkipHistory) != 1 {
		t.Errorf("Bins history = %d completions, %d skips, want 2 and 1",
			len(bins.CompletionHistory), len(bins.SkipHistory))
	}

	// "gone" is dropped; Cy stays the assignee at the shifted index.
	plants := g.Tasks[byName["Plants"]]
	if len(plants.MemberIDs) != 2 {
		t.Fatalf("Plants members = %v, want 2", plants.MemberIDs)
	}
	if got := names[plants.MemberIDs[plants.AssignedIndex]]; got != "Cy" {
		t.Errorf("Plants assignee = %s, want Cy", got)
	}
	if len(plants.CompletionHistory) != 0 {
		t.Errorf("Plants completions = %d, want 0 (previous assignee no longer exists)", len(plants.CompletionHistory))
	}

	rent := g.Tasks[byName["Rent"]]
	if rent.Schedule.EffectiveMode() != recurrence.ModeDayOfMonth || rent.Schedule.DayOfMonth != 31 {
		t.Errorf("Rent schedule = %v, want day 31", rent.Schedule)
	}
}

func TestImportLastCompletedAt(t *testing.T) {
	im, groups, tasks := setup(t)
	ctx := context.Background()

	blob, err := Decode(strings.NewReader(`[{
		"name": "Home",
		"members": [{"id": "a", "name": "Ana"}, {"id": "b", "name": "Ben"}],
		"tasks": [{
			"name": "Dishes", "memberIds": ["a", "b"], "assignedIndex": 0,
			"frequency": "daily", "lastCompletedAt": "2025-03-01T20:00:00Z"
		}]
	}]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := im.Import(ctx, blob); err != nil {
		t.Fatalf("Import: %v", err)
	}

	all, _ := groups.List(ctx)
	g, err := tasks.Load(ctx, all[0].ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dishes := g.Tasks[0]
	if len(dishes.CompletionHistory) != 1 {
		t.Fatalf("completions = %d, want 1", len(dishes.CompletionHistory))
	}
	// Index 0 means the turn wrapped, so Ben did it last.
	ben := g.Members[1]
	if got := dishes.CompletionHistory[0].MemberID; got != ben.ID {
		t.Errorf("completion by %s, want Ben (%s)", got, ben.ID)
	}
	want := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	if got := dishes.CompletionHistory[0].CompletedAt; !got.Equal(want) {
		t.Errorf("completed at = %v, want %v", got, want)
	}
}

func TestTaskRule(t *testing.T) {
	intp := func(n int) *int { return &n }

	tests := []struct {
		name    string
		task    Task
		want    string
		wantErr bool
	}{
		{"flat weekly", Task{Frequency: "weekly", ScheduleDay: intp(1)}, "KIND=weekly;DAY=MO", false},
		{"flat last friday", Task{Frequency: "monthly", ScheduleWeek: intp(5), ScheduleDay: intp(5)}, "KIND=monthly;MODE=last_weekday;DAY=FR", false},
		{"object yearly", Task{Schedule: &Schedule{Type: "annually", Time: "08:00"}}, "KIND=yearly;TIME=08:00", false},
		{"object last weekday", Task{Schedule: &Schedule{Type: "monthly", Mode: "last_weekday", DayOfWeek: intp(1), Week: intp(2)}}, "KIND=monthly;MODE=last_weekday;DAY=MO", false},
		{"object day of month", Task{Schedule: &Schedule{Type: "quarterly", DayOfMonth: intp(15)}}, "KIND=every3months;MONTHDAY=15", false},
		{"unknown mode", Task{Schedule: &Schedule{Type: "monthly", Mode: "sometimes"}}, "", true},
		{"unknown frequency", Task{Frequency: "hourly"}, "", true},
		{"weekly without day", Task{Schedule: &Schedule{Type: "weekly"}}, "", true},
		{"day out of range", Task{Schedule: &Schedule{Type: "monthly", Mode: "nth_weekday", DayOfWeek: intp(9), Week: intp(1)}}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.task.Rule()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Rule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && r.String() != tt.want {
				t.Errorf("Rule() = %q, want %q", r.String(), tt.want)
			}
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"groups": 3}`)); err == nil {
		t.Error("Decode of malformed blob succeeded")
	}
}
