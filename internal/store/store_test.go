package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/ralpholazo24/turi/internal/database"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/recurrence"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	groups   *GroupStore
	tasks    *TaskStore
	activity *ActivityStore
	settings *SettingsStore
	push     *PushStore
	group    *model.Group
	members  []*model.Member
}

// newFixture creates a group with three members: Ana, Ben and Cy.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{
		groups:   NewGroupStore(db),
		tasks:    NewTaskStore(db),
		activity: NewActivityStore(db),
		settings: NewSettingsStore(db),
		push:     NewPushStore(db),
	}
	ctx := context.Background()

	g, err := f.groups.Create(ctx, "Flat 3B")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	f.group = g
	for _, name := range []string{"Ana", "Ben", "Cy"} {
		m, err := f.groups.AddMember(ctx, g.ID, name, "#ff0000")
		if err != nil {
			t.Fatalf("add member %s: %v", name, err)
		}
		f.members = append(f.members, m)
	}
	return f
}

func (f *fixture) memberIDs() []string {
	ids := make([]string, len(f.members))
	for i, m := range f.members {
		ids[i] = m.ID
	}
	return ids
}

func (f *fixture) createTask(t *testing.T, name string) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), f.group.ID, name, "broom",
		recurrence.Rule{Kind: recurrence.Daily, Time: "19:00"}, f.memberIDs())
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}
