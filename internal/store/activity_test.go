package store

import (
	"context"
	"testing"
	"time"

	"github.com/ralpholazo24/turi/internal/model"
)

func TestActivityAppendAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	kinds := []model.ActivityKind{model.ActivityTaskCreated, model.ActivityCompleted, model.ActivitySkipped}
	for i, kind := range kinds {
		e, err := f.activity.Append(ctx, model.ActivityEntry{
			GroupID:   f.group.ID,
			Kind:      kind,
			TaskID:    "t1",
			MemberID:  f.members[0].ID,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if e.ID == "" {
			t.Error("expected generated ID")
		}
	}

	entries, err := f.activity.List(ctx, f.group.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Kind != model.ActivitySkipped || entries[1].Kind != model.ActivityCompleted {
		t.Errorf("order = %s, %s; want newest first", entries[0].Kind, entries[1].Kind)
	}

	all, err := f.activity.List(ctx, f.group.ID, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}
