package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/rotation"
	"github.com/ralpholazo24/turi/internal/store"
)

// Report counts what an import wrote. Skipped lists tasks left out because
// their schedule could not be converted.
type Report struct {
	Groups      int      `json:"groups"`
	Members     int      `json:"members"`
	Tasks       int      `json:"tasks"`
	Completions int      `json:"completions"`
	Skips       int      `json:"skips"`
	Skipped     []string `json:"skipped,omitempty"`
}

type Importer struct {
	groups   *store.GroupStore
	tasks    *store.TaskStore
	activity *store.ActivityStore
}

func New(groups *store.GroupStore, tasks *store.TaskStore, activity *store.ActivityStore) *Importer {
	return &Importer{groups: groups, tasks: tasks, activity: activity}
}

// Import writes every group in the blob as a new group. Legacy IDs are not
// reused. A group that fails part way is deleted again so a retry does not
// leave duplicates behind.
func (im *Importer) Import(ctx context.Context, blob *Blob) (Report, error) {
	var rep Report
	for _, g := range blob.Groups {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		gr, err := im.importGroup(ctx, g)
		if err != nil {
			return rep, fmt.Errorf("import group %q: %w", g.Name, err)
		}
		rep.Groups++
		rep.Members += gr.Members
		rep.Tasks += gr.Tasks
		rep.Completions += gr.Completions
		rep.Skips += gr.Skips
		rep.Skipped = append(rep.Skipped, gr.Skipped...)
	}
	return rep, nil
}

func (im *Importer) importGroup(ctx context.Context, g Group) (rep Report, err error) {
	created, err := im.groups.Create(ctx, g.Name)
	if err != nil {
		return rep, err
	}
	defer func() {
		if err != nil {
			if derr := im.groups.Delete(ctx, created.ID); derr != nil {
				slog.Error("failed to roll back partial import", "group_id", created.ID, "error", derr)
			}
		}
	}()

	ids := make(map[string]string, len(g.Members))
	for _, m := range g.Members {
		nm, err := im.groups.AddMember(ctx, created.ID, m.Name, m.AvatarColor)
		if err != nil {
			return rep, err
		}
		if m.StreakCount > 0 || m.LastStreakDate != nil {
			if err := im.groups.SetStreak(ctx, nm.ID, m.StreakCount, m.LastStreakDate); err != nil {
				return rep, err
			}
		}
		ids[m.ID] = nm.ID
		rep.Members++
	}

	for _, t := range g.Tasks {
		n, err := im.importTask(ctx, created.ID, ids, t)
		if err != nil {
			return rep, fmt.Errorf("task %q: %w", t.Name, err)
		}
		if n < 0 {
			rep.Skipped = append(rep.Skipped, g.Name+"/"+t.Name)
			continue
		}
		rep.Tasks++
		rep.Completions += n
		rep.Skips += len(t.SkipHistory)
	}

	slog.Info("imported group", "group_id", created.ID, "name", g.Name,
		"members", rep.Members, "tasks", rep.Tasks, "skipped", len(rep.Skipped))
	return rep, nil
}

// importTask returns the number of completions written, or -1 when the task
// was skipped for an unusable schedule.
func (im *Importer) importTask(ctx context.Context, groupID string, ids map[string]string, t Task) (int, error) {
	rule, err := t.Rule()
	if err != nil {
		slog.Warn("skipping task with invalid schedule", "task", t.Name, "error", err)
		return -1, nil
	}

	// Members that were deleted in the old data are dropped from the rotation.
	var known, mapped []string
	for _, old := range t.MemberIDs {
		if id, ok := ids[old]; ok {
			known = append(known, old)
			mapped = append(mapped, id)
		}
	}

	task, err := im.tasks.Create(ctx, groupID, t.Name, t.Icon, rule, mapped)
	if err != nil {
		return 0, err
	}
	if idx := rotation.Remap(t.MemberIDs, t.AssignedIndex, known); idx != 0 {
		if err := im.tasks.SetAssignedIndex(ctx, task.ID, idx); err != nil {
			return 0, err
		}
	}

	completions := 0
	for _, h := range t.CompletionHistory {
		id, ok := ids[h.MemberID]
		if !ok || h.CompletedAt == nil {
			continue
		}
		c := model.Completion{TaskID: task.ID, MemberID: id, CompletedAt: *h.CompletedAt}
		if err := im.tasks.ImportCompletion(ctx, c); err != nil {
			return 0, err
		}
		completions++
	}

	// Older exports only kept the last completion time. Credit it to whoever
	// held the turn before the current assignee.
	if len(t.CompletionHistory) == 0 && t.LastCompletedAt != nil && len(t.MemberIDs) > 0 {
		n := len(t.MemberIDs)
		prev := t.MemberIDs[(rotation.Clamp(t.AssignedIndex, n)+n-1)%n]
		if id, ok := ids[prev]; ok {
			c := model.Completion{TaskID: task.ID, MemberID: id, CompletedAt: *t.LastCompletedAt}
			if err := im.tasks.ImportCompletion(ctx, c); err != nil {
				return 0, err
			}
			completions++
		}
	}

	for _, h := range t.SkipHistory {
		id, ok := ids[h.MemberID]
		if !ok || h.SkippedAt == nil {
			continue
		}
		sk := model.Skip{TaskID: task.ID, MemberID: id, SkippedAt: *h.SkippedAt}
		if err := im.tasks.ImportSkip(ctx, sk); err != nil {
			return 0, err
		}
	}

	_, err = im.activity.Append(ctx, model.ActivityEntry{
		GroupID: groupID,
		Kind:    model.ActivityTaskCreated,
		TaskID:  task.ID,
		Detail:  "imported",
	})
	return completions, err
}
