// Package rotation advances the round-robin assignment of a task among its
// members and keeps per-member completion streaks.
package rotation

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ralpholazo24/turi/internal/calendar"
	"github.com/ralpholazo24/turi/internal/model"
)

// Result is the outcome of MarkDone. The caller applies it; the task and
// members passed in are not modified.
type Result struct {
	AssignedIndex int
	Completion    model.Completion
	// Streak is nil when the assignee has no member record.
	Streak *StreakUpdate
}

type StreakUpdate struct {
	MemberID       string
	StreakCount    int
	LastStreakDate time.Time
}

// SkipResult is the outcome of SkipTurn.
type SkipResult struct {
	AssignedIndex int
	Skip          model.Skip
}

// Clamp bounds index to [0, n-1]. It returns 0 for an empty list.
func Clamp(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	return min(index, n-1)
}

// CurrentAssignee returns the ID of the member currently on the hook.
func CurrentAssignee(task model.Task) (string, bool) {
	if len(task.MemberIDs) == 0 {
		return "", false
	}
	return task.MemberIDs[Clamp(task.AssignedIndex, len(task.MemberIDs))], true
}

// NextStreak returns the member's streak after an action at now: one more
// if the previous action was today or yesterday, otherwise 1.
func NextStreak(m model.Member, now time.Time) int {
	if m.LastStreakDate == nil {
		return 1
	}
	gap := calendar.DaysBetween(m.LastStreakDate.In(now.Location()), now)
	if gap == 0 || gap == 1 {
		return m.StreakCount + 1
	}
	return 1
}

func advance(task model.Task) (current, next int) {
	n := len(task.MemberIDs)
	current = Clamp(task.AssignedIndex, n)
	return current, (current + 1) % n
}

// MarkDone records a completion by the current assignee and passes the task
// to the next member. It reports false, doing nothing, when the task has no
// members.
func MarkDone(task model.Task, members []model.Member, now time.Time) (Result, bool) {
	if len(task.MemberIDs) == 0 {
		return Result{}, false
	}
	current, next := advance(task)
	memberID := task.MemberIDs[current]

	res := Result{
		AssignedIndex: next,
		Completion: model.Completion{
			ID:          uuid.NewString(),
			TaskID:      task.ID,
			MemberID:    memberID,
			CompletedAt: now,
		},
	}

	i := slices.IndexFunc(members, func(m model.Member) bool { return m.ID == memberID })
	if i >= 0 {
		res.Streak = &StreakUpdate{
			MemberID:       memberID,
			StreakCount:    NextStreak(members[i], now),
			LastStreakDate: now,
		}
	}
	return res, true
}

// SkipTurn passes the task to the next member without a completion.
func SkipTurn(task model.Task, now time.Time) (SkipResult, bool) {
	if len(task.MemberIDs) == 0 {
		return SkipResult{}, false
	}
	current, next := advance(task)
	return SkipResult{
		AssignedIndex: next,
		Skip: model.Skip{
			ID:        uuid.NewString(),
			TaskID:    task.ID,
			MemberID:  task.MemberIDs[current],
			SkippedAt: now,
		},
	}, true
}

// Remap returns the assigned index for newIDs that keeps the same member on
// the hook, or 0 when that member is no longer in the list.
func Remap(oldIDs []string, oldIndex int, newIDs []string) int {
	if len(oldIDs) == 0 || len(newIDs) == 0 {
		return 0
	}
	assignee := oldIDs[Clamp(oldIndex, len(oldIDs))]
	if i := slices.Index(newIDs, assignee); i >= 0 {
		return i
	}
	return 0
}

// RemoveMember returns the task's member list without memberID and the
// re-clamped assigned index.
func RemoveMember(task model.Task, memberID string) ([]string, int) {
	ids := slices.DeleteFunc(slices.Clone(task.MemberIDs), func(id string) bool { return id == memberID })
	return ids, Remap(task.MemberIDs, task.AssignedIndex, ids)
}
