package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/recurrence"
	"github.com/ralpholazo24/turi/internal/rotation"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, group_id, name, icon, schedule, assigned_index, sort_order, created_at, updated_at`

func scanTask(row scanner) (*model.Task, error) {
	var t model.Task
	var schedule string
	err := row.Scan(&t.ID, &t.GroupID, &t.Name, &t.Icon, &schedule, &t.AssignedIndex, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rule, err := recurrence.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.Schedule = rule
	return &t, nil
}

func taskMemberIDs(ctx context.Context, q querier, taskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT member_id FROM task_members WHERE task_id = ? ORDER BY position ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task members: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func writeTaskMembers(ctx context.Context, q querier, taskID string, memberIDs []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM task_members WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear task members: %w", err)
	}
	for i, id := range memberIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO task_members (task_id, member_id, position) VALUES (?, ?, ?)`, taskID, id, i,
		); err != nil {
			return fmt.Errorf("insert task member: %w", err)
		}
	}
	return nil
}

// checkMembers verifies every member belongs to the group.
func checkMembers(ctx context.Context, q querier, groupID string, memberIDs []string) error {
	for _, id := range memberIDs {
		var n int
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM members WHERE id = ? AND group_id = ?`, id, groupID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("check member: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("member %s in group %s: %w", id, groupID, ErrNotFound)
		}
	}
	return nil
}

func listCompletions(ctx context.Context, q querier, taskID string) ([]model.Completion, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, task_id, member_id, completed_at FROM task_completions
		 WHERE task_id = ? ORDER BY completed_at ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []model.Completion
	for rows.Next() {
		var c model.Completion
		if err := rows.Scan(&c.ID, &c.TaskID, &c.MemberID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func listSkips(ctx context.Context, q querier, taskID string) ([]model.Skip, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, task_id, member_id, skipped_at FROM task_skips
		 WHERE task_id = ? ORDER BY skipped_at ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list skips: %w", err)
	}
	defer rows.Close()

	var out []model.Skip
	for rows.Next() {
		var sk model.Skip
		if err := rows.Scan(&sk.ID, &sk.TaskID, &sk.MemberID, &sk.SkippedAt); err != nil {
			return nil, fmt.Errorf("scan skip: %w", err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// hydrate fills in the member order and both histories.
func hydrate(ctx context.Context, q querier, t *model.Task) error {
	var err error
	if t.MemberIDs, err = taskMemberIDs(ctx, q, t.ID); err != nil {
		return err
	}
	if t.CompletionHistory, err = listCompletions(ctx, q, t.ID); err != nil {
		return err
	}
	if t.SkipHistory, err = listSkips(ctx, q, t.ID); err != nil {
		return err
	}
	return nil
}

func (s *TaskStore) Create(ctx context.Context, groupID, name, icon string, schedule recurrence.Rule, memberIDs []string) (*model.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkMembers(ctx, tx, groupID, memberIDs); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (id, group_id, name, icon, schedule, assigned_index, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM tasks WHERE group_id = ?), ?, ?)`,
		id, groupID, name, icon, schedule.String(), groupID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	if err := writeTaskMembers(ctx, tx, id, memberIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the task with its members and history, or nil.
func (s *TaskStore) Get(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := hydrate(ctx, s.db, t); err != nil {
		return nil, err
	}
	return t, nil
}

func listTasks(ctx context.Context, q querier, groupID string) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE group_id = ? ORDER BY sort_order ASC, name ASC`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	for i := range tasks {
		if err := hydrate(ctx, q, &tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (s *TaskStore) ListByGroup(ctx context.Context, groupID string) ([]model.Task, error) {
	return listTasks(ctx, s.db, groupID)
}

// Load returns the group with its members and fully hydrated tasks, or nil.
func (s *TaskStore) Load(ctx context.Context, groupID string) (*model.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups WHERE id = ?`, groupID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if g.Members, err = listMembers(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	if g.Tasks, err = listTasks(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *TaskStore) Update(ctx context.Context, id, name, icon string, schedule recurrence.Rule) (*model.Task, error) {
	err := requireAffected(s.db.ExecContext(ctx,
		`UPDATE tasks SET name = ?, icon = ?, schedule = ?, updated_at = ? WHERE id = ?`,
		name, icon, schedule.String(), time.Now().UTC(), id,
	))
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.Get(ctx, id)
}

// SetMembers replaces the rotation order. The current assignee keeps the
// task if they are still in the list; otherwise it goes to the first member.
func (s *TaskStore) SetMembers(ctx context.Context, id string, memberIDs []string) (*model.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var groupID string
	var assigned int
	err = tx.QueryRowContext(ctx, `SELECT group_id, assigned_index FROM tasks WHERE id = ?`, id).Scan(&groupID, &assigned)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("set task members: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set task members: %w", err)
	}
	if err := checkMembers(ctx, tx, groupID, memberIDs); err != nil {
		return nil, err
	}

	old, err := taskMemberIDs(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := writeTaskMembers(ctx, tx, id, memberIDs); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET assigned_index = ?, updated_at = ? WHERE id = ?`,
		rotation.Remap(old, assigned, memberIDs), time.Now().UTC(), id,
	); err != nil {
		return nil, fmt.Errorf("update assigned index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := requireAffected(s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// advance moves the assigned index from one value to another, failing with
// ErrConflict if another rotation got there first.
func advance(ctx context.Context, tx *sql.Tx, taskID string, from, to int, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET assigned_index = ?, updated_at = ? WHERE id = ? AND assigned_index = ?`,
		to, now, taskID, from,
	)
	if err != nil {
		return fmt.Errorf("advance rotation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance rotation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("advance rotation for task %s: %w", taskID, ErrConflict)
	}
	return nil
}

// RecordCompletion applies a rotation.Result computed from a task whose
// assigned index was from: the completion row, the new index and the
// member's streak are written together.
func (s *TaskStore) RecordCompletion(ctx context.Context, from int, res rotation.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c := res.Completion
	if err := advance(ctx, tx, c.TaskID, from, res.AssignedIndex, time.Now().UTC()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO task_completions (id, task_id, member_id, completed_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.TaskID, c.MemberID, c.CompletedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	if st := res.Streak; st != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET streak_count = ?, last_streak_date = ?, updated_at = ? WHERE id = ?`,
			st.StreakCount, st.LastStreakDate.UTC(), time.Now().UTC(), st.MemberID,
		); err != nil {
			return fmt.Errorf("update streak: %w", err)
		}
	}
	return tx.Commit()
}

// RecordSkip applies a rotation.SkipResult; see RecordCompletion.
func (s *TaskStore) RecordSkip(ctx context.Context, from int, res rotation.SkipResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sk := res.Skip
	if err := advance(ctx, tx, sk.TaskID, from, res.AssignedIndex, time.Now().UTC()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO task_skips (id, task_id, member_id, skipped_at) VALUES (?, ?, ?, ?)`,
		sk.ID, sk.TaskID, sk.MemberID, sk.SkippedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert skip: %w", err)
	}
	return tx.Commit()
}

// ImportCompletion appends a historical completion without touching the
// rotation or streaks.
func (s *TaskStore) ImportCompletion(ctx context.Context, c model.Completion) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_completions (id, task_id, member_id, completed_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.TaskID, c.MemberID, c.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("import completion: %w", err)
	}
	return nil
}

// SetAssignedIndex overwrites the index, clamped to the member count.
func (s *TaskStore) SetAssignedIndex(ctx context.Context, id string, index int) error {
	ids, err := taskMemberIDs(ctx, s.db, id)
	if err != nil {
		return err
	}
	err = requireAffected(s.db.ExecContext(ctx,
		`UPDATE tasks SET assigned_index = ?, updated_at = ? WHERE id = ?`,
		rotation.Clamp(index, len(ids)), time.Now().UTC(), id,
	))
	if err != nil {
		return fmt.Errorf("set assigned index: %w", err)
	}
	return nil
}

func (s *TaskStore) ListCompletions(ctx context.Context, taskID string) ([]model.Completion, error) {
	return listCompletions(ctx, s.db, taskID)
}

func (s *TaskStore) ListSkips(ctx context.Context, taskID string) ([]model.Skip, error) {
	return listSkips(ctx, s.db, taskID)
}

// ImportSkip appends a historical skip without touching the rotation.
func (s *TaskStore) ImportSkip(ctx context.Context, sk model.Skip) error {
	if sk.ID == "" {
		sk.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_skips (id, task_id, member_id, skipped_at) VALUES (?, ?, ?, ?)`,
		sk.ID, sk.TaskID, sk.MemberID, sk.SkippedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("import skip: %w", err)
	}
	return nil
}
