package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/rotation"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

// --- Group methods ---

const groupCols = `id, name, created_at, updated_at`

func scanGroup(row scanner) (*model.Group, error) {
	var g model.Group
	if err := row.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) Create(ctx context.Context, name string) (*model.Group, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the group without members or tasks; see TaskStore.Load.
func (s *GroupStore) Get(ctx context.Context, id string) (*model.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) List(ctx context.Context) ([]model.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupCols+` FROM groups ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func (s *GroupStore) Rename(ctx context.Context, id, name string) (*model.Group, error) {
	err := requireAffected(s.db.ExecContext(ctx,
		`UPDATE groups SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id,
	))
	if err != nil {
		return nil, fmt.Errorf("rename group: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *GroupStore) Delete(ctx context.Context, id string) error {
	if err := requireAffected(s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// --- Member methods ---

const memberCols = `id, group_id, name, avatar_color, streak_count, last_streak_date, sort_order, created_at, updated_at`

func scanMember(row scanner) (*model.Member, error) {
	var m model.Member
	var last sql.NullTime
	err := row.Scan(&m.ID, &m.GroupID, &m.Name, &m.AvatarColor, &m.StreakCount, &last, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.LastStreakDate = timePtr(last)
	return &m, nil
}

func (s *GroupStore) AddMember(ctx context.Context, groupID, name, avatarColor string) (*model.Member, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, group_id, name, avatar_color, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM members WHERE group_id = ?), ?, ?)`,
		id, groupID, name, avatarColor, groupID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return s.GetMember(ctx, id)
}

func (s *GroupStore) GetMember(ctx context.Context, id string) (*model.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func listMembers(ctx context.Context, q querier, groupID string) ([]model.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE group_id = ? ORDER BY sort_order ASC, name ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *GroupStore) ListMembers(ctx context.Context, groupID string) ([]model.Member, error) {
	return listMembers(ctx, s.db, groupID)
}

func (s *GroupStore) UpdateMember(ctx context.Context, id, name, avatarColor string) (*model.Member, error) {
	err := requireAffected(s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, avatar_color = ?, updated_at = ? WHERE id = ?`,
		name, avatarColor, time.Now().UTC(), id,
	))
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetMember(ctx, id)
}

// RemoveMember deletes the member and takes them off every task's rotation,
// keeping each task's current assignee where possible.
func (s *GroupStore) RemoveMember(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT t.id, t.assigned_index FROM tasks t
		 JOIN task_members tm ON tm.task_id = t.id
		 WHERE tm.member_id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("find member tasks: %w", err)
	}
	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.AssignedIndex); err != nil {
			rows.Close()
			return fmt.Errorf("scan member task: %w", err)
		}
		tasks = append(tasks, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("find member tasks: %w", err)
	}

	now := time.Now().UTC()
	for _, t := range tasks {
		if t.MemberIDs, err = taskMemberIDs(ctx, tx, t.ID); err != nil {
			return err
		}
		ids, idx := rotation.RemoveMember(t, id)
		if err := writeTaskMembers(ctx, tx, t.ID, ids); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET assigned_index = ?, updated_at = ? WHERE id = ?`, idx, now, t.ID,
		); err != nil {
			return fmt.Errorf("update assigned index: %w", err)
		}
	}

	if err := requireAffected(tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return tx.Commit()
}

// SetStreak overwrites a member's streak counters.
func (s *GroupStore) SetStreak(ctx context.Context, id string, count int, last *time.Time) error {
	err := requireAffected(s.db.ExecContext(ctx,
		`UPDATE members SET streak_count = ?, last_streak_date = ?, updated_at = ? WHERE id = ?`,
		count, nullTime(last), time.Now().UTC(), id,
	))
	if err != nil {
		return fmt.Errorf("set streak: %w", err)
	}
	return nil
}
