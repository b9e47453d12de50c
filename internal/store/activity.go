package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ralpholazo24/turi/internal/model"
)

// ActivityStore is the append-only audit trail of a group.
type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Append records the entry, filling in ID and CreatedAt when unset.
func (s *ActivityStore) Append(ctx context.Context, e model.ActivityEntry) (*model.ActivityEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, group_id, kind, task_id, member_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GroupID, string(e.Kind), e.TaskID, e.MemberID, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("append activity: %w", err)
	}
	return &e, nil
}

// List returns the newest entries first. limit <= 0 means no limit.
func (s *ActivityStore) List(ctx context.Context, groupID string, limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, kind, task_id, member_id, detail, created_at FROM activity_log
		 WHERE group_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.GroupID, &kind, &e.TaskID, &e.MemberID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Kind = model.ActivityKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
