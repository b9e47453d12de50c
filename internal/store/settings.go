package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value and whether it is set.
func (s *SettingsStore) Get(ctx context.Context, groupID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE group_id = ? AND key = ?`, groupID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

// GetInt returns the setting as an integer, or def when it is unset or not
// a number.
func (s *SettingsStore) GetInt(ctx context.Context, groupID, key string, def int) (int, error) {
	v, ok, err := s.Get(ctx, groupID, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, nil
	}
	return n, nil
}

func (s *SettingsStore) GetAll(ctx context.Context, groupID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE group_id = ? ORDER BY key`, groupID)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(ctx context.Context, groupID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (group_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(group_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		groupID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
