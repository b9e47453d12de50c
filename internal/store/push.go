package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ralpholazo24/turi/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

// --- Subscriptions ---

const subscriptionCols = `id, group_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(row scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := row.Scan(&sub.ID, &sub.GroupID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription registers a browser endpoint for the group. A known
// endpoint is moved to the group with its keys refreshed.
func (s *PushStore) CreateSubscription(ctx context.Context, groupID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, group_id, endpoint, p256dh_key, auth_key, device_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET group_id = excluded.group_id, p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key, device_name = excluded.device_name`,
		uuid.NewString(), groupID, endpoint, p256dh, auth, deviceName, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return s.GetByEndpoint(ctx, endpoint)
}

func (s *PushStore) GetByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByGroup(ctx context.Context, groupID string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE group_id = ? ORDER BY created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteSubscription(ctx context.Context, id, groupID string) error {
	err := requireAffected(s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE id = ? AND group_id = ?`, id, groupID,
	))
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// --- Scheduled reminders ---

const reminderCols = `task_id, group_id, fire_at, due_at, title, body, sent_at, created_at`

func scanReminder(row scanner) (*model.ScheduledReminder, error) {
	var r model.ScheduledReminder
	var sent sql.NullTime
	err := row.Scan(&r.TaskID, &r.GroupID, &r.FireAt, &r.DueAt, &r.Title, &r.Body, &sent, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.SentAt = timePtr(sent)
	return &r, nil
}

// CancelReminder drops the task's planned reminder, sent or not.
func (s *PushStore) CancelReminder(ctx context.Context, taskID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_reminders WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	return nil
}

// ScheduleReminder stores the task's reminder, replacing any existing one.
func (s *PushStore) ScheduleReminder(ctx context.Context, r model.ScheduledReminder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_reminders (task_id, group_id, fire_at, due_at, title, body, sent_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
		 ON CONFLICT(task_id) DO UPDATE SET group_id = excluded.group_id, fire_at = excluded.fire_at,
		   due_at = excluded.due_at, title = excluded.title, body = excluded.body, sent_at = NULL`,
		r.TaskID, r.GroupID, r.FireAt.UTC(), r.DueAt.UTC(), r.Title, r.Body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	return nil
}

func (s *PushStore) GetReminder(ctx context.Context, taskID string) (*model.ScheduledReminder, error) {
	r, err := scanReminder(s.db.QueryRowContext(ctx,
		`SELECT `+reminderCols+` FROM scheduled_reminders WHERE task_id = ?`, taskID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

// DueReminders returns unsent reminders whose fire time is at or before
// the given instant, oldest first.
func (s *PushStore) DueReminders(ctx context.Context, before time.Time) ([]model.ScheduledReminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM scheduled_reminders
		 WHERE sent_at IS NULL AND fire_at <= ? ORDER BY fire_at ASC`,
		before.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduledReminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *PushStore) MarkSent(ctx context.Context, taskID string, at time.Time) error {
	err := requireAffected(s.db.ExecContext(ctx,
		`UPDATE scheduled_reminders SET sent_at = ? WHERE task_id = ?`, at.UTC(), taskID,
	))
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
