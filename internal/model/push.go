package model

import "time"

type PushSubscription struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScheduledReminder is a planned push for a task. A task has at most one
// pending reminder.
type ScheduledReminder struct {
	TaskID    string     `json:"task_id"`
	GroupID   string     `json:"group_id"`
	FireAt    time.Time  `json:"fire_at"`
	DueAt     time.Time  `json:"due_at"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
