package model

import (
	"time"

	"github.com/ralpholazo24/turi/internal/recurrence"
)

// Task is a recurring chore rotated among MemberIDs. AssignedIndex points at
// the member currently responsible.
type Task struct {
	ID                string          `json:"id"`
	GroupID           string          `json:"group_id"`
	Name              string          `json:"name"`
	Icon              string          `json:"icon"`
	MemberIDs         []string        `json:"member_ids"`
	AssignedIndex     int             `json:"assigned_index"`
	Schedule          recurrence.Rule `json:"schedule"`
	CompletionHistory []Completion    `json:"completion_history"`
	SkipHistory       []Skip          `json:"skip_history"`
	SortOrder         int             `json:"sort_order"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Completion struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	MemberID    string    `json:"member_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type Skip struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	MemberID  string    `json:"member_id"`
	SkippedAt time.Time `json:"skipped_at"`
}
