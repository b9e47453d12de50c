package model

import "time"

type ActivityKind string

const (
	ActivityTaskCreated   ActivityKind = "created"
	ActivityCompleted     ActivityKind = "completed"
	ActivitySkipped       ActivityKind = "skipped"
	ActivityMemberAdded   ActivityKind = "member_added"
	ActivityMemberRemoved ActivityKind = "member_removed"
	ActivityTaskDeleted   ActivityKind = "task_deleted"
)

// ActivityEntry is one line of a group's audit trail. TaskID and MemberID
// are kept as plain strings so entries outlive the rows they mention.
type ActivityEntry struct {
	ID        string       `json:"id"`
	GroupID   string       `json:"group_id"`
	Kind      ActivityKind `json:"kind"`
	TaskID    string       `json:"task_id,omitempty"`
	MemberID  string       `json:"member_id,omitempty"`
	Detail    string       `json:"detail,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
