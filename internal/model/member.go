package model

import "time"

type Member struct {
	ID             string     `json:"id"`
	GroupID        string     `json:"group_id"`
	Name           string     `json:"name"`
	AvatarColor    string     `json:"avatar_color"`
	StreakCount    int        `json:"streak_count"`
	LastStreakDate *time.Time `json:"last_streak_date"`
	SortOrder      int        `json:"sort_order"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
