// Package importer loads the older key-value JSON export of groups into the
// database, converting legacy schedules on the way in.
package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ralpholazo24/turi/internal/recurrence"
)

// Blob is the exported document: every group with its members and tasks.
type Blob struct {
	Groups []Group `json:"groups"`
}

type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
	Tasks   []Task   `json:"tasks"`
}

type Member struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	AvatarColor    string     `json:"avatarColor"`
	StreakCount    int        `json:"streakCount"`
	LastStreakDate *time.Time `json:"lastStreakDate"`
}

type HistoryEntry struct {
	MemberID    string     `json:"memberId"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	SkippedAt   *time.Time `json:"skippedAt,omitempty"`
}

// Task carries either Schedule or the flat Frequency fields, and either
// CompletionHistory or LastCompletedAt.
type Task struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Icon              string         `json:"icon"`
	MemberIDs         []string       `json:"memberIds"`
	AssignedIndex     int            `json:"assignedIndex"`
	Schedule          *Schedule      `json:"schedule,omitempty"`
	Frequency         string         `json:"frequency,omitempty"`
	ScheduleWeek      *int           `json:"scheduleWeek,omitempty"`
	ScheduleDay       *int           `json:"scheduleDay,omitempty"`
	ScheduleTime      string         `json:"scheduleTime,omitempty"`
	LastCompletedAt   *time.Time     `json:"lastCompletedAt,omitempty"`
	CompletionHistory []HistoryEntry `json:"completionHistory"`
	SkipHistory       []HistoryEntry `json:"skipHistory"`
}

// Schedule is the unified schedule object.
type Schedule struct {
	Type       string     `json:"type"`
	Mode       string     `json:"mode,omitempty"`
	DayOfWeek  *int       `json:"dayOfWeek,omitempty"`
	Week       *int       `json:"week,omitempty"`
	DayOfMonth *int       `json:"dayOfMonth,omitempty"`
	Time       string     `json:"time,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
}

// Decode reads a Blob. A bare array of groups is accepted too.
func Decode(r io.Reader) (*Blob, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	var blob Blob
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(raw, &blob.Groups)
	} else {
		err = json.Unmarshal(raw, &blob)
	}
	if err != nil {
		return nil, fmt.Errorf("decode blob: %w", err)
	}
	return &blob, nil
}

var modeNames = map[string]recurrence.MonthlyMode{
	"nth_weekday":  recurrence.ModeNthWeekday,
	"nthweekday":   recurrence.ModeNthWeekday,
	"day_of_month": recurrence.ModeDayOfMonth,
	"dayofmonth":   recurrence.ModeDayOfMonth,
	"last_weekday": recurrence.ModeLastWeekday,
	"lastweekday":  recurrence.ModeLastWeekday,
}

// Rule converts whichever schedule representation the task carries.
func (t Task) Rule() (recurrence.Rule, error) {
	s := t.Schedule
	if s == nil {
		return recurrence.FromLegacy(recurrence.LegacySchedule{
			Frequency:    t.Frequency,
			ScheduleWeek: t.ScheduleWeek,
			ScheduleDay:  t.ScheduleDay,
			ScheduleTime: t.ScheduleTime,
		})
	}
	if s.Mode == "" && s.DayOfMonth == nil {
		return recurrence.FromLegacy(recurrence.LegacySchedule{
			Frequency:    s.Type,
			ScheduleWeek: s.Week,
			ScheduleDay:  s.DayOfWeek,
			ScheduleTime: s.Time,
			StartDate:    s.StartDate,
		})
	}

	// An explicit mode or fixed day has no flat equivalent.
	kind, ok := recurrence.LookupKind(s.Type)
	if !ok {
		return recurrence.Rule{}, fmt.Errorf("%w: unknown frequency %q", recurrence.ErrInvalidRule, s.Type)
	}
	r := recurrence.Rule{Kind: kind, Time: s.Time, StartDate: s.StartDate}
	if s.Mode != "" {
		mode, ok := modeNames[strings.ToLower(s.Mode)]
		if !ok {
			return recurrence.Rule{}, fmt.Errorf("%w: unknown mode %q", recurrence.ErrInvalidRule, s.Mode)
		}
		r.Mode = mode
	}
	if s.DayOfWeek != nil {
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return recurrence.Rule{}, fmt.Errorf("%w: dayOfWeek %d out of range", recurrence.ErrInvalidRule, *s.DayOfWeek)
		}
		r.DayOfWeek = recurrence.WeekdayPtr(time.Weekday(*s.DayOfWeek))
	}
	if s.Week != nil && r.Mode != recurrence.ModeLastWeekday {
		r.Week = *s.Week
	}
	if s.DayOfMonth != nil {
		r.DayOfMonth = *s.DayOfMonth
	}
	if err := r.Validate(); err != nil {
		return recurrence.Rule{}, err
	}
	return r, nil
}
