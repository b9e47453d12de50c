package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ralpholazo24/turi/internal/metrics"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/reminder"
	"github.com/ralpholazo24/turi/internal/store"
	"github.com/ralpholazo24/turi/internal/websocket"
)

// Replanner re-plans reminders after a change. push.Planner implements it.
type Replanner interface {
	Replan(ctx context.Context, groupID string, now time.Time) (reminder.Summary, error)
	ReplanTask(ctx context.Context, groupID, taskID string, now time.Time) (bool, error)
}

// Events fans a change out to live clients, the reminder planner and the
// activity log. Any of hub, planner and metrics may be nil. Failures here
// are logged and never fail the request that caused them.
type Events struct {
	hub      *websocket.Hub
	planner  Replanner
	activity *store.ActivityStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewEvents(hub *websocket.Hub, planner Replanner, activity *store.ActivityStore, m *metrics.Metrics, logger *slog.Logger, loc *time.Location) *Events {
	if loc == nil {
		loc = time.Local
	}
	return &Events{
		hub:      hub,
		planner:  planner,
		activity: activity,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().In(loc) },
	}
}

func (e *Events) broadcast(groupID, entity, action, id string, extra map[string]any) {
	if e.hub != nil {
		e.hub.Broadcast(websocket.NewMessage(groupID, entity, action, id, extra))
	}
}

func (e *Events) record(ctx context.Context, entry model.ActivityEntry) {
	if _, err := e.activity.Append(ctx, entry); err != nil {
		e.logger.Error("append activity", "group_id", entry.GroupID, "kind", entry.Kind, "error", err)
	}
}

func (e *Events) replanTask(ctx context.Context, groupID, taskID string) {
	if e.planner == nil {
		return
	}
	scheduled, err := e.planner.ReplanTask(ctx, groupID, taskID, e.now())
	if err != nil {
		e.logger.Error("replan task reminder", "task_id", taskID, "error", err)
		return
	}
	if e.metrics != nil {
		if scheduled {
			e.metrics.ObserveReschedule(1, 0)
		} else {
			e.metrics.ObserveReschedule(0, 1)
		}
	}
}

func (e *Events) replanGroup(ctx context.Context, groupID string) {
	if e.planner == nil {
		return
	}
	sum, err := e.planner.Replan(ctx, groupID, e.now())
	if e.metrics != nil {
		e.metrics.ObserveReschedule(sum.Scheduled, sum.Suppressed)
	}
	if err != nil {
		e.logger.Error("replan group reminders", "group_id", groupID, "error", err)
	}
}
