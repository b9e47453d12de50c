package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ralpholazo24/turi/internal/metrics"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/store"
)

// Scheduler sends reminders whose fire time has come and periodically
// re-plans every group so that period boundaries roll forward.
type Scheduler struct {
	mu       sync.RWMutex
	sender   Sender
	push     *store.PushStore
	groups   *store.GroupStore
	planner  *Planner
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
	replan   time.Duration
	now      func() time.Time
	lastPlan time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(sender Sender, ps *store.PushStore, gs *store.GroupStore, planner *Planner, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender:   sender,
		push:     ps,
		groups:   gs,
		planner:  planner,
		metrics:  m,
		logger:   logger,
		interval: 60 * time.Second,
		replan:   time.Hour,
		now:      time.Now,
	}
}

// Start runs one pass immediately, then one per interval until ctx is
// canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the current pass to finish.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs one pass. Delivery goes first: re-planning drops reminders
// whose fire time has passed.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	if s.metrics != nil {
		s.metrics.SchedulerTicks.Inc()
	}

	s.SendDue(ctx, now)
	if s.lastPlan.IsZero() || now.Sub(s.lastPlan) >= s.replan {
		s.ReplanAll(ctx, now)
		s.lastPlan = now
	}
}

// ReplanAll re-plans reminders for every group. Failures are logged per
// group and do not stop the pass.
func (s *Scheduler) ReplanAll(ctx context.Context, now time.Time) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		s.logger.Error("list groups", "error", err)
		return
	}
	for _, g := range groups {
		sum, err := s.planner.Replan(ctx, g.ID, now)
		if s.metrics != nil {
			s.metrics.ObserveReschedule(sum.Scheduled, sum.Suppressed)
		}
		if err != nil {
			s.logger.Error("replan reminders", "group_id", g.ID, "failed", sum.Failed, "error", err)
			continue
		}
		s.logger.Debug("replanned reminders", "group_id", g.ID,
			"scheduled", sum.Scheduled, "suppressed", sum.Suppressed)
	}
}

// SendDue delivers every unsent reminder whose fire time is at or before
// now to all of its group's devices, then marks it sent.
func (s *Scheduler) SendDue(ctx context.Context, now time.Time) int {
	due, err := s.push.DueReminders(ctx, now)
	if err != nil {
		s.logger.Error("list due reminders", "error", err)
		return 0
	}

	sent := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return sent
		}
		subs, err := s.push.ListByGroup(ctx, r.GroupID)
		if err != nil {
			s.logger.Error("list subscriptions", "group_id", r.GroupID, "error", err)
			continue
		}

		payload := Payload{
			Title: r.Title,
			Body:  r.Body,
			URL:   "/groups/" + r.GroupID,
			Tag:   "task-" + r.TaskID,
		}
		for i := range subs {
			s.deliver(ctx, &subs[i], payload)
		}

		if err := s.push.MarkSent(ctx, r.TaskID, now); err != nil {
			s.logger.Error("mark reminder sent", "task_id", r.TaskID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (s *Scheduler) deliver(ctx context.Context, sub *model.PushSubscription, p Payload) {
	err := s.sender.Send(ctx, sub, p)
	result := "ok"
	switch {
	case errors.Is(err, ErrExpired):
		result = "expired"
		if derr := s.push.DeleteByEndpoint(ctx, sub.Endpoint); derr != nil {
			s.logger.Error("delete expired subscription", "endpoint", sub.Endpoint, "error", derr)
		}
	case err != nil:
		result = "error"
		s.logger.Warn("send push", "subscription_id", sub.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.PushSent.WithLabelValues(result).Inc()
	}
}
