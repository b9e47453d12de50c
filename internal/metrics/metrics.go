// Package metrics holds the Prometheus collectors for rotation and reminder
// activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is registered against its own registry so tests can create as
// many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Completions         prometheus.Counter
	Skips               prometheus.Counter
	RotationConflicts   prometheus.Counter
	RemindersScheduled  prometheus.Counter
	RemindersSuppressed prometheus.Counter
	PushSent            *prometheus.CounterVec
	SchedulerTicks      prometheus.Counter
	Backups             *prometheus.CounterVec
	WebsocketClients    prometheus.GaugeFunc
}

func New(clients func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turi",
			Name:      "task_completions_total",
			Help:      "Tasks marked done.",
		}),
		Skips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turi",
			Name:      "task_skips_total",
			Help:      "Turns skipped.",
		}),
		RotationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turi",
			Name:      "rotation_conflicts_total",
			Help:      "Done or skip requests rejected because the turn had already moved.",
		}),
		RemindersScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turi",
			Name:      "reminders_scheduled_total",
			Help:      "Reminders planned.",
		}),
		RemindersSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turi",
			Name:      "reminders_suppressed_total",
			Help:      "Reminders not planned because the task was already done or unschedulable.",
		}),
		PushSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turi",
			Name:      "push_sent_total",
			Help:      "Web push deliveries by result.",
		}, []string{"result"}),
		SchedulerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turi",
			Name:      "scheduler_ticks_total",
			Help:      "Reminder scheduler loop iterations.",
		}),
		Backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turi",
			Name:      "backups_total",
			Help:      "Database backups by result.",
		}, []string{"result"}),
	}
	if clients == nil {
		clients = func() int { return 0 }
	}
	m.WebsocketClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "turi",
		Name:      "websocket_clients",
		Help:      "Connected live-update clients.",
	}, func() float64 { return float64(clients()) })

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Completions,
		m.Skips,
		m.RotationConflicts,
		m.RemindersScheduled,
		m.RemindersSuppressed,
		m.PushSent,
		m.SchedulerTicks,
		m.Backups,
		m.WebsocketClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReschedule adds the outcome of a reminder planning pass.
func (m *Metrics) ObserveReschedule(scheduled, suppressed int) {
	m.RemindersScheduled.Add(float64(scheduled))
	m.RemindersSuppressed.Add(float64(suppressed))
}
