package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ralpholazo24/turi/internal/backup"
	"github.com/ralpholazo24/turi/internal/config"
	"github.com/ralpholazo24/turi/internal/display"
	"github.com/ralpholazo24/turi/internal/handler"
	"github.com/ralpholazo24/turi/internal/metrics"
	"github.com/ralpholazo24/turi/internal/middleware"
	"github.com/ralpholazo24/turi/internal/push"
	"github.com/ralpholazo24/turi/internal/store"
	ws "github.com/ralpholazo24/turi/internal/websocket"
)

// Mutations allowed per client IP per minute.
const writeLimit = 120

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	groupStore    *store.GroupStore
	groupH        *handler.GroupHandler
	taskH         *handler.TaskHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	metrics       *metrics.Metrics
	rateLimiter   *middleware.RateLimiter
	planner       *push.Planner
	pushScheduler *push.Scheduler
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, cfg config.Config, catalog *display.Catalog, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	m := metrics.New(hub.ClientCount)

	groupStore := store.NewGroupStore(db)
	taskStore := store.NewTaskStore(db)
	settingsStore := store.NewSettingsStore(db)
	activityStore := store.NewActivityStore(db)
	pushSt := store.NewPushStore(db)

	// Reminders are planned even without VAPID keys so that enabling push
	// later starts from a current plan.
	planner := push.NewPlanner(pushSt, taskStore, settingsStore, catalog)
	planner.LeadMinutes = cfg.ReminderMinutes
	planner.Locale = cfg.Locale
	if cfg.Location != nil {
		planner.Location = cfg.Location
	}

	events := handler.NewEvents(hub, planner, activityStore, m, logger.With("component", "events"), cfg.Location)

	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.PushEnabled() {
		pushSvc := push.NewService(push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subject:         cfg.VAPIDSubject,
		})
		pushSched = push.NewScheduler(pushSvc, pushSt, groupStore, planner, m, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushSt, groupStore, pushSvc, logger.With("component", "push_handler"))
	}

	backupMgr := NewBackupManager(db, cfg, m, logger.With("component", "backup"))
	var backupH *handler.BackupHandler
	if backupMgr != nil {
		backupH = handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler"))
	}

	return &Server{
		db:            db,
		hub:           hub,
		groupStore:    groupStore,
		groupH:        handler.NewGroupHandler(groupStore, taskStore, settingsStore, events, logger.With("component", "group")),
		taskH:         handler.NewTaskHandler(taskStore, groupStore, settingsStore, catalog, m, events, logger.With("component", "task")),
		pushH:         pushH,
		backupH:       backupH,
		metrics:       m,
		rateLimiter:   middleware.NewRateLimiter(),
		planner:       planner,
		pushScheduler: pushSched,
		backupManager: backupMgr,
		logger:        logger,
	}
}

// NewBackupManager builds the backup manager from cfg, or returns nil when
// backups are not configured.
func NewBackupManager(db *sql.DB, cfg config.Config, m *metrics.Metrics, logger *slog.Logger) *backup.Manager {
	if !cfg.BackupEnabled() {
		return nil
	}
	var storage backup.Storage
	if cfg.S3Bucket != "" {
		storage = backup.NewS3Storage(backup.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	} else {
		storage = backup.NewDirStorage(cfg.BackupDir)
	}
	mgr := backup.NewManager(db, storage, cfg.BackupPassphrase, m, logger)
	mgr.RetentionDays = cfg.BackupRetentionDays
	return mgr
}

// BackupManager returns the backup manager, or nil when backups are not
// configured.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushScheduler returns the reminder scheduler, or nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Planner() *push.Planner {
	return s.planner
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.groupStore))

	s.registerAPIRoutes(mux)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, writeLimit, time.Minute)
	wrapped := rl(h)
	return wrapped.ServeHTTP
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	limited := s.rateLimitedHandler

	// Groups and members
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.HandleFunc("POST /api/groups", limited(s.groupH.Create))
	mux.HandleFunc("GET /api/groups/{id}", s.groupH.Get)
	mux.HandleFunc("PUT /api/groups/{id}", limited(s.groupH.Rename))
	mux.HandleFunc("DELETE /api/groups/{id}", limited(s.groupH.Delete))
	mux.HandleFunc("POST /api/groups/{id}/members", limited(s.groupH.AddMember))
	mux.HandleFunc("PUT /api/members/{id}", limited(s.groupH.UpdateMember))
	mux.HandleFunc("DELETE /api/members/{id}", limited(s.groupH.RemoveMember))
	mux.HandleFunc("GET /api/groups/{id}/settings", s.groupH.GetSettings)
	mux.HandleFunc("PUT /api/groups/{id}/settings", limited(s.groupH.UpdateSettings))
	mux.HandleFunc("GET /api/groups/{id}/activity", s.groupH.Activity)

	// Tasks
	mux.HandleFunc("GET /api/groups/{id}/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/groups/{id}/tasks", limited(s.taskH.Create))
	mux.HandleFunc("GET /api/groups/{id}/schedule", s.taskH.Schedule)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", limited(s.taskH.Update))
	mux.HandleFunc("PUT /api/tasks/{id}/members", limited(s.taskH.SetMembers))
	mux.HandleFunc("DELETE /api/tasks/{id}", limited(s.taskH.Delete))
	mux.HandleFunc("POST /api/tasks/{id}/done", limited(s.taskH.Done))
	mux.HandleFunc("POST /api/tasks/{id}/skip", limited(s.taskH.Skip))
	mux.HandleFunc("GET /api/tasks/{id}/upcoming", s.taskH.Upcoming)

	// Push notification routes (only when VAPID keys are configured)
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/groups/{id}/push/subscribe", limited(s.pushH.Subscribe))
		mux.HandleFunc("GET /api/groups/{id}/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/groups/{id}/push/subscriptions/{sub}", limited(s.pushH.Unsubscribe))
		mux.HandleFunc("POST /api/groups/{id}/push/test", limited(s.pushH.TestNotification))
	}

	if s.backupH != nil {
		mux.HandleFunc("GET /api/backups", s.backupH.List)
		mux.HandleFunc("POST /api/backups", limited(s.backupH.Create))
	}
}
