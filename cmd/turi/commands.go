package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ralpholazo24/turi/internal/backup"
	"github.com/ralpholazo24/turi/internal/config"
	"github.com/ralpholazo24/turi/internal/database"
	"github.com/ralpholazo24/turi/internal/display"
	"github.com/ralpholazo24/turi/internal/importer"
	"github.com/ralpholazo24/turi/internal/logging"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/push"
	"github.com/ralpholazo24/turi/internal/rotation"
	"github.com/ralpholazo24/turi/internal/server"
	"github.com/ralpholazo24/turi/internal/store"
)

// Globals is passed to every command's Run.
type Globals struct {
	EnvFile string
}

// setup loads configuration, installs the default logger and opens the
// database. The caller closes the database.
func (g *Globals) setup() (config.Config, *slog.Logger, *sql.DB, error) {
	cfg, err := config.Load(g.EnvFile)
	if err != nil {
		return cfg, nil, nil, err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return cfg, logger, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, logger, db, nil
}

type ServeCmd struct{}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, logger, db, err := g.setup()
	if err != nil {
		return err
	}
	defer db.Close()

	catalog, err := display.NewCatalog()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(db, cfg, catalog, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go srv.RateLimiter().Run(ctx, 10*time.Minute)

	if mgr := srv.BackupManager(); mgr != nil && cfg.BackupInterval > 0 {
		mgr.Start(ctx, cfg.BackupInterval)
		defer mgr.Stop()
		logger.Info("scheduled backups enabled", "interval", cfg.BackupInterval)
	}

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
		logger.Info("push reminders enabled", "lead_minutes", cfg.ReminderMinutes)
	} else {
		logger.Warn("push reminders disabled, set TURI_VAPID_PUBLIC_KEY and TURI_VAPID_PRIVATE_KEY to enable")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("turi running", "addr", "http://localhost:"+cfg.Port, "timezone", cfg.Location.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type ImportCmd struct {
	File string `arg:"" help:"Exported JSON file." type:"existingfile"`
}

func (c *ImportCmd) Run(g *Globals) error {
	_, logger, db, err := g.setup()
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	blob, err := importer.Decode(f)
	if err != nil {
		return err
	}

	im := importer.New(store.NewGroupStore(db), store.NewTaskStore(db), store.NewActivityStore(db))
	rep, err := im.Import(context.Background(), blob)
	if err != nil {
		return err
	}

	logger.Info("import finished",
		"groups", rep.Groups,
		"members", rep.Members,
		"tasks", rep.Tasks,
		"completions", rep.Completions,
		"skips", rep.Skips,
	)
	for _, name := range rep.Skipped {
		fmt.Printf("skipped %s: schedule could not be converted\n", name)
	}
	return nil
}

type DueCmd struct {
	Group string `help:"Only this group ID."`
	Lang  string `help:"Language for labels (defaults to the group or server locale)."`
}

func (c *DueCmd) Run(g *Globals) error {
	cfg, _, db, err := g.setup()
	if err != nil {
		return err
	}
	defer db.Close()

	catalog, err := display.NewCatalog()
	if err != nil {
		return err
	}
	ctx := context.Background()
	groups := store.NewGroupStore(db)
	tasks := store.NewTaskStore(db)
	settings := store.NewSettingsStore(db)

	var ids []string
	if c.Group != "" {
		ids = []string{c.Group}
	} else {
		all, err := groups.List(ctx)
		if err != nil {
			return err
		}
		for _, gr := range all {
			ids = append(ids, gr.ID)
		}
	}

	now := time.Now().In(cfg.Location)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tTASK\tASSIGNEE\tREPEAT\tDUE\tSTATUS")
	for _, id := range ids {
		gr, err := tasks.Load(ctx, id)
		if err != nil {
			return err
		}
		if gr == nil {
			return fmt.Errorf("group %s not found", id)
		}

		prefs := []string{c.Lang}
		if locale, ok, err := settings.Get(ctx, id, model.SettingLocale); err == nil && ok {
			prefs = append(prefs, locale)
		}
		tr := catalog.For(append(prefs, cfg.Locale)...)

		for _, t := range gr.Tasks {
			info := display.FormatScheduleInfo(t, now, tr)
			assignee := "-"
			if mid, ok := rotation.CurrentAssignee(t); ok {
				if m := gr.Member(mid); m != nil {
					assignee = m.Name
				}
			}
			due := info.DueDateLabel
			if info.DueDate != nil {
				due += " " + info.TimeLabel
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", gr.Name, t.Name, assignee, info.RepeatLabel, due, info.Status)
		}
	}
	return tw.Flush()
}

type VapidCmd struct{}

func (c *VapidCmd) Run(g *Globals) error {
	public, private, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Printf("TURI_VAPID_PUBLIC_KEY=%s\n", public)
	fmt.Printf("TURI_VAPID_PRIVATE_KEY=%s\n", private)
	return nil
}

// backupManager builds the manager from configuration. Only creating a
// backup needs the database, so db is nil unless withDB is set.
func (g *Globals) backupManager(withDB bool) (cfg config.Config, db *sql.DB, mgr *backup.Manager, err error) {
	cfg, err = config.Load(g.EnvFile)
	if err != nil {
		return cfg, nil, nil, err
	}
	if !cfg.BackupEnabled() {
		return cfg, nil, nil, errors.New("backups are not configured, set TURI_BACKUP_PASSPHRASE and TURI_BACKUP_DIR or TURI_S3_BUCKET")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if withDB {
		if db, err = database.Open(cfg.DBPath); err != nil {
			return cfg, nil, nil, fmt.Errorf("open database: %w", err)
		}
	}
	return cfg, db, server.NewBackupManager(db, cfg, nil, logger.With("component", "backup")), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(g *Globals) error {
	_, db, mgr, err := g.backupManager(true)
	if err != nil {
		return err
	}
	defer db.Close()

	obj, err := mgr.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(obj.Key)
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(g *Globals) error {
	_, _, mgr, err := g.backupManager(false)
	if err != nil {
		return err
	}

	objs, err := mgr.List(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
	for _, o := range objs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.ModTime.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

type BackupRestoreCmd struct {
	Key   string `arg:"" help:"Backup key as shown by 'backup list'."`
	To    string `help:"Database file to write (defaults to TURI_DB_PATH)." type:"path"`
	Force bool   `help:"Overwrite an existing database file."`
}

func (c *BackupRestoreCmd) Run(g *Globals) error {
	cfg, _, mgr, err := g.backupManager(false)
	if err != nil {
		return err
	}

	dst := c.To
	if dst == "" {
		dst = cfg.DBPath
	}
	if _, err := os.Stat(dst); err == nil && !c.Force {
		return fmt.Errorf("%s exists, stop the server and pass --force to replace it", dst)
	}
	if err := mgr.Restore(context.Background(), c.Key, dst); err != nil {
		return err
	}
	fmt.Printf("restored %s to %s\n", c.Key, dst)
	return nil
}
