// Package backup writes encrypted snapshots of the database to a local
// directory or an S3-compatible bucket and restores them.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ralpholazo24/turi/internal/metrics"
)

const (
	keyPrefix = "turi-"
	keySuffix = ".db.enc"
	keyTime   = "20060102T150405Z"
)

// State represents the backup manager state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastKey    string     `json:"last_key,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager takes snapshots of db, encrypts them and keeps RetentionDays
// worth in storage. The newest backup is never pruned.
type Manager struct {
	run sync.Mutex

	mu     sync.RWMutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}

	db            *sql.DB
	storage       Storage
	passphrase    string
	RetentionDays int
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

func NewManager(db *sql.DB, storage Storage, passphrase string, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		status:        Status{State: StateIdle},
		db:            db,
		storage:       storage,
		passphrase:    passphrase,
		RetentionDays: 30,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// Start runs a backup every interval until ctx is canceled or Stop is
// called. The first one runs after one interval.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Run(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) observe(result string) {
	if m.metrics != nil {
		m.metrics.Backups.WithLabelValues(result).Inc()
	}
}

// Run snapshots the database, stores the encrypted copy and prunes old
// backups. Concurrent calls run one after the other.
func (m *Manager) Run(ctx context.Context) (Object, error) {
	m.run.Lock()
	defer m.run.Unlock()

	prev := m.Status()
	m.setStatus(Status{State: StateRunning, LastBackup: prev.LastBackup, LastKey: prev.LastKey})

	obj, err := m.backup(ctx)
	if err != nil {
		m.observe("error")
		m.setStatus(Status{State: StateError, LastBackup: prev.LastBackup, LastKey: prev.LastKey, Error: err.Error()})
		return Object{}, err
	}
	m.observe("ok")
	m.setStatus(Status{State: StateIdle, LastBackup: &obj.ModTime, LastKey: obj.Key})
	m.logger.Info("backup written", "key", obj.Key, "size", obj.Size)

	if n, err := m.Prune(ctx); err != nil {
		m.logger.Warn("prune backups", "error", err)
	} else if n > 0 {
		m.logger.Info("pruned backups", "deleted", n)
	}
	return obj, nil
}

func (m *Manager) backup(ctx context.Context) (Object, error) {
	tmpDir, err := os.MkdirTemp("", "turi-backup-")
	if err != nil {
		return Object{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// VACUUM INTO gives a consistent copy without stopping writers.
	snap := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snap); err != nil {
		return Object{}, fmt.Errorf("snapshot database: %w", err)
	}
	plain, err := os.ReadFile(snap)
	if err != nil {
		return Object{}, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plain, m.passphrase)
	if err != nil {
		return Object{}, fmt.Errorf("encrypt: %w", err)
	}

	now := m.now().UTC()
	key := keyPrefix + now.Format(keyTime) + keySuffix
	if err := m.storage.Put(ctx, key, sealed); err != nil {
		return Object{}, err
	}
	return Object{Key: key, Size: int64(len(sealed)), ModTime: now}, nil
}

// List returns stored backups, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	objs, err := m.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	// Keys embed the UTC timestamp, so they sort in time order.
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key > objs[j].Key })
	return objs, nil
}

// Prune deletes backups older than RetentionDays, keeping at least the
// newest one. It returns how many were deleted.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	objs, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := m.now().AddDate(0, 0, -m.RetentionDays)
	deleted := 0
	var errs []error
	for i, o := range objs {
		if i == 0 || !o.ModTime.Before(cutoff) {
			continue
		}
		if err := m.storage.Delete(ctx, o.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// Restore decrypts the backup stored under key, checks it is a sound SQLite
// database and moves it to dst, replacing whatever is there. The server
// must not be running against dst.
func (m *Manager) Restore(ctx context.Context, key, dst string) error {
	sealed, err := m.storage.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get backup: %w", err)
	}
	plain, err := Open(sealed, m.passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(tmp)

	if err := integrityCheck(ctx, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")
	return nil
}

func integrityCheck(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
