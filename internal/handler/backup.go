package handler

import (
	"log/slog"
	"net/http"

	"github.com/ralpholazo24/turi/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

// List returns the manager status and the stored backups, newest first.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	objs, err := h.manager.List(r.Context())
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if objs == nil {
		objs = []backup.Object{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.manager.Status(),
		"backups": objs,
	})
}

// Create runs a backup now.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	obj, err := h.manager.Run(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}
