package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/compostdash/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": h.manager.Status()}
	if h.manager.Enabled() {
		list, err := h.manager.List(r.Context(), 20)
		if err != nil {
			h.logger.Error("list backups", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list backups.")
			return
		}
		resp["backups"] = list
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BackupHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.RunNow(r.Context())
	if errors.Is(err, backup.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "Backups are not configured.")
		return
	}
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "Backup failed.")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}
