package handler

import (
	"net/http"
)

// handleBackupCollection takes an on-demand backup of a collection.
func (h *Handler) handleBackupCollection(w http.ResponseWriter, r *http.Request) {
	info, err := h.cfg.Backups.Backup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.BackupsTaken.Inc()
	}
	h.logger.Info("backup taken", "collection_id", info.CollectionID, "backup_id", info.ID)
	h.writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) handleListBackups(w http.ResponseWriter, r *http.Request) {
	infos, err := h.cfg.Backups.List(r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"backups": infos,
		"count":   len(infos),
	})
}

// handleRestoreCollection restores the most recent usable backup.
func (h *Handler) handleRestoreCollection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.cfg.Backups.Restore(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.Restores.Inc()
	}

	coll, err := h.cfg.Store.GetCollection(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.logger.Info("collection restored", "collection_id", id)
	h.writeJSON(w, http.StatusOK, coll)
}
