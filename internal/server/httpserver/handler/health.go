package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/docmesh-go/internal/infra/buildinfo"
)

// handleHealth responds to liveness checks.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"device_id": h.cfg.Local.ID,
		"time":      time.Now().UnixMilli(),
	})
}

// handleReady responds to readiness checks. The server is ready once the
// store answers; discovery may still be warming up.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.cfg.Store.ListCollections(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "DM-SYS-5001", "store not ready")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, buildinfo.Get())
}
