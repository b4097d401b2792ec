package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

// handleListDevices returns every known device with its derived status.
func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	records := h.cfg.Directory.GetAll()

	devices := make([]DeviceResponse, 0, len(records))
	for _, rec := range records {
		if r.URL.Query().Get("status") == "online" && h.cfg.Directory.Status(rec, now) != domain.DeviceOnline {
			continue
		}
		devices = append(devices, DeviceResponse{
			DeviceRecord: rec,
			Status:       h.cfg.Directory.Status(rec, now),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleRegisterDevice manually registers a device learned through a
// side channel instead of a broadcast announcement.
func (h *Handler) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var rec domain.DeviceRecord
	if !h.decodeBody(w, r, &rec) {
		return
	}
	if rec.ID == h.cfg.Local.ID {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1001", "cannot register the local device")
		return
	}
	if err := rec.Validate(); err != nil {
		h.handleServiceError(w, err)
		return
	}

	rec.Local = false
	if rec.LastSeen.IsZero() {
		rec.LastSeen = time.Now()
	}
	if h.cfg.Directory.Upsert(&rec) {
		h.logger.Info("device registered", "device_id", rec.ID, "name", rec.Name)
	}
	h.writeJSON(w, http.StatusOK, DeviceResponse{
		DeviceRecord: &rec,
		Status:       h.cfg.Directory.Status(&rec, time.Now()),
	})
}

func (h *Handler) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	rec, err := h.cfg.Directory.GetByID(r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DeviceResponse{
		DeviceRecord: rec,
		Status:       h.cfg.Directory.Status(rec, time.Now()),
	})
}

// handleRemoveDevice evicts a device from the presence directory. The
// device reappears on its next announcement.
func (h *Handler) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == h.cfg.Local.ID {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1001", "cannot remove the local device")
		return
	}
	if err := h.cfg.Directory.Remove(id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}
