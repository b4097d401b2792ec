package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	syncsvc "github.com/yndnr/docmesh-go/internal/sync"
)

// handleSyncMetadata serves the metadata diff input to peers. Only the
// sync-protocol metadata travels; content stays until pushed or pulled.
// Supports the modified_after and id_prefix query filters.
func (h *Handler) handleSyncMetadata(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	filter, err := syncsvc.FilterFromQuery(r.URL.Query())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	meta, err := h.cfg.Store.ListMetadata(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	docs := make(map[string]*domain.DocumentMetadata, len(meta))
	for _, m := range filter.Apply(meta) {
		docs[m.ID] = m
	}
	h.writeJSON(w, http.StatusOK, syncsvc.MetadataResponse{
		CollectionID: id,
		Documents:    docs,
	})
}

// handleSyncPush accepts documents pushed by a peer. Embeddings never
// arrive over the wire; they are regenerated locally before storing.
func (h *Handler) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req syncsvc.PushRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if _, err := h.cfg.Store.GetCollection(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	for _, doc := range req.Documents {
		if doc.ID == "" {
			h.writeError(w, http.StatusBadRequest, "DM-ARG-1002", "document id is required")
			return
		}
		if h.cfg.Embedder != nil {
			embedding, err := h.cfg.Embedder.Embed(r.Context(), doc.Content)
			if err != nil {
				h.logger.Warn("embedding regeneration failed, storing without", "document_id", doc.ID, "error", err)
			} else {
				doc.Embedding = embedding
			}
		}
		if err := h.cfg.Store.PutDocument(r.Context(), id, doc); err != nil {
			h.handleServiceError(w, err)
			return
		}
	}

	h.logger.Info("accepted pushed documents",
		"collection_id", id,
		"source_device_id", req.SourceDeviceID,
		"count", len(req.Documents))
	h.writeJSON(w, http.StatusOK, map[string]int{"accepted": len(req.Documents)})
}

// handleSyncPull serves full documents to a pulling peer. Unknown IDs
// are silently omitted; the peer treats absence as deleted-since-diff.
func (h *Handler) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req syncsvc.PullRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if _, err := h.cfg.Store.GetCollection(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	var resp syncsvc.PullResponse
	for _, docID := range req.DocumentIDs {
		doc, err := h.cfg.Store.GetDocument(r.Context(), id, docID)
		if err != nil {
			continue
		}
		resp.Documents = append(resp.Documents, doc)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleInitiateSync starts a background sync run and returns 202 with
// the pending run record.
func (h *Handler) handleInitiateSync(w http.ResponseWriter, r *http.Request) {
	var req InitiateSyncRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.CollectionID == "" || req.TargetDeviceID == "" {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1002", "collection_id and target_device_id are required")
		return
	}
	if req.Direction == "" {
		req.Direction = domain.DirectionBidirectional
	}

	run, err := h.cfg.Sync.InitiateSync(r.Context(), req.CollectionID, req.TargetDeviceID, req.Direction, req.Policy, req.Filter)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, run)
}

func (h *Handler) handleGetSyncRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.cfg.Sync.GetRun(r.Context(), r.PathValue("sync_id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// handleSyncHistory lists past runs, most recent first. Supports
// collection_id, device_id, status and limit query filters.
func (h *Handler) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := syncsvc.HistoryFilter{
		CollectionID: q.Get("collection_id"),
		DeviceID:     q.Get("device_id"),
		Status:       domain.SyncStatus(q.Get("status")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.writeError(w, http.StatusBadRequest, "DM-ARG-1001", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	runs, err := h.cfg.Sync.History(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"runs":         runs,
		"count":        len(runs),
		"generated_at": time.Now().UnixMilli(),
	})
}
