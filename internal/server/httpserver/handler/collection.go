package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

func (h *Handler) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1002", "id and name are required")
		return
	}
	if req.Visibility == "" {
		req.Visibility = domain.VisibilityPrivate
	}
	if !req.Visibility.Valid() {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1001", "unknown visibility: "+string(req.Visibility))
		return
	}

	coll := &domain.Collection{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
		Attributes:  req.Attributes,
	}
	if err := h.cfg.Store.CreateCollection(r.Context(), coll); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("collection created", "collection_id", coll.ID, "name", coll.Name)
	h.writeJSON(w, http.StatusCreated, coll)
}

func (h *Handler) handleListCollections(w http.ResponseWriter, r *http.Request) {
	colls, err := h.cfg.Store.ListCollections(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	out := make([]CollectionResponse, 0, len(colls))
	for _, c := range colls {
		meta, err := h.cfg.Store.ListMetadata(r.Context(), c.ID)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		out = append(out, CollectionResponse{Collection: c, DocumentCount: len(meta)})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"collections": out,
		"count":       len(out),
	})
}

func (h *Handler) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	coll, err := h.cfg.Store.GetCollection(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	meta, err := h.cfg.Store.ListMetadata(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CollectionResponse{Collection: coll, DocumentCount: len(meta)})
}

// handleRenameCollection renames under rollback protection: a failed
// rename restores the pre-mutation snapshot.
func (h *Handler) handleRenameCollection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req RenameCollectionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1002", "name is required")
		return
	}

	err := h.cfg.Backups.RunWithRollback(r.Context(), id, func(ctx context.Context) error {
		return h.cfg.Store.RenameCollection(ctx, id, req.Name)
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	coll, err := h.cfg.Store.GetCollection(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.logger.Info("collection renamed", "collection_id", id, "name", req.Name)
	h.writeJSON(w, http.StatusOK, coll)
}

func (h *Handler) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req SetVisibilityRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if !req.Visibility.Valid() {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1001", "unknown visibility: "+string(req.Visibility))
		return
	}

	err := h.cfg.Backups.RunWithRollback(r.Context(), id, func(ctx context.Context) error {
		return h.cfg.Store.SetCollectionVisibility(ctx, id, req.Visibility)
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	coll, err := h.cfg.Store.GetCollection(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, coll)
}

func (h *Handler) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// A backup is taken first so an accidental delete can be restored.
	if _, err := h.cfg.Backups.Backup(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	if err := h.cfg.Store.DeleteCollection(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("collection deleted", "collection_id", id)
	h.writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var doc domain.Document
	if !h.decodeBody(w, r, &doc) {
		return
	}
	if doc.ID == "" {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1002", "document id is required")
		return
	}

	now := time.Now().UnixMilli()
	if doc.ModifiedAt == 0 {
		doc.ModifiedAt = now
	}
	if doc.AddedAt == 0 {
		doc.AddedAt = now
	}
	if h.cfg.Embedder != nil {
		embedding, err := h.cfg.Embedder.Embed(r.Context(), doc.Content)
		if err != nil {
			h.logger.Warn("embedding generation failed, storing without", "document_id", doc.ID, "error", err)
		} else {
			doc.Embedding = embedding
		}
	}

	if err := h.cfg.Store.PutDocument(r.Context(), id, &doc); err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc.Metadata())
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	meta, err := h.cfg.Store.ListMetadata(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": meta,
		"count":     len(meta),
	})
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.cfg.Store.GetDocument(r.Context(), r.PathValue("id"), r.PathValue("doc_id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.cfg.Store.DeleteDocument(r.Context(), r.PathValue("id"), r.PathValue("doc_id")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}
