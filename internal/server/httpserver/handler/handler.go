// Package handler provides HTTP request handlers for DocMesh.
//
// It implements the device API: presence queries, collection and
// document management, the peer-facing sync protocol endpoints and
// sync run management.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/discovery"
	"github.com/yndnr/docmesh-go/internal/storage"
	"github.com/yndnr/docmesh-go/internal/storage/backup"
	syncsvc "github.com/yndnr/docmesh-go/internal/sync"
	"github.com/yndnr/docmesh-go/internal/telemetry/logger"
	"github.com/yndnr/docmesh-go/internal/telemetry/metric"
)

// Config carries the dependencies of the handler.
type Config struct {
	Local     *domain.DeviceRecord
	Store     storage.CollectionStore
	Directory *discovery.Directory
	Sync      *syncsvc.Service
	Backups   *backup.Manager
	Embedder  syncsvc.Embedder
	Logger    logger.Logger
	Metrics   *metric.Registry
}

// Handler routes requests to the appropriate handlers.
type Handler struct {
	cfg    Config
	logger logger.Logger
	mux    *http.ServeMux
}

// New creates a new Handler with the given dependencies.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	h := &Handler{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "http"),
		mux:    http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	// Health endpoints
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	h.mux.HandleFunc("GET /version", h.handleVersion)

	// Presence endpoints
	h.mux.HandleFunc("GET /devices", h.handleListDevices)
	h.mux.HandleFunc("POST /devices", h.handleRegisterDevice)
	h.mux.HandleFunc("GET /devices/{id}", h.handleGetDevice)
	h.mux.HandleFunc("DELETE /devices/{id}", h.handleRemoveDevice)

	// Collection management
	h.mux.HandleFunc("POST /collections", h.handleCreateCollection)
	h.mux.HandleFunc("GET /collections", h.handleListCollections)
	h.mux.HandleFunc("GET /collections/{id}", h.handleGetCollection)
	h.mux.HandleFunc("POST /collections/{id}/rename", h.handleRenameCollection)
	h.mux.HandleFunc("POST /collections/{id}/visibility", h.handleSetVisibility)
	h.mux.HandleFunc("DELETE /collections/{id}", h.handleDeleteCollection)

	// Document management
	h.mux.HandleFunc("POST /collections/{id}/documents", h.handlePutDocument)
	h.mux.HandleFunc("GET /collections/{id}/documents", h.handleListDocuments)
	h.mux.HandleFunc("GET /collections/{id}/documents/{doc_id}", h.handleGetDocument)
	h.mux.HandleFunc("DELETE /collections/{id}/documents/{doc_id}", h.handleDeleteDocument)

	// Backup endpoints
	h.mux.HandleFunc("POST /collections/{id}/backups", h.handleBackupCollection)
	h.mux.HandleFunc("GET /collections/{id}/backups", h.handleListBackups)
	h.mux.HandleFunc("POST /collections/{id}/restore", h.handleRestoreCollection)

	// Peer-facing sync protocol
	h.mux.HandleFunc("GET /collections/{id}/sync/metadata", h.handleSyncMetadata)
	h.mux.HandleFunc("POST /collections/{id}/sync/push", h.handleSyncPush)
	h.mux.HandleFunc("POST /collections/{id}/sync/pull", h.handleSyncPull)

	// Sync run management
	h.mux.HandleFunc("POST /sync", h.handleInitiateSync)
	h.mux.HandleFunc("GET /sync/runs/{sync_id}", h.handleGetSyncRun)
	h.mux.HandleFunc("GET /sync/history", h.handleSyncHistory)

	if h.cfg.Metrics != nil {
		h.mux.Handle("GET /metrics", h.cfg.Metrics.Handler())
	}
}

// writeJSON writes a JSON response body.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes the error envelope shared with PeerClient.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)

	var envelope syncsvc.ErrorResponse
	envelope.Error.Code = code
	envelope.Error.Message = message
	_ = json.NewEncoder(w).Encode(envelope)
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		h.writeError(w, errorCodeToHTTPStatus(code), code, err.Error())
		return
	}

	h.logger.Error("internal error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "DM-SYS-5000", "internal server error")
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5020"):
		return http.StatusBadGateway
	case strings.HasPrefix(code, "DM-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into dst.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "DM-ARG-1001", "invalid request body: "+err.Error())
		return false
	}
	return true
}
