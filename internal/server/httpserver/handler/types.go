package handler

import (
	"github.com/yndnr/docmesh-go/internal/core/domain"
	syncsvc "github.com/yndnr/docmesh-go/internal/sync"
)

// DeviceResponse is a device record with its derived presence status.
type DeviceResponse struct {
	*domain.DeviceRecord
	Status domain.DeviceStatus `json:"status"`
}

// CreateCollectionRequest is the body of POST /collections.
type CreateCollectionRequest struct {
	ID          string                      `json:"id"`
	Name        string                      `json:"name"`
	Description string                      `json:"description,omitempty"`
	Visibility  domain.CollectionVisibility `json:"visibility,omitempty"`
	Attributes  map[string]string           `json:"attributes,omitempty"`
}

// RenameCollectionRequest is the body of POST /collections/{id}/rename.
type RenameCollectionRequest struct {
	Name string `json:"name"`
}

// SetVisibilityRequest is the body of POST /collections/{id}/visibility.
type SetVisibilityRequest struct {
	Visibility domain.CollectionVisibility `json:"visibility"`
}

// CollectionResponse is a collection with its document count.
type CollectionResponse struct {
	*domain.Collection
	DocumentCount int `json:"document_count"`
}

// InitiateSyncRequest is the body of POST /sync.
type InitiateSyncRequest struct {
	CollectionID   string                  `json:"collection_id"`
	TargetDeviceID string                  `json:"target_device_id"`
	Direction      domain.SyncDirection    `json:"direction"`
	Policy         domain.ResolutionPolicy `json:"conflict_resolution,omitempty"`
	Filter         syncsvc.Filter          `json:"filter"`
}
