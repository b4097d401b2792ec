package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SyncDirection selects which transfer phases a sync run executes.
type SyncDirection string

// Sync directions.
const (
	DirectionPush          SyncDirection = "push"
	DirectionPull          SyncDirection = "pull"
	DirectionBidirectional SyncDirection = "bidirectional"
)

// Valid reports whether the direction is one of the known values.
func (d SyncDirection) Valid() bool {
	switch d {
	case DirectionPush, DirectionPull, DirectionBidirectional:
		return true
	}
	return false
}

// Push reports whether the direction includes the push phase.
func (d SyncDirection) Push() bool {
	return d == DirectionPush || d == DirectionBidirectional
}

// Pull reports whether the direction includes the pull phase.
func (d SyncDirection) Pull() bool {
	return d == DirectionPull || d == DirectionBidirectional
}

// SyncStatus is the lifecycle state of a sync run.
type SyncStatus string

// Sync run statuses. Transitions are monotonic:
// pending -> in_progress -> {completed|failed}. Terminal runs are
// immutable and kept in the ledger for history.
const (
	SyncPending    SyncStatus = "pending"
	SyncInProgress SyncStatus = "in_progress"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
)

// Terminal reports whether the status is final.
func (s SyncStatus) Terminal() bool {
	return s == SyncCompleted || s == SyncFailed
}

// CanTransition reports whether the status may move to next.
func (s SyncStatus) CanTransition(next SyncStatus) bool {
	switch s {
	case SyncPending:
		return next == SyncInProgress || next == SyncFailed
	case SyncInProgress:
		return next == SyncCompleted || next == SyncFailed
	}
	return false
}

// SyncRun is one execution record of the synchronization protocol
// between two devices for one collection.
type SyncRun struct {
	// SyncID is content-derived from the collection, both device IDs
	// and the start timestamp. Format: sync-{16 hex chars}.
	SyncID string `json:"sync_id"`

	CollectionID   string        `json:"collection_id"`
	SourceDeviceID string        `json:"source_device_id"`
	TargetDeviceID string        `json:"target_device_id"`
	Direction      SyncDirection `json:"direction"`
	Status         SyncStatus    `json:"status"`

	// DocumentsSynced counts documents actually transferred. On a failed
	// run this retains the partial progress already committed.
	DocumentsSynced int `json:"documents_synced"`

	// ConflictsCount counts conflicts detected during the diff.
	ConflictsCount int `json:"conflicts_count"`

	// StartedAt / CompletedAt are Unix milliseconds. CompletedAt is zero
	// until the run reaches a terminal status.
	StartedAt   int64 `json:"started_at"`
	CompletedAt int64 `json:"completed_at,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewSyncRun creates a pending run with a content-derived sync ID.
func NewSyncRun(collectionID, sourceDeviceID, targetDeviceID string, direction SyncDirection) (*SyncRun, error) {
	if collectionID == "" || sourceDeviceID == "" || targetDeviceID == "" {
		return nil, ErrMissingArgument.WithDetails("collection and device ids are required")
	}
	if !direction.Valid() {
		return nil, ErrInvalidDirection.WithDetails(string(direction))
	}

	now := time.Now()
	return &SyncRun{
		SyncID:         deriveSyncID(collectionID, sourceDeviceID, targetDeviceID, now),
		CollectionID:   collectionID,
		SourceDeviceID: sourceDeviceID,
		TargetDeviceID: targetDeviceID,
		Direction:      direction,
		Status:         SyncPending,
		StartedAt:      now.UnixMilli(),
	}, nil
}

func deriveSyncID(collectionID, sourceID, targetID string, t time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", collectionID, sourceID, targetID, t.UnixNano())))
	return "sync-" + hex.EncodeToString(sum[:])[:16]
}

// Start transitions the run to in_progress.
func (r *SyncRun) Start() error {
	return r.transition(SyncInProgress)
}

// Complete transitions the run to completed with final counts.
func (r *SyncRun) Complete(documentsSynced, conflicts int) error {
	if err := r.transition(SyncCompleted); err != nil {
		return err
	}
	r.DocumentsSynced = documentsSynced
	r.ConflictsCount = conflicts
	r.CompletedAt = time.Now().UnixMilli()
	return nil
}

// Fail transitions the run to failed, capturing the causing message.
// The partial DocumentsSynced count already recorded is retained.
func (r *SyncRun) Fail(message string) error {
	if err := r.transition(SyncFailed); err != nil {
		return err
	}
	r.ErrorMessage = message
	r.CompletedAt = time.Now().UnixMilli()
	return nil
}

func (r *SyncRun) transition(next SyncStatus) error {
	if r.Status.Terminal() {
		return ErrSyncRunTerminal.WithDetails(fmt.Sprintf("%s -> %s", r.Status, next))
	}
	if !r.Status.CanTransition(next) {
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("illegal transition %s -> %s", r.Status, next))
	}
	r.Status = next
	return nil
}

// Clone returns a copy of the run.
func (r *SyncRun) Clone() *SyncRun {
	clone := *r
	return &clone
}
