package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/storage"
)

const runKeyPrefix = "syncrun/"

// ledgerKV is the slice of the key-value engine the ledger needs.
type ledgerKV interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error
}

// Ledger persists sync runs so history survives restarts.
type Ledger struct {
	kv ledgerKV
}

// NewLedger creates a ledger over the given engine.
func NewLedger(kv ledgerKV) *Ledger {
	return &Ledger{kv: kv}
}

// Put writes a run, overwriting any previous state of the same run.
func (l *Ledger) Put(ctx context.Context, run *domain.SyncRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	if err := l.kv.Set(ctx, []byte(runKeyPrefix+run.SyncID), data); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// Get returns a run by sync ID.
func (l *Ledger) Get(ctx context.Context, syncID string) (*domain.SyncRun, error) {
	data, err := l.kv.Get(ctx, []byte(runKeyPrefix+syncID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, domain.ErrSyncRunNotFound.WithDetails(syncID)
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	var run domain.SyncRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return &run, nil
}

// HistoryFilter narrows a history query. Zero values match everything.
type HistoryFilter struct {
	CollectionID string
	DeviceID     string
	Status       domain.SyncStatus
	Limit        int
}

// History returns runs matching the filter, most recent first.
func (l *Ledger) History(ctx context.Context, filter HistoryFilter) ([]*domain.SyncRun, error) {
	var runs []*domain.SyncRun

	err := l.kv.Scan(ctx, []byte(runKeyPrefix), func(_, value []byte) bool {
		var run domain.SyncRun
		if err := json.Unmarshal(value, &run); err != nil {
			return true
		}
		if filter.CollectionID != "" && run.CollectionID != filter.CollectionID {
			return true
		}
		if filter.DeviceID != "" && run.SourceDeviceID != filter.DeviceID && run.TargetDeviceID != filter.DeviceID {
			return true
		}
		if filter.Status != "" && run.Status != filter.Status {
			return true
		}
		runs = append(runs, &run)
		return true
	})
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt > runs[j].StartedAt })

	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}
