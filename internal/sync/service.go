package sync

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/discovery"
	"github.com/yndnr/docmesh-go/internal/storage"
	"github.com/yndnr/docmesh-go/internal/telemetry/logger"
	"github.com/yndnr/docmesh-go/internal/telemetry/metric"
)

// Embedder regenerates embedding vectors for pulled documents.
// Embeddings never travel between peers; each side computes its own.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// Config configures the sync service.
type Config struct {
	Store     storage.CollectionStore
	Ledger    *Ledger
	Directory *discovery.Directory
	Client    *PeerClient

	// LocalDeviceID identifies this device in sync runs.
	LocalDeviceID string

	// BatchSize is the number of documents per push or pull request.
	BatchSize int

	// ConflictWindow is the timestamp proximity within which differing
	// documents conflict.
	ConflictWindow time.Duration

	// Policy is the default conflict resolution policy; AskFallback is
	// applied when the effective policy is ask.
	Policy      domain.ResolutionPolicy
	AskFallback domain.ResolutionPolicy

	// RateLimitBatches caps batch requests per second. Zero disables.
	RateLimitBatches int

	// HistoryLimit is the default history page size.
	HistoryLimit int

	Embedder Embedder
	Logger   logger.Logger
	Metrics  *metric.Registry
}

// Service orchestrates knowledge-base synchronization runs.
type Service struct {
	cfg     Config
	logger  logger.Logger
	metrics *metric.Registry

	wg sync.WaitGroup
}

// NewService creates a sync service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Policy == "" {
		cfg.Policy = domain.PolicyKeepLatest
	}
	if cfg.AskFallback == "" {
		cfg.AskFallback = domain.PolicyKeepLocal
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &Service{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "sync"),
		metrics: cfg.Metrics,
	}
}

// InitiateSync starts a sync run against a peer and returns immediately
// with the pending run; the transfer proceeds in the background. An
// empty policy uses the configured default; a zero filter syncs the
// whole collection.
//
// Concurrent runs against the same collection and peer are not fenced;
// the protocol is idempotent enough that the second run converges on
// the first one's result.
func (s *Service) InitiateSync(ctx context.Context, collectionID, targetDeviceID string, direction domain.SyncDirection, policy domain.ResolutionPolicy, filter Filter) (*domain.SyncRun, error) {
	if policy == "" {
		policy = s.cfg.Policy
	}
	if !policy.Valid() {
		return nil, domain.ErrInvalidResolution.WithDetails(string(policy))
	}

	if _, err := s.cfg.Store.GetCollection(ctx, collectionID); err != nil {
		return nil, err
	}
	peer, err := s.cfg.Directory.GetByID(targetDeviceID)
	if err != nil {
		return nil, err
	}

	run, err := domain.NewSyncRun(collectionID, s.cfg.LocalDeviceID, targetDeviceID, direction)
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Ledger.Put(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("sync run initiated",
		"sync_id", run.SyncID,
		"collection_id", collectionID,
		"target_device_id", targetDeviceID,
		"direction", direction)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The run outlives the initiating request.
		s.executeRun(context.WithoutCancel(ctx), run, peer, policy, filter)
	}()

	return run.Clone(), nil
}

// GetRun returns a run by sync ID.
func (s *Service) GetRun(ctx context.Context, syncID string) (*domain.SyncRun, error) {
	return s.cfg.Ledger.Get(ctx, syncID)
}

// History returns past runs, most recent first. A zero limit uses the
// configured default.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]*domain.SyncRun, error) {
	if filter.Limit <= 0 {
		filter.Limit = s.cfg.HistoryLimit
	}
	return s.cfg.Ledger.History(ctx, filter)
}

// Wait blocks until all in-flight runs finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) executeRun(ctx context.Context, run *domain.SyncRun, peer *domain.DeviceRecord, policy domain.ResolutionPolicy, filter Filter) {
	started := time.Now()
	log := s.logger.With("sync_id", run.SyncID, "collection_id", run.CollectionID)

	synced := 0
	fail := func(err error) {
		run.DocumentsSynced = synced // partial progress is kept
		if ferr := run.Fail(err.Error()); ferr != nil {
			log.Error("failed to mark run failed", "error", ferr)
		}
		if perr := s.cfg.Ledger.Put(ctx, run); perr != nil {
			log.Error("failed to persist failed run", "error", perr)
		}
		s.observeRun(run, started)
		log.Warn("sync run failed", "error", err, "documents_synced", synced)
	}

	if err := run.Start(); err != nil {
		log.Error("illegal run state", "error", err)
		return
	}
	if err := s.cfg.Ledger.Put(ctx, run); err != nil {
		log.Error("failed to persist run", "error", err)
	}

	remoteMeta, err := s.cfg.Client.GetMetadata(ctx, peer, run.CollectionID, filter)
	if err != nil {
		fail(err)
		return
	}
	localMeta, err := s.cfg.Store.ListMetadata(ctx, run.CollectionID)
	if err != nil {
		fail(err)
		return
	}
	// Both sides see the same subset or the diff would misread
	// out-of-filter local documents as missing remotely.
	localMeta = filter.Apply(localMeta)

	diff := ComputeDiff(localMeta, remoteMeta, s.cfg.ConflictWindow)
	run.ConflictsCount = len(diff.Conflicts)
	if s.metrics != nil {
		s.metrics.SyncConflicts.Add(float64(len(diff.Conflicts)))
	}

	resolved, err := Resolve(diff.Conflicts, policy, s.cfg.AskFallback)
	if err != nil {
		fail(err)
		return
	}
	conflictPush, conflictPull := Partition(resolved)

	// Direction gates which phases run; conflict decisions that need the
	// other phase are simply not acted on in a one-way run.
	var pushIDs, pullIDs []string
	if run.Direction.Push() {
		pushIDs = append(append([]string{}, diff.ToPush...), conflictPush...)
	}
	if run.Direction.Pull() {
		pullIDs = append(append([]string{}, diff.ToPull...), conflictPull...)
	}

	var limiter *rate.Limiter
	if s.cfg.RateLimitBatches > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimitBatches), 1)
	}

	for _, batch := range batches(pushIDs, s.cfg.BatchSize) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				fail(err)
				return
			}
		}

		docs := make([]*domain.Document, 0, len(batch))
		for _, id := range batch {
			doc, err := s.cfg.Store.GetDocument(ctx, run.CollectionID, id)
			if err != nil {
				// Deleted since the diff; skip it.
				continue
			}
			docs = append(docs, doc)
		}
		if len(docs) == 0 {
			continue
		}

		if err := s.cfg.Client.PushDocuments(ctx, peer, run.CollectionID, s.cfg.LocalDeviceID, docs); err != nil {
			fail(err)
			return
		}
		synced += len(docs)
		if s.metrics != nil {
			s.metrics.DocumentsPushed.Add(float64(len(docs)))
		}
	}

	for _, batch := range batches(pullIDs, s.cfg.BatchSize) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				fail(err)
				return
			}
		}

		docs, err := s.cfg.Client.PullDocuments(ctx, peer, run.CollectionID, batch)
		if err != nil {
			fail(err)
			return
		}

		for _, doc := range docs {
			if s.cfg.Embedder != nil {
				embedding, err := s.cfg.Embedder.Embed(ctx, doc.Content)
				if err != nil {
					log.Warn("embedding regeneration failed, storing without", "document_id", doc.ID, "error", err)
				} else {
					doc.Embedding = embedding
				}
			}
			if err := s.cfg.Store.PutDocument(ctx, run.CollectionID, doc); err != nil {
				fail(err)
				return
			}
			synced++
		}
		if s.metrics != nil {
			s.metrics.DocumentsPulled.Add(float64(len(docs)))
		}
	}

	if err := run.Complete(synced, len(diff.Conflicts)); err != nil {
		log.Error("illegal run state", "error", err)
		return
	}
	if err := s.cfg.Ledger.Put(ctx, run); err != nil {
		log.Error("failed to persist completed run", "error", err)
	}
	s.observeRun(run, started)

	log.Info("sync run completed",
		"documents_synced", synced,
		"conflicts", len(diff.Conflicts),
		"elapsed", time.Since(started))
}

func (s *Service) observeRun(run *domain.SyncRun, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.SyncRuns.WithLabelValues(string(run.Status)).Inc()
	s.metrics.SyncDuration.Observe(time.Since(started).Seconds())
}

// batches splits ids into chunks of at most size.
func batches(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
