package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv engine closed")
)

// KVConfig configures the Badger engine.
type KVConfig struct {
	// Dir is the on-disk location of the database.
	Dir string

	// SyncWrites forces an fsync on every write.
	SyncWrites bool

	// GCInterval is how often value-log garbage collection runs.
	// Zero uses a 10 minute default.
	GCInterval time.Duration
}

// BadgerEngine is a Badger v3 backed key-value engine. DocMesh uses it
// to persist the sync run ledger across restarts.
type BadgerEngine struct {
	db     *badger.DB
	logger *slog.Logger

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerEngine opens a Badger database at cfg.Dir.
func NewBadgerEngine(cfg KVConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	engine := &BadgerEngine{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go engine.gcLoop(cfg.GCInterval)

	logger.Info("badger engine started", "dir", cfg.Dir)
	return engine, nil
}

// Get retrieves a value by key.
func (e *BadgerEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte

	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a key-value pair.
func (e *BadgerEngine) Set(ctx context.Context, key, value []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key.
func (e *BadgerEngine) Delete(ctx context.Context, key []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Scan iterates over keys with a given prefix. Iteration stops when fn
// returns false.
func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if !fn(key, value) {
				break
			}
		}

		return nil
	})
}

// Close gracefully shuts down the Badger engine.
func (e *BadgerEngine) Close() error {
	close(e.stopCh)
	<-e.doneCh

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	e.logger.Info("badger engine shutdown complete")
	return nil
}

// RegisterMetrics registers Badger size metrics with Prometheus.
// Returns the engine for method chaining.
func (e *BadgerEngine) RegisterMetrics(registry *prometheus.Registry) *BadgerEngine {
	e.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "docmesh",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})

	e.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "docmesh",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})

	registry.MustRegister(e.metricsLSMSize, e.metricsValueLogSize)

	go e.metricsUpdateLoop()
	return e
}

func (e *BadgerEngine) metricsUpdateLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lsm, vlog := e.db.Size()
			e.metricsLSMSize.Set(float64(lsm))
			e.metricsValueLogSize.Set(float64(vlog))

		case <-e.stopCh:
			return
		}
	}
}

// gcLoop runs periodic value-log garbage collection.
func (e *BadgerEngine) gcLoop(interval time.Duration) {
	defer close(e.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				err := e.db.RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						e.logger.Error("auto gc failed", "error", err)
					}
					break
				}
			}

		case <-e.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
