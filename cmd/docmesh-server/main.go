// Package main provides the entry point for docmesh-server.
//
// docmesh-server is the device agent of DocMesh: it announces the
// device on the local network, keeps a directory of discovered peers,
// stores knowledge-base collections and synchronizes them with other
// devices.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/discovery"
	"github.com/yndnr/docmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/docmesh-go/internal/infra/confloader"
	"github.com/yndnr/docmesh-go/internal/infra/shutdown"
	"github.com/yndnr/docmesh-go/internal/server/config"
	"github.com/yndnr/docmesh-go/internal/server/httpserver"
	"github.com/yndnr/docmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/docmesh-go/internal/storage"
	"github.com/yndnr/docmesh-go/internal/storage/backup"
	"github.com/yndnr/docmesh-go/internal/storage/memory"
	syncsvc "github.com/yndnr/docmesh-go/internal/sync"
	"github.com/yndnr/docmesh-go/internal/telemetry/logger"
	"github.com/yndnr/docmesh-go/internal/telemetry/metric"
	"github.com/yndnr/docmesh-go/pkg/crypto/adaptive"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("docmesh-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting docmesh-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	metrics := metric.NewRegistry()

	// Persistent run ledger.
	engine, err := storage.NewBadgerEngine(storage.KVConfig{
		Dir: filepath.Join(cfg.Storage.DataDir, "ledger"),
	}, nil)
	if err != nil {
		return fmt.Errorf("init ledger storage: %w", err)
	}
	engine.RegisterMetrics(metrics.Prometheus())

	store := memory.New()

	backups, err := backup.NewManager(backup.Config{
		Dir:    cfg.Backup.Dir,
		Keep:   cfg.Backup.Keep,
		Cipher: backupCipher(cfg, log),
	}, store)
	if err != nil {
		return fmt.Errorf("init backup manager: %w", err)
	}

	local, err := localDevice(cfg)
	if err != nil {
		return fmt.Errorf("build local device record: %w", err)
	}

	directory := discovery.NewDirectory(cfg.Discovery.DeviceTimeout, cfg.Discovery.RemovalGrace)

	disc, err := discovery.NewService(discovery.Config{
		Local:         local,
		Port:          cfg.Discovery.Port,
		BroadcastAddr: cfg.Discovery.BroadcastAddr,
		Interval:      cfg.Discovery.BroadcastInterval,
		Directory:     directory,
		Logger:        log,
		Metrics:       metrics,
	})
	if err != nil {
		return fmt.Errorf("init discovery: %w", err)
	}
	if err := disc.Start(context.Background()); err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}

	syncService := syncsvc.NewService(syncsvc.Config{
		Store:            store,
		Ledger:           syncsvc.NewLedger(engine),
		Directory:        directory,
		Client:           syncsvc.NewPeerClient(cfg.Sync.RequestTimeout),
		LocalDeviceID:    local.ID,
		BatchSize:        cfg.Sync.BatchSize,
		ConflictWindow:   cfg.Sync.ConflictWindow,
		Policy:           domain.ResolutionPolicy(cfg.Sync.Resolution),
		AskFallback:      domain.ResolutionPolicy(cfg.Sync.AskFallback),
		RateLimitBatches: cfg.Sync.RateLimitBatches,
		HistoryLimit:     cfg.Sync.HistoryLimit,
		Logger:           log,
		Metrics:          metrics,
	})

	httpHandler := handler.New(handler.Config{
		Local:     local,
		Store:     store,
		Directory: directory,
		Sync:      syncService,
		Backups:   backups,
		Logger:    log,
		Metrics:   metrics,
	})
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(httpHandler, log))

	watcher := startConfigWatcher(*configFile, log)

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		if watcher != nil {
			_ = watcher.Stop()
		}
		log.Info("closing run ledger")
		return engine.Close()
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("waiting for in-flight sync runs")
		syncService.Wait()
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("stopping discovery")
		return disc.Stop(5 * time.Second)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)

		var err error
		if cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("server started",
		"device_id", local.ID,
		"device_name", local.Name,
		"discovery_port", cfg.Discovery.Port)
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// localDevice builds the record announced for this device. Name and
// platform default to the hostname and runtime.GOOS.
func localDevice(cfg *config.ServerConfig) (*domain.DeviceRecord, error) {
	name := cfg.Device.Name
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve hostname: %w", err)
		}
		name = hostname
	}
	platform := cfg.Device.Platform
	if platform == "" {
		platform = runtime.GOOS
	}

	port, err := httpPort(cfg.Server.HTTP.Addr)
	if err != nil {
		return nil, err
	}

	local, err := domain.NewDeviceRecord(name, domain.DeviceKind(cfg.Device.Kind), platform, port)
	if err != nil {
		return nil, err
	}
	local.Capabilities = cfg.Device.Capabilities
	local.Version = buildinfo.Version
	local.Local = true
	local.LastSeen = time.Now()
	return local, nil
}

// httpPort extracts the port from a listen address like ":8000".
func httpPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse http addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("parse http port %q: %w", portStr, err)
	}
	return port, nil
}

// backupCipher builds the backup cipher from the configured key, or
// nil for plaintext backups.
func backupCipher(cfg *config.ServerConfig, log logger.Logger) adaptive.Cipher {
	if cfg.Backup.EncryptionKey == "" {
		return nil
	}
	cipher, err := adaptive.New([]byte(cfg.Backup.EncryptionKey))
	if err != nil {
		log.Warn("backup encryption disabled", "error", err)
		return nil
	}
	log.Info("backup encryption enabled", "cipher", cipher.Type())
	return cipher
}

// startConfigWatcher reloads the log level when the config file
// changes. Returns nil when no config file is in use.
func startConfigWatcher(configFile string, log logger.Logger) *confloader.Watcher {
	if configFile == "" {
		return nil
	}

	watcher, err := confloader.NewWatcher()
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return nil
	}
	if err := watcher.Watch(configFile); err != nil {
		log.Warn("config watcher unavailable", "error", err)
		_ = watcher.Stop()
		return nil
	}

	watcher.OnChange(func(path string) {
		if filepath.Base(path) != filepath.Base(configFile) {
			return
		}
		reloaded := config.Default()
		if err := confloader.NewLoader(confloader.WithConfigFile(configFile)).Load(reloaded); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if reloaded.Log.Level != logger.GetLevel() {
			logger.SetLevel(reloaded.Log.Level)
			log.Info("log level changed", "level", reloaded.Log.Level)
		}
	})
	watcher.StartAsync()
	return watcher
}
