package config

import (
	"errors"
	"fmt"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyDevice(&cfg.Device); err != nil {
		return err
	}
	if err := verifyDiscovery(&cfg.Discovery); err != nil {
		return err
	}
	if err := verifySync(&cfg.Sync); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return nil
}

func verifyDevice(cfg *DeviceSection) error {
	switch cfg.Kind {
	case "server", "desktop", "mobile":
		return nil
	default:
		return fmt.Errorf("device.kind must be server, desktop or mobile, got %q", cfg.Kind)
	}
}

func verifyDiscovery(cfg *DiscoverySection) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("discovery.port must be in 1..65535, got %d", cfg.Port)
	}
	if cfg.BroadcastInterval <= 0 {
		return errors.New("discovery.broadcast_interval must be positive")
	}
	if cfg.DeviceTimeout <= cfg.BroadcastInterval {
		return errors.New("discovery.device_timeout must exceed discovery.broadcast_interval")
	}
	if cfg.RemovalGrace < cfg.DeviceTimeout {
		return errors.New("discovery.removal_grace must be at least discovery.device_timeout")
	}
	return nil
}

func verifySync(cfg *SyncSection) error {
	if cfg.BatchSize < 1 {
		return errors.New("sync.batch_size must be at least 1")
	}
	if cfg.ConflictWindow < 0 {
		return errors.New("sync.conflict_window must not be negative")
	}
	if !validPolicy(cfg.Resolution) {
		return fmt.Errorf("sync.resolution must be keep_local, keep_remote, keep_latest or ask, got %q", cfg.Resolution)
	}
	if !validPolicy(cfg.AskFallback) || cfg.AskFallback == "ask" {
		return fmt.Errorf("sync.ask_fallback must be keep_local, keep_remote or keep_latest, got %q", cfg.AskFallback)
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("sync.request_timeout must be positive")
	}
	return nil
}

func validPolicy(p string) bool {
	switch p {
	case "keep_local", "keep_remote", "keep_latest", "ask":
		return true
	}
	return false
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	return nil
}
