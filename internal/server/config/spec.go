// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for docmesh-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Device    DeviceSection    `koanf:"device"`
	Discovery DiscoverySection `koanf:"discovery"`
	Sync      SyncSection      `koanf:"sync"`
	Storage   StorageSection   `koanf:"storage"`
	Backup    BackupSection    `koanf:"backup"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// DeviceSection describes the local device as advertised to peers.
type DeviceSection struct {
	// Name is the human-readable device name. Defaults to the hostname.
	Name string `koanf:"name"`

	// Kind is the device class: server, desktop or mobile.
	Kind string `koanf:"kind"`

	// Platform is the operating system label advertised to peers.
	// If empty, runtime.GOOS is used.
	Platform string `koanf:"platform"`

	// Capabilities advertised to peers, e.g. ["sync", "backup"].
	Capabilities []string `koanf:"capabilities"`
}

// DiscoverySection configures LAN presence discovery.
type DiscoverySection struct {
	// Port is the UDP port announcements are sent to and received on.
	Port int `koanf:"port"`

	// BroadcastAddr is the IPv4 broadcast destination.
	BroadcastAddr string `koanf:"broadcast_addr"`

	// BroadcastInterval is the delay between announcements.
	BroadcastInterval time.Duration `koanf:"broadcast_interval"`

	// DeviceTimeout is how long after the last announcement a device
	// is still considered online.
	DeviceTimeout time.Duration `koanf:"device_timeout"`

	// RemovalGrace is how long an offline device stays listed before
	// it is removed entirely.
	RemovalGrace time.Duration `koanf:"removal_grace"`
}

// SyncSection configures knowledge-base synchronization.
type SyncSection struct {
	// BatchSize is the number of documents transferred per request.
	BatchSize int `koanf:"batch_size"`

	// ConflictWindow is the modification-time proximity within which
	// differing documents are treated as conflicting.
	ConflictWindow time.Duration `koanf:"conflict_window"`

	// Resolution is the conflict resolution policy:
	// keep_local, keep_remote, keep_latest or ask.
	Resolution string `koanf:"resolution"`

	// AskFallback is the policy applied when Resolution is "ask" and
	// no interactive decision is available.
	AskFallback string `koanf:"ask_fallback"`

	// RequestTimeout bounds each HTTP request to a peer.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RateLimitBatches caps batch requests per second to a peer.
	// Zero disables rate limiting.
	RateLimitBatches int `koanf:"rate_limit_batches"`

	// HistoryLimit is the default number of sync runs returned by
	// history queries.
	HistoryLimit int `koanf:"history_limit"`
}

// StorageSection configures storage behavior.
type StorageSection struct {
	DataDir string `koanf:"data_dir"`
}

// BackupSection configures collection backups.
type BackupSection struct {
	// Dir is where backup snapshots are written. Empty keeps backups
	// in memory only.
	Dir string `koanf:"dir"`

	// EncryptionKey, when set, encrypts backup payloads at rest.
	EncryptionKey string `koanf:"encryption_key"`

	// Keep is the number of snapshots retained per collection.
	Keep int `koanf:"keep"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
