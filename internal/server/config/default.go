package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr = ":8000"

	DefaultDeviceKind = "server"

	DefaultDiscoveryPort     = 8001
	DefaultBroadcastAddr     = "255.255.255.255"
	DefaultBroadcastInterval = 5 * time.Second
	DefaultDeviceTimeout     = 30 * time.Second
	DefaultRemovalGrace      = 5 * time.Minute

	DefaultSyncBatchSize      = 100
	DefaultConflictWindow     = 60 * time.Second
	DefaultResolution         = "keep_latest"
	DefaultAskFallback        = "keep_local"
	DefaultRequestTimeout     = 30 * time.Second
	DefaultRateLimitBatches   = 0
	DefaultSyncHistoryLimit   = 50

	DefaultDataDir    = "/var/lib/docmesh-server/data"
	DefaultBackupKeep = 3

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
		},
		Device: DeviceSection{
			Kind:         DefaultDeviceKind,
			Capabilities: []string{"sync", "backup"},
		},
		Discovery: DiscoverySection{
			Port:              DefaultDiscoveryPort,
			BroadcastAddr:     DefaultBroadcastAddr,
			BroadcastInterval: DefaultBroadcastInterval,
			DeviceTimeout:     DefaultDeviceTimeout,
			RemovalGrace:      DefaultRemovalGrace,
		},
		Sync: SyncSection{
			BatchSize:        DefaultSyncBatchSize,
			ConflictWindow:   DefaultConflictWindow,
			Resolution:       DefaultResolution,
			AskFallback:      DefaultAskFallback,
			RequestTimeout:   DefaultRequestTimeout,
			RateLimitBatches: DefaultRateLimitBatches,
			HistoryLimit:     DefaultSyncHistoryLimit,
		},
		Storage: StorageSection{
			DataDir: DefaultDataDir,
		},
		Backup: BackupSection{
			Keep: DefaultBackupKeep,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
