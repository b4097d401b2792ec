package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Discovery struct {
		Port int `koanf:"port"`
	} `koanf:"discovery"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func TestLoader_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docmesh.yaml")
	content := "discovery:\n  port: 9001\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DOCMESH_LOG_LEVEL", "warn")

	var cfg testConfig
	loader := NewLoader(WithConfigFile(path))
	if err := loader.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Discovery.Port != 9001 {
		t.Fatalf("port = %d, want 9001", cfg.Discovery.Port)
	}
	// Env overrides file.
	if cfg.Log.Level != "warn" {
		t.Fatalf("level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoader_MissingFileFails(t *testing.T) {
	var cfg testConfig
	loader := NewLoader(WithConfigFile("/nonexistent/docmesh.yaml"))
	if err := loader.Load(&cfg); err == nil {
		t.Fatal("Load with missing file must fail")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadMap(map[string]any{"discovery.port": 8042}); err != nil {
		t.Fatalf("LoadMap: %v", err)
	}

	var cfg testConfig
	if err := loader.k.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Discovery.Port != 8042 {
		t.Fatalf("port = %d, want 8042", cfg.Discovery.Port)
	}
}
