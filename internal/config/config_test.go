package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	l := NewLoader()
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Region.RingCapacity != 256 {
		t.Errorf("Region.RingCapacity = %d, want 256", cfg.Region.RingCapacity)
	}
	if cfg.Snapshot.Keep != 2 {
		t.Errorf("Snapshot.Keep = %d, want 2", cfg.Snapshot.Keep)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shmfd.yaml")
	content := `
log_level: debug
region:
  ring_capacity: 1024
  data_capacity: 4194304
snapshot:
  keep: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	l := NewLoader(WithConfigFile(path))
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.Region.RingCapacity != 1024 {
		t.Errorf("Region.RingCapacity = %d, want 1024", cfg.Region.RingCapacity)
	}
	if cfg.Snapshot.Keep != 5 {
		t.Errorf("Snapshot.Keep = %d, want 5", cfg.Snapshot.Keep)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shmfd.yaml")
	content := `
log_level: debug
region:
  name: from-file
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("SHMFD_LOG_LEVEL", "warn")
	t.Setenv("SHMFD_REGION_NAME", "from-env")

	l := NewLoader(WithConfigFile(path))
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if cfg.Region.Name != "from-env" {
		t.Errorf("Region.Name = %q, want %q", cfg.Region.Name, "from-env")
	}
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_LOG_LEVEL", "error")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "error")
	}
}
