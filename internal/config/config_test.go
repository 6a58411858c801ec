package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Snapshot != SnapshotSQLite || cfg.SQLitePath != "netpulse.db" {
		t.Fatalf("expected sqlite snapshot driver at netpulse.db, got %q %q", cfg.Snapshot, cfg.SQLitePath)
	}
	if cfg.Directory.BaseURL != "" {
		t.Fatalf("expected directory disabled by default, got %q", cfg.Directory.BaseURL)
	}
	if cfg.Addr() != "127.0.0.1:8787" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.TickInterval != time.Second || cfg.RefreshInterval != 30*time.Second {
		t.Fatalf("unexpected intervals %v %v", cfg.TickInterval, cfg.RefreshInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NETPULSE_PORT", "9000")
	t.Setenv("NETPULSE_DIRECTORY_URL", "https://example.firebaseio.com")
	t.Setenv("NETPULSE_DIRECTORY_RPS", "2.5")
	t.Setenv("NETPULSE_REFRESH_INTERVAL", "5s")
	t.Setenv("NETPULSE_SEED_DEMO", "true")
	t.Setenv("NETPULSE_PROPAGATION_WORKERS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 9000 || cfg.Directory.RequestsPerSec != 2.5 || cfg.RefreshInterval != 5*time.Second || !cfg.SeedDemo {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PropagationWorkers != 2 {
		t.Fatalf("expected invalid int to fall back, got %d", cfg.PropagationWorkers)
	}
}

func TestLoadValidatesSnapshotDriver(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("NETPULSE_SNAPSHOT_DRIVER", "s3")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing bucket error")
	}

	t.Setenv("NETPULSE_S3_BUCKET", "snapshots")
	if _, err := Load(); err != nil {
		t.Fatalf("expected s3 driver with bucket to load: %v", err)
	}

	t.Setenv("NETPULSE_SNAPSHOT_DRIVER", "SQLite")
	t.Setenv("NETPULSE_SQLITE_PATH", "/var/lib/netpulse/state.db")
	cfg, err := Load()
	if err != nil || cfg.Snapshot != SnapshotSQLite || cfg.SQLitePath != "/var/lib/netpulse/state.db" {
		t.Fatalf("expected sqlite driver with custom path, got %+v (%v)", cfg, err)
	}

	t.Setenv("NETPULSE_SNAPSHOT_DRIVER", "redis")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestSlogLevel(t *testing.T) {
	if got := (Config{LogLevel: "debug"}).SlogLevel(); got != slog.LevelDebug {
		t.Fatalf("expected debug got %v", got)
	}
	if got := (Config{LogLevel: "loud"}).SlogLevel(); got != slog.LevelInfo {
		t.Fatalf("expected info fallback got %v", got)
	}
}
