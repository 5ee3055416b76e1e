package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "backupd.yaml", `
schedules:
  path: /var/lib/backupd/schedules.txt
backups:
  dir: /var/backups/backupd
  compression: zstd
service:
  poll_interval: 20s
  dedup_per_minute: true
logging:
  level: debug
  file:
    enabled: true
    path: logs/backup_service.log
storage:
  driver: sqlite
  path: /var/lib/backupd/state.db
`)
	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Schedules.Path != "/var/lib/backupd/schedules.txt" || cfg.Backups.Compression != "zstd" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Service.DedupPerMinute || cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("unexpected service/storage: %+v %+v", cfg.Service, cfg.Storage)
	}
	d, err := cfg.PollInterval()
	if err != nil || d != 20*time.Second {
		t.Fatalf("PollInterval = %v, %v", d, err)
	}
	// Omitted fields get defaults.
	if cfg.Service.SystemdUnit != DefaultSystemdUnit || cfg.Logging.File.Format != "plain" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Service, cfg.Logging.File)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "backupd.json", `{"schedules":{"path":"x"},"bogus":1}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, existed, err := m.LoadOrDefault()
	if err != nil || existed {
		t.Fatalf("LoadOrDefault = %v, %v", existed, err)
	}
	if cfg.Schedules.Path != DefaultSchedulesPath || cfg.Backups.Dir != DefaultBackupsDir {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if m.Get() != cfg {
		t.Fatal("default config not committed")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidatePollInterval(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw string
		ok  bool
	}{
		{raw: "30s", ok: true},
		{raw: "59s", ok: true},
		{raw: "", ok: true},
		{raw: "60s", ok: false},
		{raw: "2m", ok: false},
		{raw: "-5s", ok: false},
		{raw: "soon", ok: false},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Service.PollInterval = tt.raw
		err := Validate(cfg)
		if (err == nil) != tt.ok {
			t.Fatalf("poll_interval %q: err = %v, want ok=%v", tt.raw, err, tt.ok)
		}
	}
}

func TestValidateTelegramRequiresTarget(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Logging.Telegram.Enabled = true
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "telegram.token") || !strings.Contains(err.Error(), "chat_id") {
		t.Fatalf("Validate = %v", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := Default()
	newCfg := Default()
	newCfg.Service.PollInterval = "15s"
	newCfg.Telegram.Token = "secret"

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "service,telegram" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	p := writeConfig(t, "backupd.yaml", "service:\n  poll_interval: 30s\n")
	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Backups.Dir == "forbidden" {
			return errors.New("rejected")
		}
		return Validate(cfg)
	})
	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("backups:\n  dir: forbidden\n")
	write("service:\n  poll_interval: 70s\n")
	time.Sleep(2 * reloadDebounce)
	select {
	case cfg := <-sub:
		t.Fatalf("invalid config published: %+v", cfg)
	default:
	}

	write("service:\n  poll_interval: 15s\n")
	select {
	case cfg := <-sub:
		if cfg.Service.PollInterval != "15s" {
			t.Fatalf("published poll_interval = %q", cfg.Service.PollInterval)
		}
		if m.Get() != cfg {
			t.Fatal("published config not committed")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.yaml")
	sub := m.Subscribe(1)
	first, second := Default(), Default()
	m.publish(first)
	m.publish(second)
	if got := <-sub; got != second {
		t.Fatal("slow subscriber should receive the newest config")
	}
	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}
