package config

// Config is the on-disk configuration shared by backup-manager and
// backup-service. JSON and YAML are both accepted; unknown keys are rejected.
type Config struct {
	Schedules SchedulesConfig `json:"schedules"`
	Backups   BackupsConfig   `json:"backups"`
	Service   ServiceConfig   `json:"service"`
	Logging   LoggingConfig   `json:"logging"`
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type SchedulesConfig struct {
	// Path of the schedule file (one "source;HH:MM;name" per line).
	Path string `json:"path"`
}

type BackupsConfig struct {
	Dir string `json:"dir"`
	// Compression is "none" (plain .tar), "gzip" (.tar.gz) or "zstd" (.tar.zst).
	Compression string `json:"compression,omitempty"`
}

// ServiceConfig controls the poll loop.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "30s" (must stay below one minute)
//   - dedup_per_minute: false
//   - systemd_unit: "backup-service.service"
type ServiceConfig struct {
	PollInterval string `json:"poll_interval,omitempty"`

	// DedupPerMinute fires each schedule at most once per matching minute even
	// when the poll interval samples that minute more than once.
	DedupPerMinute bool `json:"dedup_per_minute,omitempty"`

	SystemdUnit string `json:"systemd_unit,omitempty"`
	// Watchdog pings systemd when the unit sets WatchdogSec.
	Watchdog bool `json:"watchdog,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	// Format is "plain" ("[DD/MM/YYYY HH:MM] message") or "json".
	Format string `json:"format,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	// Timeout is a Go duration string bounding one Bot API request.
	Timeout string `json:"timeout,omitempty"`
}

// StorageConfig controls the optional run-history/dedup store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/backupd" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
