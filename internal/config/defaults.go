package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"backupd/internal/archive"
	"backupd/pkg/logx"
)

const (
	DefaultSchedulesPath = "backup_schedules.txt"
	DefaultBackupsDir    = "backups"
	DefaultPollInterval  = 30 * time.Second
	DefaultSystemdUnit   = "backup-service.service"

	// MaxPollInterval is exclusive: at one minute or more a matching minute
	// could be skipped entirely.
	MaxPollInterval = time.Minute
)

// Default returns the configuration used when no config file exists.
// Log file paths are filled in per binary by the caller.
func Default() *Config {
	return &Config{
		Schedules: SchedulesConfig{Path: DefaultSchedulesPath},
		Backups:   BackupsConfig{Dir: DefaultBackupsDir, Compression: archive.CompressionNone},
		Service: ServiceConfig{
			PollInterval: DefaultPollInterval.String(),
			SystemdUnit:  DefaultSystemdUnit,
			Watchdog:     true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  LoggingFile{Enabled: true, Format: logx.FormatPlain},
		},
	}
}

// ApplyDefaults fills omitted fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Schedules.Path) == "" {
		cfg.Schedules.Path = DefaultSchedulesPath
	}
	if strings.TrimSpace(cfg.Backups.Dir) == "" {
		cfg.Backups.Dir = DefaultBackupsDir
	}
	if strings.TrimSpace(cfg.Service.PollInterval) == "" {
		cfg.Service.PollInterval = DefaultPollInterval.String()
	}
	if strings.TrimSpace(cfg.Service.SystemdUnit) == "" {
		cfg.Service.SystemdUnit = DefaultSystemdUnit
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Logging.File.Format) == "" {
		cfg.Logging.File.Format = logx.FormatPlain
	}
}

// PollInterval returns the parsed service.poll_interval.
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := ParseDurationOrDefault("service.poll_interval", c.Service.PollInterval, DefaultPollInterval)
	if err != nil {
		return 0, err
	}
	if d >= MaxPollInterval {
		return 0, fmt.Errorf("service.poll_interval: %s must be below %s or a minute can be missed", d, MaxPollInterval)
	}
	return d, nil
}

// Validate checks a parsed config before it is committed or published.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, err := cfg.PollInterval(); err != nil {
		errs = append(errs, err)
	}
	if !archive.ValidCompression(cfg.Backups.Compression) {
		errs = append(errs, fmt.Errorf("backups.compression: unknown value %q (use none, gzip or zstd)", cfg.Backups.Compression))
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.File.Format)) {
	case "", logx.FormatPlain, logx.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging.file.format: unknown format %q (use plain or json)", cfg.Logging.File.Format))
	}
	if cfg.Logging.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			errs = append(errs, errors.New("logging.telegram.enabled requires telegram.token"))
		}
		if cfg.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("logging.telegram.enabled requires telegram.chat_id"))
		}
	}
	if _, err := ParseDurationField("telegram.timeout", cfg.Telegram.Timeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
