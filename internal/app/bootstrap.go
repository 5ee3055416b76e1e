package app

import (
	"strings"
	"time"

	"backupd/internal/archive"
	"backupd/internal/config"
	"backupd/internal/poller"
	"backupd/internal/storage"
	kit "backupd/internal/transport"
	"backupd/internal/transport/telegram"
	"backupd/pkg/logx"
)

const (
	ManagerLogFile = "logs/backup_manager.log"
	ServiceLogFile = "logs/backup_service.log"
)

// env bundles what both binaries build from the config file.
type env struct {
	cfgm  *config.ConfigManager
	log   logx.Logger
	logs  *logx.Service
	store storage.Store // nil when storage is disabled

	logFile string
}

func bootstrap(cfgPath, logFile, comp string) (*env, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, existed, err := cfgm.LoadOrDefault()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	sender, err := newSender(cfg)
	if err != nil {
		return nil, err
	}
	logSvc, log := logx.New(mapLogConfig(cfg, logFile), sender)
	log = log.With(logx.String("comp", comp))
	if !existed {
		log.Debug("config file not found; using defaults", logx.String("path", cfgPath))
	}

	rt := &env{cfgm: cfgm, log: log, logs: logSvc, logFile: logFile}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		rt.store = st
		log.Debug("storage enabled", logx.String("driver", sc.Driver))
	}
	return rt, nil
}

func (rt *env) close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.log.Warn("storage close failed", logx.Err(err))
		}
	}
	if rt.logs != nil {
		_ = rt.logs.Close()
	}
}

// validate is the config gate used at startup and on every hot reload.
func validate(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	_, _, err := mapStorageConfig(cfg)
	return err
}

// newSender returns nil when no bot token is configured.
func newSender(cfg *config.Config) (kit.Sender, error) {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, nil
	}
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return telegram.New(telegram.Config{Token: cfg.Telegram.Token, Timeout: timeout})
}

func mapLogConfig(cfg *config.Config, defaultFile string) logx.Config {
	path := strings.TrimSpace(cfg.Logging.File.Path)
	if path == "" {
		path = defaultFile
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    path,
			Format:  cfg.Logging.File.Format,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.ChatID,
			ThreadID:   cfg.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapPollerConfig(cfg *config.Config) (poller.Config, error) {
	d, err := cfg.PollInterval()
	if err != nil {
		return poller.Config{}, err
	}
	return poller.Config{Interval: d, DedupPerMinute: cfg.Service.DedupPerMinute}, nil
}

func mapArchiveConfig(cfg *config.Config) archive.Config {
	return archive.Config{
		Dir:         cfg.Backups.Dir,
		Compression: archive.NormalizeCompression(cfg.Backups.Compression),
	}
}
