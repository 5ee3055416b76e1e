package config

import (
	"backupd/pkg/logx"
	"sort"
	"strings"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Schedules.Path) != strings.TrimSpace(newCfg.Schedules.Path) {
		changed = append(changed, "schedules")
		attrs = append(attrs, logx.String("schedules.path", strings.TrimSpace(newCfg.Schedules.Path)))
	}

	if strings.TrimSpace(oldCfg.Backups.Dir) != strings.TrimSpace(newCfg.Backups.Dir) ||
		strings.TrimSpace(oldCfg.Backups.Compression) != strings.TrimSpace(newCfg.Backups.Compression) {
		changed = append(changed, "backups")
		attrs = append(attrs,
			logx.String("backups.dir", strings.TrimSpace(newCfg.Backups.Dir)),
			logx.String("backups.compression", strings.TrimSpace(newCfg.Backups.Compression)),
		)
	}

	if oldCfg.Service != newCfg.Service {
		changed = append(changed, "service")
		attrs = append(attrs,
			logx.String("service.poll_interval", strings.TrimSpace(newCfg.Service.PollInterval)),
			logx.Bool("service.dedup_per_minute", newCfg.Service.DedupPerMinute),
			logx.String("service.systemd_unit", strings.TrimSpace(newCfg.Service.SystemdUnit)),
			logx.Bool("service.watchdog", newCfg.Service.Watchdog),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.String("logx.file_format", newCfg.Logging.File.Format),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Telegram (never log token)
	if oldCfg.Telegram.ChatID != newCfg.Telegram.ChatID ||
		oldCfg.Telegram.ThreadID != newCfg.Telegram.ThreadID ||
		strings.TrimSpace(oldCfg.Telegram.Timeout) != strings.TrimSpace(newCfg.Telegram.Timeout) ||
		(strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Bool("telegram.chat_set", newCfg.Telegram.ChatID != 0),
		)
	}

	// Storage (persistence). Nil means disabled.
	var oDriver, nDriver, oBusy, nBusy, oPath, nPath string
	if s := oldCfg.Storage; s != nil {
		oDriver, oBusy, oPath = strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path)
	}
	if s := newCfg.Storage; s != nil {
		nDriver, nBusy, nPath = strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path)
	}
	if oDriver != nDriver || oBusy != nBusy || oPath != nPath {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.String("storage.path", nPath),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
