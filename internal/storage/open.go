package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backupd/pkg/logx"
)

// Store is what the poller and the manager persist through.
type Store interface {
	AppendRun(ctx context.Context, r RunRecord) error
	// RecentRuns returns up to limit records, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// Open returns the store for cfg.Driver, or (nil, nil) when the driver is
// empty or "none".
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch d := strings.ToLower(strings.TrimSpace(cfg.Driver)); d {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q (use file, sqlite or none)", d)
	}
}
