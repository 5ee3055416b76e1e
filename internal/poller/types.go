package poller

import (
	"context"
	"time"

	"backupd/internal/archive"
	"backupd/internal/storage"
	"backupd/pkg/logx"
)

// Clock abstracts wall-clock time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Source yields the current schedule lines. A missing schedule file must be
// reported as no lines, not as an error.
type Source interface {
	Load() ([]string, error)
}

type Archiver interface {
	CreateBackup(ctx context.Context, sourcePath, backupName string) (archive.Result, error)
}

// Recorder receives one record per archiver invocation.
type Recorder interface {
	AppendRun(ctx context.Context, r storage.RunRecord) error
}

// DedupStore persists per-minute firing keys across restarts.
type DedupStore interface {
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
}

// Config controls the poll loop.
type Config struct {
	// Interval between cycles. It must stay below one minute; at or above
	// that a matching minute can be skipped entirely.
	Interval time.Duration
	// DedupPerMinute fires each schedule at most once per matching minute.
	// Off by default: with a short interval the same minute is observed
	// twice and the archiver runs twice, overwriting its own output.
	DedupPerMinute bool
}

type Deps struct {
	Clock    Clock
	Source   Source
	Archiver Archiver
	Recorder Recorder   // optional
	Dedup    DedupStore // optional, only used with DedupPerMinute
	Log      logx.Logger
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	At        time.Time
	Key       string // HH:MM compared against schedule lines
	Lines     int
	Skipped   int // lines not splitting into 3 fields
	Matched   int
	Succeeded int
	Failed    int
	Deduped   int
	LoadErr   error
}
