package app

import (
	"context"
	"sync/atomic"

	"backupd/internal/archive"
	"backupd/internal/schedule"
)

// liveArchiver lets a config reload swap the backup directory or compression
// between poll cycles.
type liveArchiver struct{ p atomic.Pointer[archive.Archiver] }

func newLiveArchiver(a *archive.Archiver) *liveArchiver {
	l := &liveArchiver{}
	l.p.Store(a)
	return l
}

func (l *liveArchiver) Set(a *archive.Archiver)     { l.p.Store(a) }
func (l *liveArchiver) Current() *archive.Archiver { return l.p.Load() }

func (l *liveArchiver) CreateBackup(ctx context.Context, src, name string) (archive.Result, error) {
	return l.p.Load().CreateBackup(ctx, src, name)
}

// liveSchedules does the same for the schedule file path.
type liveSchedules struct{ p atomic.Pointer[schedule.Store] }

func newLiveSchedules(s *schedule.Store) *liveSchedules {
	l := &liveSchedules{}
	l.p.Store(s)
	return l
}

func (l *liveSchedules) Set(s *schedule.Store)     { l.p.Store(s) }
func (l *liveSchedules) Current() *schedule.Store { return l.p.Load() }

func (l *liveSchedules) Load() ([]string, error) { return l.p.Load().Load() }
