package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"backupd/pkg/logx"
)

const reloadDebounce = 250 * time.Millisecond

var errWatcherClosed = errors.New("config watcher closed")

// Watch reloads the config whenever its file changes, until ctx is done.
//
// The parent directory is watched rather than the file, so editors that save
// by rename still trigger a reload. If the watcher breaks Watch returns an
// error; callers run it under a restarting supervisor.
func (m *ConfigManager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	queueReload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if m.reload(vctx) {
				m.log.Debug("config published", logx.String("path", m.path))
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errWatcherClosed
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) && ev.Op != 0 {
				queueReload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errWatcherClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; reload once to catch up.
				m.log.Warn("config watch overflow; forcing reload", logx.String("dir", dir))
				queueReload()
				continue
			}
			m.log.Warn("config watch error", logx.String("dir", dir), logx.Err(err))
		}
	}
}
