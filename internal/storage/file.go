package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"backupd/pkg/logx"
)

// fileStore keeps runs in <base>.runs.jsonl and firing keys in
// <base>.dedup.json next to cfg.Path.
//
// The runs file is opened per call, so a manager process sees records the
// service appended after the manager started. The dedup map belongs to the
// service alone and is rewritten whole on each put.
type fileStore struct {
	log logx.Logger

	runsPath  string
	dedupPath string

	mu     sync.Mutex
	closed bool
	keys   map[string]time.Time
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	stem := filepath.Join(dir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	s := &fileStore{
		log:       log,
		runsPath:  stem + ".runs.jsonl",
		dedupPath: stem + ".dedup.json",
		keys:      map[string]time.Time{},
	}
	if err := s.readKeys(); err != nil {
		log.Warn("dedup state unreadable; starting empty", logx.String("path", s.dedupPath), logx.Err(err))
	}
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) AppendRun(ctx context.Context, r RunRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	line, err := json.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	f, err := os.OpenFile(s.runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	// Single write per record keeps lines whole under O_APPEND.
	_, werr := f.Write(append(line, '\n'))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// RecentRuns scans the journal once and keeps the last limit records.
func (s *fileStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	f, err := os.Open(s.runsPath)
	if errors.Is(err, os.ErrNotExist) {
		return []RunRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tail := make([]RunRecord, limit)
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var r RunRecord
		if json.Unmarshal(sc.Bytes(), &r) != nil {
			continue
		}
		tail[n%limit] = r
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	count := min(n, limit)
	out := make([]RunRecord, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, tail[(n-i)%limit])
	}
	return out, nil
}

func (s *fileStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.keys[key] = until.Truncate(time.Millisecond)
	now := time.Now()
	for k, u := range s.keys {
		if u.Before(now) {
			delete(s.keys, k)
		}
	}
	return s.writeKeysLocked()
}

func (s *fileStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.keys[strings.TrimSpace(key)]
	return u, ok, nil
}

func (s *fileStore) readKeys() error {
	b, err := os.ReadFile(s.dedupPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var raw map[string]int64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	now := time.Now()
	for k, ms := range raw {
		if u := time.UnixMilli(ms); !u.Before(now) {
			s.keys[k] = u
		}
	}
	return nil
}

// writeKeysLocked replaces the dedup file via tmp+rename.
func (s *fileStore) writeKeysLocked() error {
	raw := make(map[string]int64, len(s.keys))
	for k, u := range s.keys {
		raw[k] = u.UnixMilli()
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	tmp := s.dedupPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.dedupPath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
