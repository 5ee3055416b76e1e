package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"backupd/pkg/logx"
)

//go:embed migrations.sql
var schemaSQL string

const defaultBusyTimeout = 5 * time.Second

// sqliteStore serves both processes from one database file; busy_timeout
// covers the moments the manager reads while the service writes.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), busy+5*time.Second)
	defer cancel()
	stmts := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		schemaSQL,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
	}

	s := &sqliteStore{db: db, log: log}
	if n, err := s.pruneDedup(ctx, time.Now()); err != nil {
		log.Warn("dedup prune failed", logx.Err(err))
	} else if n > 0 {
		log.Debug("dedup keys pruned", logx.Int64("count", n))
	}
	return s, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) AppendRun(ctx context.Context, r RunRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	const q = `INSERT INTO runs(id, at, schedule, source, name, path, ok, err, bytes, took_ms)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.At.UTC().Format(time.RFC3339Nano), r.Schedule, r.Source, r.Name,
		optional(r.Path), r.OK, optional(r.Error), r.Bytes, r.TookMS)
	return err
}

func (s *sqliteStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, at, schedule, source, name,
		COALESCE(path, ''), ok, COALESCE(err, ''), bytes, took_ms
		FROM runs ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var (
			r  RunRecord
			at string
		)
		if err := rows.Scan(&r.ID, &at, &r.Schedule, &r.Source, &r.Name, &r.Path, &r.OK, &r.Error, &r.Bytes, &r.TookMS); err != nil {
			return nil, err
		}
		if r.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			s.log.Debug("run with bad timestamp", logx.String("id", r.ID), logx.Err(err))
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET until = excluded.until`,
		key, until.UnixMilli())
	return err
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM dedup WHERE key = ?`, strings.TrimSpace(key)).Scan(&ms)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// pruneDedup drops keys whose minute has long passed. It runs once per open;
// the service opens the store on every start.
func (s *sqliteStore) pruneDedup(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until < ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func optional(v string) any {
	if v == "" {
		return nil
	}
	return v
}
