package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"backupd/internal/app"
)

func newTestManager(t *testing.T) *app.Manager {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf("schedules:\n  path: %s\nbackups:\n  dir: %s\nlogging:\n  file:\n    enabled: true\n    path: %s\n",
		filepath.Join(dir, "backup_schedules.txt"),
		filepath.Join(dir, "backups"),
		filepath.Join(dir, "manager.log"),
	)
	p := filepath.Join(dir, "backupd.yaml")
	if err := os.WriteFile(p, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := app.NewManager(p)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRunCommands(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	var out bytes.Buffer

	if code := run(ctx, m, []string{"create", "/srv/www;03:15;www"}, &out); code != 0 {
		t.Fatalf("create exit %d: %s", code, out.String())
	}
	out.Reset()
	if code := run(ctx, m, []string{"list"}, &out); code != 0 || !strings.HasPrefix(out.String(), "0: /srv/www;03:15;www (next run ") {
		t.Fatalf("list exit %d: %q", code, out.String())
	}
	out.Reset()
	if code := run(ctx, m, []string{"delete", "0"}, &out); code != 0 || !strings.Contains(out.String(), "Schedule deleted: /srv/www;03:15;www") {
		t.Fatalf("delete exit %d: %q", code, out.String())
	}
	if code := run(ctx, m, []string{"delete", "0"}, &out); code != 1 {
		t.Fatalf("delete of missing index exit %d", code)
	}
	out.Reset()
	if code := run(ctx, m, []string{"backups"}, &out); code != 0 || out.String() != "no backups\n" {
		t.Fatalf("backups exit %d: %q", code, out.String())
	}
	if code := run(ctx, m, []string{"history"}, &out); code != 1 {
		t.Fatalf("history without storage exit %d", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	m := newTestManager(t)
	var out bytes.Buffer
	if code := run(context.Background(), m, []string{"restart"}, &out); code != 2 {
		t.Fatalf("exit %d", code)
	}
	if out.String() != "Command 'restart' not implemented yet\n" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunCreateMalformed(t *testing.T) {
	m := newTestManager(t)
	var out bytes.Buffer
	if code := run(context.Background(), m, []string{"create", "/x;7pm;y"}, &out); code != 1 {
		t.Fatalf("exit %d", code)
	}
}
