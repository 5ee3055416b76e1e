package logx

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"
)

var plainLine = regexp.MustCompile(`^\[\d{2}/\d{2}/\d{4} \d{2}:\d{2}\] `)

func TestPlainFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, FormatPlain, "info")

	log.Info("backup_service started")
	log.Error("Error creating backup for /tmp/x", Err(errors.New("no such file")))
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	for _, l := range lines {
		if !plainLine.MatchString(l) {
			t.Fatalf("line %q does not start with [DD/MM/YYYY HH:MM]", l)
		}
		if strings.Contains(l, "INF") || strings.Contains(l, "ERR ") || strings.Contains(l, ".go:") {
			t.Fatalf("line %q carries level or caller", l)
		}
	}
	if !strings.HasSuffix(lines[0], "] backup_service started") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "no such file") {
		t.Fatalf("error cause missing from %q", lines[1])
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, FormatJSON, "debug").With(String("comp", "poller"))
	log.Debug("cycle", Int("matched", 2))

	out := buf.String()
	for _, want := range []string{`"message":"cycle"`, `"comp":"poller"`, `"matched":2`, `"level":"debug"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %s", out, want)
		}
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("nothing happens")
	Nop().Error("still nothing")
}

func TestFormatTelegramJSON(t *testing.T) {
	msg := formatTelegramJSON([]byte(`{"level":"error","message":"backup failed","name":"daily","caller":"x.go:1"}`))
	if !strings.HasPrefix(msg, "[ERROR] backup failed") {
		t.Fatalf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "name=daily") || strings.Contains(msg, "caller") {
		t.Fatalf("unexpected fields in %q", msg)
	}
}

func TestNewConsoleHonorsLevel(t *testing.T) {
	log := NewConsole("warn")
	if log.IsZero() {
		t.Fatal("console logger should not be zero")
	}
	if log.Enabled(LevelInfo) || !log.Enabled(LevelWarn) || !log.Enabled(LevelError) {
		t.Fatal("console logger ignores its level")
	}
	if !NewConsole("bogus").Enabled(LevelInfo) {
		t.Fatal("unknown level should fall back to info")
	}
}
