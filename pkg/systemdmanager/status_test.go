package systemdmanager

import (
	"errors"
	"testing"
	"time"
)

func TestUnitName(t *testing.T) {
	tests := map[string]string{
		"backup-service":         "backup-service.service",
		"backup-service.service": "backup-service.service",
		" backup.timer ":         "backup.timer",
		"my.app":                 "my.app.service",
		"":                       "",
	}
	for in, want := range tests {
		if got := UnitName(in); got != want {
			t.Fatalf("UnitName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFromProps(t *testing.T) {
	since := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	props := map[string]interface{}{
		"LoadState":            "loaded",
		"ActiveState":          "active",
		"SubState":             "running",
		"Description":          "Scheduled backups",
		"MainPID":              uint32(4242),
		"ActiveEnterTimestamp": uint64(since.Unix()) * 1_000_000,
	}
	st := statusFromProps("backup-service.service", props)
	if !st.Running() || !st.Found() || st.MainPID != 4242 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if !st.Since().Equal(since) {
		t.Fatalf("Since() = %v, want %v", st.Since(), since)
	}

	missing := statusFromProps("nope.service", map[string]interface{}{"LoadState": "not-found"})
	if missing.Found() || missing.Running() {
		t.Fatalf("unexpected status for missing unit: %+v", missing)
	}
}

func TestIsNoSuchUnitErr(t *testing.T) {
	if !isNoSuchUnitErr(errors.New("org.freedesktop.systemd1.NoSuchUnit: Unit x.service not loaded")) {
		t.Fatal("expected NoSuchUnit match")
	}
	if isNoSuchUnitErr(errors.New("access denied")) || isNoSuchUnitErr(nil) {
		t.Fatal("unexpected match")
	}
}

func TestFormatActionResult(t *testing.T) {
	if got := FormatActionResult("backup-service.service", "start", nil); got != "start backup-service.service: ok" {
		t.Fatalf("got %q", got)
	}
	if got := FormatActionResult("x", "stop", errors.New("boom")); got != "stop x: error: boom" {
		t.Fatalf("got %q", got)
	}
}
