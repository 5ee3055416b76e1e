package systemd

import (
	"context"
	"testing"
	"time"
)

func TestNoopOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	if sent, err := Ready(); sent || err != nil {
		t.Fatalf("Ready() = %v, %v", sent, err)
	}
	if WatchdogInterval() != 0 {
		t.Fatal("expected watchdog disabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := RunWatchdog(ctx); err != nil {
		t.Fatalf("RunWatchdog: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("RunWatchdog should return immediately without a watchdog")
	}
}

func TestWatchdogInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "20000000")
	t.Setenv("WATCHDOG_PID", "")
	if got := WatchdogInterval(); got != 10*time.Second {
		t.Fatalf("WatchdogInterval() = %v", got)
	}
}
