package storage

import (
	"errors"
	"time"
)

var (
	// ErrDisabled is returned by callers that need history when no driver is configured.
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// DefaultHistoryLimit applies when RecentRuns gets a non-positive limit.
const DefaultHistoryLimit = 20

// Config selects and locates a driver. An empty Driver or "none" disables
// persistence.
type Config struct {
	Driver      string // "file" or "sqlite"
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}

// RunRecord is one archiver invocation fired by the poller.
type RunRecord struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Schedule string    `json:"schedule"`
	Source   string    `json:"source"`
	Name     string    `json:"name"`
	Path     string    `json:"path,omitempty"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Bytes    int64     `json:"bytes,omitempty"`
	TookMS   int64     `json:"took_ms"`
}
