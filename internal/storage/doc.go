// Package storage is the optional persistence layer shared by
// backup-manager and backup-service. It keeps the run history (one record
// per archiver invocation) and the per-minute firing keys that let
// dedup_per_minute survive a service restart.
//
// Two drivers exist: "file" (JSON Lines plus an atomically replaced JSON
// map) and "sqlite" (modernc.org/sqlite, no cgo).
package storage
