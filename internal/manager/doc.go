// Package manager implements the operator-facing actions of backup-manager:
// listing, creating and deleting schedules, browsing archives and run
// history, and starting or stopping the backup service unit.
package manager
