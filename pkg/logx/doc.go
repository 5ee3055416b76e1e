// Package logx is the logging layer shared by backup-manager and
// backup-service: a small Logger over zerolog plus a Service that owns the
// sinks and can be reconfigured at runtime.
//
// Sinks:
//   - console (stderr, short timestamp and caller)
//   - file, as plain "[DD/MM/YYYY HH:MM] message" lines or as JSON
//   - Telegram, for warnings and errors (min level, rate limited)
package logx
