// Package poller implements the backup service loop.
//
// Every cycle reads the whole schedule file, formats the current local time as
// HH:MM and archives each schedule whose time field is exactly that string.
// The interval must be below one minute so that no minute is skipped. Without
// DedupPerMinute a minute sampled twice fires twice; that is the documented
// behavior, not a bug.
package poller
