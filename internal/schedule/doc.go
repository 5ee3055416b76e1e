// Package schedule holds the backup schedule record, its validator, and the
// line-oriented file store the manager edits and the service polls.
//
// A schedule line looks like:
//
//	/srv/data;02:30;nightly
//
// Fields are not escaped: a ';' inside a path or name corrupts the line.
package schedule
