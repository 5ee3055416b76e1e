// Package archive creates single-file tar archives of a source path and lists
// the archives already present in the backup directory.
package archive
