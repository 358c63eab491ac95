// Package database provides the SQLite archive of grab runs.
//
// The archive lives in the XDG data directory and records:
//   - every page the crawler dispatched, with its template and directory
//   - every download destination with size, SHA3-256 digest and outcome
//   - one summary row per run, plus the full run report as JSON
//
// The download directory itself stays the source of truth for what exists;
// the archive answers questions about it ("which files failed last time",
// "where did this file come from") without walking the tree.
//
// SQLite is provided by modernc.org/sqlite, which needs no CGO.
package database
