// Package storage records completed runs to SQLite and answers the
// historical queries `testforge report` and `testforge compare` need:
// the latest run, a specific run by id, per-test attempt history, and
// a snapshot export for archival.
package storage
