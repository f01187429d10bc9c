// Package catalog is the SQLite metadata store for captured frames and the
// artifacts derived from them.
//
// Frames are recorded with their logical day-date already resolved, so the
// frame selector can query a night session by a single date. Artifact rows
// live in one table per kind and are unique by file path; the worker deletes
// a stale row before recording a rebuilt artifact. Every write commits on
// its own.
//
// Schema changes bump schemaVersion; operators delete catalog.db to adopt
// the new layout.
package catalog
