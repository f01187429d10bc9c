// Package queue persists build requests and upload hand-offs in SQLite.
//
// Build requests are consumed exactly once: Claim flips the oldest pending
// row to claimed inside a transaction, and Next polls Claim until a request
// arrives or the context ends. A request with Stop set tells the worker to
// exit. Upload rows are only produced here; transfer workers consume them.
//
// The database is transient storage for in-flight work. Schema changes bump
// schemaVersion; operators delete queue.db to adopt the new layout.
package queue
