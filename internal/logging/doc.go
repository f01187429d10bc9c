// Package logging assembles structured slog loggers and formatting helpers used
// across allsky components.
//
// It owns the configurable console/JSON/colour handlers, centralizes level and
// output plumbing, and exposes context-aware helpers so build code can tag log
// lines with request IDs, day-dates, and partitions. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape and routing as the rest of the system.
package logging
