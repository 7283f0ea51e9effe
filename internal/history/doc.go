// Package history provides durable storage for regeneration runs.
//
// Each run records the plan it executed, the working directory, and a
// per-step log: the command line sent to the workflow tool, its exit
// code, and the SHA-256 of any fixture snapshotted by the step. The
// store backs `sfregen history` and lets a fixture file be traced back
// to the exact run that produced it.
//
// Storage is SQLite with WAL mode. The connection pool is pinned to a
// single connection; SQLite allows one writer at a time and a second
// connection only buys SQLITE_BUSY errors.
package history
