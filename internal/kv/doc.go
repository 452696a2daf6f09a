// Package kv provides the small synchronous key-value capability the
// content synchronizer persists to, with in-memory, file-backed (zstd) and
// SQLite backends.
package kv
