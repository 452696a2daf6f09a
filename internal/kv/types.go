package kv

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for store operations
var (
	// ErrNotFound is returned when a key has no value
	ErrNotFound = errors.New("key not found")

	// ErrCorrupted is returned when a stored value cannot be read back
	ErrCorrupted = errors.New("stored value corrupted")

	// ErrClosed is returned by any operation on a closed store
	ErrClosed = errors.New("store closed")

	// ErrUnknownBackend is returned by Open for an unsupported backend name
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Store is the capability consumed by the content synchronizer. Both calls
// are synchronous and may fail; a missing key yields ErrNotFound.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// ExtendedStore adds housekeeping used by the CLI and tests.
type ExtendedStore interface {
	Store

	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// StoreError records the operation and key a backend failure happened on.
type StoreError struct {
	Op  string // "get", "set", "delete"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("kv %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config selects and parameterizes a backend.
type Config struct {
	Backend          string // memory, file or sqlite
	Path             string // directory (file) or database file (sqlite)
	CompressionLevel int    // Zstd level for the file backend, 0 disables
	BusyTimeout      time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendFile,
		CompressionLevel: 3,
		BusyTimeout:      5 * time.Second,
	}
}

// Open creates the backend named by cfg.Backend.
func Open(cfg Config) (ExtendedStore, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(cfg.Path, cfg.CompressionLevel)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path, cfg.BusyTimeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
