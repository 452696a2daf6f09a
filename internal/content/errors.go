package content

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionMismatch means the persisted cache belongs to another build.
	ErrVersionMismatch = errors.New("persisted version does not match static dataset")

	// ErrIncompleteCache means one of the persisted collections is missing.
	ErrIncompleteCache = errors.New("persisted cache is incomplete")
)

// StorageFailure describes a failed read or write against the persistent
// store. It is logged and never returned from exported methods.
type StorageFailure struct {
	Op  string // "load" or "cache"
	Key string
	Err error
}

func (e *StorageFailure) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("content %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("content %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageFailure) Unwrap() error {
	return e.Err
}
