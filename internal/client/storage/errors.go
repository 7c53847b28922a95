package storage

import (
	"errors"
	"fmt"
)

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrRecordNotFound indicates that a local record was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrOperationNotFound indicates that a queued operation was not found
	ErrOperationNotFound = errors.New("operation not found")

	// ErrCacheMiss indicates that no response is cached under the key
	ErrCacheMiss = errors.New("cached response not found")

	// ErrInvalidEntityType indicates an empty or reserved entity type
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrStoreLocked indicates that another process holds the database file
	ErrStoreLocked = errors.New("local store is locked by another process")

	// ErrStorageUnavailable marks failures of the storage engine itself
	ErrStorageUnavailable = errors.New("local storage unavailable")
)

// UnavailableError wraps an engine failure so callers can switch to
// degraded mode with errors.Is(err, ErrStorageUnavailable).
type UnavailableError struct {
	Err error
	Op  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("local storage unavailable (%s): %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

// Unavailable wraps err as an UnavailableError unless it is nil or one of
// the domain sentinels above.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrAuthNotFound, ErrRecordNotFound, ErrOperationNotFound,
		ErrCacheMiss, ErrInvalidEntityType, ErrStorageUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &UnavailableError{Op: op, Err: err}
}

// IsDegraded reports whether err means the local store itself failed.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
