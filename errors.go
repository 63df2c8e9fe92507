// Package jsonblite is an embeddable, single-file, key-value store for
// structured values encoded with CBOR. It provides synchronous
// read/write/delete/keys operations plus maintenance (vacuum, dump) and
// survives process crashes via a write-ahead journal and crash recovery
// protocol, coordinating across processes with OS advisory file locks.
package jsonblite

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers match with errors.Is; wrapping functions
// below attach operation-specific detail without losing the kind.
var (
	// ErrNotFound is returned by Read when the key is absent from the index.
	ErrNotFound = errors.New("jsonblite: key not found")

	// ErrClosed is returned when operating on a DB after Close.
	ErrClosed = errors.New("jsonblite: database is closed")

	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("jsonblite: invalid key")

	// ErrCorruptFile is returned when the header, index, or file length
	// is inconsistent with the format this package writes.
	ErrCorruptFile = errors.New("jsonblite: corrupt file")

	// ErrLockFailure is returned when an OS advisory lock syscall fails.
	ErrLockFailure = errors.New("jsonblite: lock failure")

	// ErrIoError wraps any lower-level read/write/open/rename failure.
	ErrIoError = errors.New("jsonblite: io error")

	// ErrJournalCorrupt is returned internally when a journal file fails
	// to decode during recovery; callers never see it directly, since a
	// corrupt journal is treated as "no journal" (§4.4).
	ErrJournalCorrupt = errors.New("jsonblite: journal corrupt")
)

// InvalidKeyError reports an invalid key with a detail message.
func InvalidKeyError(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidKey, detail)
}

// CorruptFileError reports a structural problem in the file.
func CorruptFileError(detail string) error {
	return fmt.Errorf("%w: %s", ErrCorruptFile, detail)
}

// LockFailureError reports a failed lock/unlock syscall.
func LockFailureError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrLockFailure, op, cause)
}

// IoError reports a failed read/write/open/rename. A nil cause means the
// operation in fact succeeded, so IoError returns nil — this lets call
// sites write `return IoError("op", f.Close())` without an extra branch.
func IoError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrIoError, op, cause)
}

// JournalCorruptError reports a journal that failed to decode.
func JournalCorruptError(detail string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrJournalCorrupt, detail)
	}
	return fmt.Errorf("%w: %s: %w", ErrJournalCorrupt, detail, cause)
}
