// OS-level file locking for cross-process coordination.
//
// fileLock wraps flock(2) / LockFileEx with a mutex that guards the file
// handle's lifetime, so that Fd() cannot race with Close() on the same
// *os.File. Every acquisition the engine makes is paired with a release on
// all exit paths (C3) — callers always reach for `defer l.Unlock()`
// immediately after a successful Lock.
package jsonblite

import (
	"os"
	"sync"
)

// lockMode selects shared (read) or exclusive (write) locking.
type lockMode int

const (
	lockShared lockMode = iota
	lockExclusive
)

// fileLock coordinates OS-level file locks with safe handle teardown.
type fileLock struct {
	mu sync.Mutex
	f  *os.File
}

// Lock acquires a shared or exclusive whole-file advisory lock. Blocking:
// there is no timeout at this layer (§5).
func (l *fileLock) Lock(mode lockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	if err := l.lock(mode); err != nil {
		return LockFailureError("lock", err)
	}
	return nil
}

// Unlock releases the advisory lock.
func (l *fileLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	if err := l.unlock(); err != nil {
		return LockFailureError("unlock", err)
	}
	return nil
}

// setFile swaps the underlying file handle. Passing nil drains any
// in-flight flock and disables further locking until setFile is called
// again with a live handle.
func (l *fileLock) setFile(f *os.File) {
	l.mu.Lock()
	l.f = f
	l.mu.Unlock()
}
