package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file created inside the data directory.
const LockFileName = ".feedsearch.lock"

// DataDirLock is a cross-process exclusive lock on a data directory, so
// that only one process owns its index and queue at a time.
type DataDirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDataDirLock creates an unlocked lock for dir.
func NewDataDirLock(dir string) *DataDirLock {
	path := filepath.Join(dir, LockFileName)
	return &DataDirLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. It reports false when
// another process holds it.
func (l *DataDirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create data directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *DataDirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DataDirLock) Path() string { return l.path }

// Locked reports whether this handle holds the lock.
func (l *DataDirLock) Locked() bool { return l.locked }
