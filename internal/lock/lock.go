// Package lock provides the host-wide build lock shared by artifact workers.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked reports that another holder owns the lock.
var ErrLocked = errors.New("lock already held")

// Lock is an exclusive, non-blocking, non-reentrant file lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// New returns a lock backed by path. The file is created on first acquire.
func New(path string) *Lock {
	return &Lock{path: path, fl: flock.New(path)}
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// TryAcquire takes the lock or returns ErrLocked immediately. Acquiring a
// lock this Lock already holds also returns ErrLocked.
func (l *Lock) TryAcquire() error {
	if l.fl.Locked() {
		return fmt.Errorf("%w: %s", ErrLocked, l.path)
	}
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure lock directory: %w", err)
		}
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, l.path)
	}
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
