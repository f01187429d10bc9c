package lock_test

import (
	"errors"
	"path/filepath"
	"testing"

	"allsky/internal/lock"
)

func TestSecondHolderIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "timelapse.lock")
	first := lock.New(path)
	second := lock.New(path)

	if err := first.TryAcquire(); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := second.TryAcquire(); !errors.Is(err, lock.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := second.TryAcquire(); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
}

func TestLockIsNotReentrant(t *testing.T) {
	l := lock.New(filepath.Join(t.TempDir(), "timelapse.lock"))
	if err := l.TryAcquire(); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	if err := l.TryAcquire(); !errors.Is(err, lock.ErrLocked) {
		t.Fatalf("expected ErrLocked on re-acquire, got %v", err)
	}
}

func TestReleaseUnheldIsNoop(t *testing.T) {
	l := lock.New(filepath.Join(t.TempDir(), "timelapse.lock"))
	if err := l.Release(); err != nil {
		t.Fatalf("release of unheld lock failed: %v", err)
	}
}
