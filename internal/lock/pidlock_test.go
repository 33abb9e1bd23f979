package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "trestle.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	pid, err := ReadPID(lockPath)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pid %d in lock file, got %d", os.Getpid(), pid)
	}
}

func TestAcquireReleaseReacquire(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "trestle.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	l2, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	_ = l2.Release()
}

func TestReadPIDRejectsGarbage(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "trestle.lock")
	if err := os.WriteFile(lockPath, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadPID(lockPath); err == nil {
		t.Fatalf("expected parse error for garbage pid file")
	}
}
