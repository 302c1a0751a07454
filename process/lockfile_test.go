package process

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireThenReleaseRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.lock")
	lf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file missing after Acquire: %v", err)
	}
	if err := lf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected the lock file to be removed after Release")
	}
}

func TestAcquireFailsWhileHeldByALiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.lock")
	lf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lf.Release()

	if _, err := Acquire(path); err == nil {
		t.Fatal("expected a second Acquire against a live-held lock to fail")
	}
}

func TestAcquireCleansUpStaleLockFromDeadPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.lock")
	// A PID essentially guaranteed not to be alive in any test environment.
	if err := os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0o644); err != nil {
		t.Fatal(err)
	}
	lf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire over a stale lock: %v", err)
	}
	defer lf.Release()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strconv.Itoa(os.Getpid()) != string(raw) {
		t.Fatalf("lock file contents = %q, want current pid %d", raw, os.Getpid())
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.lock")
	lf, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := lf.Release(); err != nil {
		t.Fatal(err)
	}
	if err := lf.Release(); err != nil {
		t.Fatalf("second Release returned an error: %v", err)
	}
}
