package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/majorcontext/berm/internal/errs"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "berm.lock")
}

func TestAcquireWritesPidAndReleases(t *testing.T) {
	path := lockPath(t)

	guard, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading lock file: %v", err)
	}
	want := fmt.Sprintf("%d\n", os.Getpid())
	if string(data) != want {
		t.Errorf("lock file contents = %q, want %q", data, want)
	}

	if err := guard.Release(); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file should be removed on release")
	}
}

func TestAcquireFailsWhenOwnerAlive(t *testing.T) {
	path := lockPath(t)

	guard, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("first Acquire() error: %v", err)
	}
	defer guard.Release()

	// The owner (this process) is alive, so a second acquisition must
	// fail rather than steal the lock.
	_, err = Acquire(context.Background(), path)
	if err == nil {
		t.Fatal("second Acquire should fail")
	}
	if !errs.IsKind(err, errs.KindLockUnavailable) {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindLockUnavailable)
	}
}

func TestAcquireRemovesStaleLock(t *testing.T) {
	path := lockPath(t)

	// A pid far beyond pid_max cannot belong to a live process.
	if err := os.WriteFile(path, []byte("999999999\n"), 0o600); err != nil {
		t.Fatalf("writing stale lock: %v", err)
	}

	guard, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("Acquire() should remove the stale lock, got: %v", err)
	}
	defer guard.Release()

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), fmt.Sprintf("%d", os.Getpid())) {
		t.Errorf("lock file should now hold our pid, got %q", data)
	}
}

func TestAcquireFailsOnMalformedLock(t *testing.T) {
	path := lockPath(t)

	if err := os.WriteFile(path, []byte("not a pid\n"), 0o600); err != nil {
		t.Fatalf("writing malformed lock: %v", err)
	}

	_, err := Acquire(context.Background(), path)
	if err == nil {
		t.Fatal("Acquire should refuse a malformed lock file")
	}
	if !errs.IsKind(err, errs.KindLockUnavailable) {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindLockUnavailable)
	}
	if errs.HintOf(err) == "" {
		t.Error("malformed lock error should carry a removal hint")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := lockPath(t)

	guard, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if err := guard.Release(); err != nil {
		t.Fatalf("first Release() error: %v", err)
	}
	if err := guard.Release(); err != nil {
		t.Errorf("second Release() should be a no-op, got: %v", err)
	}
}

func TestAcquireModeIsOwnerOnly(t *testing.T) {
	path := lockPath(t)

	guard, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer guard.Release()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat lock file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("lock file mode = %o, want 600", perm)
	}
}
