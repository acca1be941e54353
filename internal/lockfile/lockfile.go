// Package lockfile provides the single-writer run lock. The lock is a
// file created with O_EXCL holding the owner's pid, reinforced with an
// advisory flock on the open descriptor. A lock file whose recorded owner
// no longer exists is removed and acquisition retried exactly once.
package lockfile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/berm/internal/errs"
)

// acquireTimeout bounds the whole acquisition, including the single
// stale-owner retry.
const acquireTimeout = 30 * time.Second

// Guard represents a held lock. Release is safe to call more than once
// and must run on every exit path.
type Guard struct {
	path string
	file *os.File
}

// Acquire takes the exclusive run lock at path. On contention the stored
// pid is probed with signal 0; a dead owner's file is removed and creation
// retried once. A malformed lock file is fatal and left for the operator.
func Acquire(ctx context.Context, path string) (*Guard, error) {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.KindTimeout, "timed out acquiring run lock", err).
				With("lock_file", path)
		}

		g, err := tryCreate(path)
		if err == nil {
			return g, nil
		}
		if !os.IsExist(err) {
			return nil, errs.Wrap(errs.KindLockUnavailable, "creating lock file", err).
				With("lock_file", path)
		}
		if attempt > 0 {
			// Already removed one stale file; a second EEXIST means live
			// contention.
			return nil, lockHeldError(path)
		}

		pid, perr := readOwner(path)
		if perr != nil {
			return nil, perr
		}
		if processAlive(pid) {
			return nil, lockHeldError(path).With("owner_pid", strconv.Itoa(pid))
		}

		// Stale lock: the recorded owner is gone.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errs.Wrap(errs.KindLockUnavailable, "removing stale lock file", err).
				With("lock_file", path).
				WithHint(fmt.Sprintf("remove %s manually", path))
		}
	}
}

func tryCreate(path string) (*Guard, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errs.Wrap(errs.KindLockUnavailable, "placing advisory lock", err).
			With("lock_file", path)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errs.Wrap(errs.KindLockUnavailable, "writing lock file", err).
			With("lock_file", path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errs.Wrap(errs.KindLockUnavailable, "syncing lock file", err).
			With("lock_file", path)
	}
	return &Guard{path: path, file: f}, nil
}

// readOwner parses the pid stored in an existing lock file. Malformed
// contents are fatal: guessing at ownership risks breaking a live run.
func readOwner(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Raced with the owner's release; treat as free.
			return 0, nil
		}
		return 0, errs.Wrap(errs.KindLockUnavailable, "reading lock file", err).
			With("lock_file", path).
			WithHint(fmt.Sprintf("inspect and remove %s manually", path))
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil || pid <= 0 {
		return 0, errs.Newf(errs.KindLockUnavailable, "lock file %s has malformed contents", path).
			With("lock_file", path).
			WithHint(fmt.Sprintf("remove %s manually if no backup is running", path))
	}
	return pid, nil
}

// processAlive probes pid with signal 0. EPERM means the process exists
// but belongs to someone else, which still counts as alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

func lockHeldError(path string) *errs.Error {
	return errs.Newf(errs.KindLockUnavailable, "another backup run holds the lock").
		With("lock_file", path).
		WithHint("wait for the running backup to finish")
}

// Release drops the advisory lock and removes the lock file. Errors are
// returned for logging but the guard is unusable afterward either way.
func (g *Guard) Release() error {
	if g == nil || g.file == nil {
		return nil
	}
	f := g.file
	g.file = nil

	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	closeErr := f.Close()
	removeErr := os.Remove(g.path)

	if unlockErr != nil {
		return fmt.Errorf("unlocking %s: %w", g.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", g.path, closeErr)
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("removing %s: %w", g.path, removeErr)
	}
	return nil
}

// Path returns the lock file path.
func (g *Guard) Path() string {
	return g.path
}
