package estimate

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/berm/internal/btrfs"
	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/units"
)

const (
	spaceAttempts = 3
	spacePause    = 3 * time.Second
)

// CheckSpace verifies that mount has room for required bytes plus the
// safety buffer. The btrfs free-space estimate is authoritative; statfs
// is the fallback when the usage output cannot be obtained. Transient
// failures during heavy filesystem activity are retried.
func CheckSpace(ctx context.Context, mount string, required, buffer int64) error {
	var free int64
	var err error
	for attempt := 0; attempt < spaceAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(spacePause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		free, err = btrfs.FreeEstimated(ctx, mount)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return err
		}
	}
	if err != nil {
		free, err = statfsFree(mount)
		if err != nil {
			return err
		}
	}

	needed := required + buffer
	if free < needed {
		return errs.Newf(errs.KindInsufficientSpace,
			"destination has %s free, need %s (%s estimated + %s buffer)",
			units.Format(free), units.Format(needed), units.Format(required), units.Format(buffer)).
			With("mount", mount).
			With("free_bytes", units.Format(free)).
			With("required_bytes", units.Format(needed)).
			WithHint("free space on the destination or prune old snapshots")
	}
	return nil
}

func statfsFree(mount string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(mount, &st); err != nil {
		return 0, errs.Wrap(errs.KindCommandFailed, "querying destination free space", err).
			With("mount", mount)
	}
	return int64(st.Bavail) * st.Bsize, nil
}
