// Package mount verifies that backup endpoints are mounted. The engine
// never mounts anything itself; a missing mount is a refuse-to-proceed
// condition for the operator to fix.
package mount

import (
	"context"
	"fmt"
	"time"

	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/runner"
)

const (
	checkAttempts = 3
	checkPause    = 2 * time.Second
)

// Verify confirms path is a mount point, retrying briefly to ride out
// transient automounter races. A definitive negative yields MountMissing.
func Verify(ctx context.Context, path string) error {
	var last error
	for attempt := 0; attempt < checkAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(checkPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		res, err := runner.Run(ctx, "mountpoint", "-q", path)
		if err == nil {
			return nil
		}
		if errs.IsKind(err, errs.KindCommandFailed) && res.ExitCode > 0 {
			// mountpoint answered: not a mount point. No point retrying
			// more than the allotted attempts; remember the outcome.
			last = errs.Newf(errs.KindMountMissing, "%s is not a mount point", path).
				With("path", path).
				WithHint(fmt.Sprintf("mount the filesystem at %s and re-run", path))
			continue
		}
		// Tool missing, permission trouble, or cancellation.
		return err
	}
	return last
}
