// Package estimate computes transfer-size estimates and checks destination
// free space before a run is allowed to start. Estimates exist to refuse
// doomed runs, not to commit to a byte count: overshoot is acceptable,
// undershoot costs hours of wasted transfer.
package estimate

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/majorcontext/berm/internal/btrfs"
	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/runner"
	"github.com/majorcontext/berm/internal/units"
)

// Floor is the minimum returned estimate.
const Floor = 10 * units.MiB

// dryRunCap bounds how much of the dry-run stream is counted. The
// metadata-only stream is small; anything beyond this cap only delays
// the answer without improving it.
const dryRunCap = 10 * units.MiB

// dryRunMargin and fallbackRatio shape the incremental estimates: a 5%
// cushion on the counted dry run, or 10% of the source size (plus the
// same cushion) when the dry run fails.
const (
	dryRunMargin  = 1.05
	fallbackRatio = 0.10
)

// Full estimates a full transfer of the subvolume at path: its reported
// Total bytes, or a du fallback when the field cannot be parsed.
func Full(ctx context.Context, path string) (int64, error) {
	info, err := btrfs.Show(ctx, path)
	if err == nil && info.TotalBytes > 0 {
		return withFloor(info.TotalBytes), nil
	}

	res, duErr := runner.Run(ctx, "du", "-sb", path)
	if duErr != nil {
		if err != nil {
			return 0, err
		}
		return 0, duErr
	}
	fields := strings.Fields(string(res.Stdout))
	if len(fields) == 0 {
		return 0, errs.Newf(errs.KindCommandFailed, "empty du output for %s", path).
			With("path", path)
	}
	n, perr := strconv.ParseInt(fields[0], 10, 64)
	if perr != nil {
		return 0, errs.Wrap(errs.KindCommandFailed, "malformed du output", perr).
			With("path", path)
	}
	return withFloor(n), nil
}

// Incremental estimates the delta from parentPath to currentPath by
// counting a --no-data dry run of the send, capped at dryRunCap. If the
// dry run fails for any reason the estimate falls back to a fraction of
// sourceBytes. Both paths return at least Floor.
func Incremental(ctx context.Context, parentPath, currentPath string, sourceBytes int64) int64 {
	counted, err := countDryRun(ctx, parentPath, currentPath)
	if err != nil {
		return withFloor(int64(float64(sourceBytes) * fallbackRatio * dryRunMargin))
	}
	return withFloor(int64(float64(counted) * dryRunMargin))
}

// countDryRun runs `btrfs send --no-data -p parent current` and counts
// the stream bytes, stopping at dryRunCap.
func countDryRun(ctx context.Context, parentPath, currentPath string) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd, err := runner.Command(ctx, "btrfs", "send", "--no-data", "-p", parentPath, currentPath)
	if err != nil {
		return 0, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("dry-run stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting dry run: %w", err)
	}

	counted, copyErr := io.Copy(io.Discard, io.LimitReader(stdout, dryRunCap))
	truncated := counted == dryRunCap

	if truncated {
		// Enough signal; stop the child rather than drain the rest.
		cancel()
	}
	waitErr := cmd.Wait()

	if copyErr != nil {
		return 0, fmt.Errorf("counting dry-run stream: %w", copyErr)
	}
	if waitErr != nil && !truncated {
		return 0, fmt.Errorf("dry run failed: %w", waitErr)
	}
	return counted, nil
}

func withFloor(n int64) int64 {
	if n < Floor {
		return Floor
	}
	return n
}
