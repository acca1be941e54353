package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/log"
	"github.com/majorcontext/berm/internal/snapshot"
)

// pruneVictims selects snapshot names to delete from one side: those
// whose embedded timestamp is older than cutoff, while always leaving at
// least keepMin behind. The embedded timestamp is authoritative even when
// filesystem modification times disagree (clock skew across sides).
// names must be sorted oldest first, as List returns them.
func pruneVictims(names []string, base string, cutoff time.Time, keepMin int) []string {
	if keepMin < 1 {
		keepMin = 1
	}
	remaining := len(names)
	var victims []string
	for _, name := range names {
		if remaining <= keepMin {
			break
		}
		ts, ok := snapshot.ParseName(base, name)
		if !ok {
			continue
		}
		if ts.Before(cutoff) {
			victims = append(victims, name)
			remaining--
		}
	}
	return victims
}

// pruneRetention removes over-age snapshots on both sides after a
// verified run. The keep-minimum floor guarantees the pair just verified
// — the next run's parent — survives on each side; current is excluded
// belt-and-suspenders anyway.
func (e *Engine) pruneRetention(ctx context.Context, current string) error {
	cutoff := e.now().Add(-time.Duration(e.cfg.RetentionDays) * 24 * time.Hour)

	sides := []struct {
		label string
		list  func() ([]string, error)
		path  func(string) string
	}{
		{"source", e.snaps.ListSource, e.snaps.SourcePath},
		{"destination", e.snaps.ListDest, e.snaps.DestPath},
	}

	var firstErr error
	for _, side := range sides {
		names, err := side.list()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, name := range pruneVictims(names, e.snaps.Base(), cutoff, e.cfg.KeepMinimum) {
			if name == current {
				continue
			}
			e.obs.Info(fmt.Sprintf("pruning %s snapshot %s", side.label, name))
			if err := e.snaps.Delete(ctx, side.path(name)); err != nil {
				log.Warn("prune failed", "side", side.label, "snapshot", name, "error", err)
				if firstErr == nil {
					firstErr = errs.Wrap(errs.KindSnapshotOperationFailed,
						fmt.Sprintf("pruning %s snapshot %s", side.label, name), err)
				}
			}
		}
	}
	return firstErr
}

// Prune runs retention pruning on its own, under the run lock. With
// dryRun set it only reports what would be removed.
func (e *Engine) Prune(ctx context.Context, dryRun bool) error {
	if e.cfg.RetentionDays <= 0 {
		return errs.New(errs.KindInvalidInput, "retention_days is not configured; nothing to prune").
			WithHint("set retention_days in the config to enable pruning")
	}

	guard, err := e.acquireLock(ctx, e.cfg.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := guard.Release(); rerr != nil {
			e.obs.Warn(fmt.Sprintf("releasing run lock: %v", rerr))
		}
	}()

	if err := e.verifyMount(ctx, e.cfg.SourceVolume); err != nil {
		return err
	}
	if err := e.verifyMount(ctx, e.cfg.DestinationMount); err != nil {
		return err
	}

	if !dryRun {
		return e.pruneRetention(ctx, "")
	}

	cutoff := e.now().Add(-time.Duration(e.cfg.RetentionDays) * 24 * time.Hour)
	for _, side := range []struct {
		label string
		list  func() ([]string, error)
	}{
		{"source", e.snaps.ListSource},
		{"destination", e.snaps.ListDest},
	} {
		names, err := side.list()
		if err != nil {
			return err
		}
		for _, name := range pruneVictims(names, e.snaps.Base(), cutoff, e.cfg.KeepMinimum) {
			e.obs.Info(fmt.Sprintf("would prune %s snapshot %s", side.label, name))
		}
	}
	return nil
}
