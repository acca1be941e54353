package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/history"
	"github.com/majorcontext/berm/internal/log"
	"github.com/majorcontext/berm/internal/pipeline"
	"github.com/majorcontext/berm/internal/snapshot"
	"github.com/majorcontext/berm/internal/units"
)

// Run executes one backup run end to end and records it in the ledger.
func (e *Engine) Run(ctx context.Context) error {
	runID := newRunID()
	log.WithRun(runID)
	started := e.now()

	rs := &RunState{}
	est, err := e.run(ctx, rs)

	if e.hist != nil {
		rec := history.Run{
			RunID:          runID,
			StartedAt:      started,
			FinishedAt:     e.now(),
			Kind:           rs.Kind(),
			Snapshot:       rs.SnapshotName,
			Parent:         rs.Parent,
			EstimatedBytes: est,
			Outcome:        "success",
		}
		if err != nil {
			rec.Outcome = "failed"
			rec.ErrorKind = errs.KindOf(err).String()
			rec.Error = err.Error()
		}
		if herr := e.hist.Append(rec); herr != nil {
			e.obs.Warn(fmt.Sprintf("recording run in history: %v", herr))
		}
	}
	return err
}

// run holds the lock for the whole sequence, including failure cleanup.
func (e *Engine) run(ctx context.Context, rs *RunState) (int64, error) {
	guard, err := e.acquireLock(ctx, e.cfg.LockFile)
	if err != nil {
		return 0, err
	}
	defer func() {
		if rerr := guard.Release(); rerr != nil {
			e.obs.Warn(fmt.Sprintf("releasing run lock: %v", rerr))
		}
	}()
	rs.advance(StateLocked)
	log.Debug("lock acquired", "lock_file", e.cfg.LockFile)

	est, err := e.steps(ctx, rs)
	if err != nil && !rs.BackupSuccessful {
		reached := rs.State()
		rs.advance(StateCleaningUp)
		err = e.cleanup(ctx, rs, reached, err)
		rs.advance(StateFailed)
	}
	return est, err
}

// steps is the forward path of the state machine. Any error diverts the
// caller into cleanup.
func (e *Engine) steps(ctx context.Context, rs *RunState) (int64, error) {
	if err := e.verifyMount(ctx, e.cfg.SourceVolume); err != nil {
		return 0, err
	}
	if err := e.verifyMount(ctx, e.cfg.DestinationMount); err != nil {
		return 0, err
	}
	rs.advance(StateMounted)

	name, err := e.snaps.Create(ctx)
	if err != nil {
		return 0, err
	}
	rs.SnapshotName = name
	rs.SnapshotCreated = true
	rs.advance(StateSnapshotCreated)
	e.obs.Info(fmt.Sprintf("created snapshot %s", name))

	parent, err := e.snaps.SelectParent(name)
	if err != nil {
		return 0, err
	}
	rs.Parent = parent
	rs.advance(StateReady)

	sourcePath := e.snaps.SourcePath(name)
	var est int64
	if rs.Incremental() {
		e.obs.Info(fmt.Sprintf("incremental backup from parent %s", parent))

		// An inconsistent ancestor pair is a refuse-to-proceed condition:
		// sending a delta on top of divergent sides corrupts silently.
		if err := e.verifyParent(ctx, e.snaps.SourcePath(parent), e.snaps.DestPath(parent)); err != nil {
			return 0, err
		}

		sourceBytes, serr := e.estimateFull(ctx, sourcePath)
		if serr != nil {
			log.Debug("source size unavailable for incremental fallback", "error", serr)
			sourceBytes = 0
		}
		est = e.estimateIncr(ctx, e.snaps.SourcePath(parent), sourcePath, sourceBytes)
	} else {
		e.obs.Info("no common ancestor on destination; taking a full backup")
		est, err = e.estimateFull(ctx, sourcePath)
		if err != nil {
			return 0, err
		}
	}
	log.Debug("transfer size estimated", "bytes", est, "kind", rs.Kind())

	if err := e.checkSpace(ctx, e.cfg.DestinationMount, est, e.cfg.BufferBytes()); err != nil {
		return est, err
	}
	rs.advance(StateApproved)
	e.obs.Info(fmt.Sprintf("estimated transfer %s, destination space approved", units.Format(est)))

	opts := pipeline.Options{
		SnapshotPath:   sourcePath,
		DestDir:        e.snaps.DestDir(),
		DestPath:       e.snaps.DestPath(name),
		EstimatedBytes: est,
		DeletePartial:  e.snaps.Delete,
		Callbacks: pipeline.Callbacks{
			Info:     e.obs.Info,
			Warn:     e.obs.Warn,
			Progress: e.obs.Progress,
		},
	}
	if rs.Incremental() {
		opts.ParentPath = e.snaps.SourcePath(parent)
	}
	if err := e.transfer(ctx, opts); err != nil {
		return est, err
	}
	rs.advance(StateTransferred)

	if err := e.verifyPair(ctx, sourcePath, e.snaps.DestPath(name)); err != nil {
		return est, err
	}
	rs.BackupSuccessful = true
	rs.advance(StateVerified)
	e.obs.Info(fmt.Sprintf("verified: destination %s matches source", name))

	if e.cfg.RetentionDays > 0 {
		if err := e.pruneRetention(ctx, name); err != nil {
			// The backup itself is verified; a prune failure must not
			// tear it down. Surface the error without cleanup.
			return est, err
		}
	}
	rs.advance(StateRetained)
	return est, nil
}

// cleanup removes the artifacts a failed run may have left behind, on
// both sides, driven by what was actually created. It runs to completion
// even when the surrounding context is cancelled, and its own failures
// are attached to the primary error, never replacing it. reached is the
// last forward state the run got to before it failed.
func (e *Engine) cleanup(ctx context.Context, rs *RunState, reached State, primary error) error {
	if reached < StateMounted {
		// Lock, mount, or dependency failures have no filesystem
		// side-effect to undo, and the snapshot directories may not even
		// be reachable.
		return primary
	}

	ctx = context.WithoutCancel(ctx)
	var secondary []error

	remove := func(path, side string) {
		if !snapshot.Exists(path) {
			return
		}
		e.obs.Warn(fmt.Sprintf("removing %s snapshot %s", side, path))
		if err := e.snaps.Delete(ctx, path); err != nil {
			secondary = append(secondary, errs.Wrap(errs.KindCleanupFailed,
				fmt.Sprintf("removing %s snapshot", side), err).With("path", path))
		}
	}

	if rs.SnapshotCreated {
		remove(e.snaps.SourcePath(rs.SnapshotName), "source")
		remove(e.snaps.DestPath(rs.SnapshotName), "destination")
	} else if orphan := e.findOrphan(); orphan != "" {
		// A prior run died without cleaning up; take the chance now.
		remove(e.snaps.SourcePath(orphan), "orphaned source")
	}

	for _, err := range secondary {
		e.obs.Warn(err.Error())
		log.Warn("cleanup failure", "error", err)
	}

	var tagged *errs.Error
	if errors.As(primary, &tagged) {
		tagged.Suppress(secondary...)
		return primary
	}
	if len(secondary) > 0 {
		return errs.Wrap(errs.KindCleanupFailed, "run failed and cleanup was incomplete", primary).
			Suppress(secondary...)
	}
	return primary
}

// findOrphan returns the newest source snapshot that never made it to the
// destination, if any. Such a snapshot is the residue of an abnormal exit
// before this engine's cleanup could run.
func (e *Engine) findOrphan() string {
	source, err := e.snaps.ListSource()
	if err != nil || len(source) == 0 {
		return ""
	}
	dest, err := e.snaps.ListDest()
	if err != nil {
		return ""
	}
	onDest := make(map[string]bool, len(dest))
	for _, name := range dest {
		onDest[name] = true
	}
	newest := source[len(source)-1]
	if !onDest[newest] {
		return newest
	}
	return ""
}

// VerifyBaseline re-checks the newest common snapshot pair's identifier
// contract without taking a backup.
func (e *Engine) VerifyBaseline(ctx context.Context) error {
	name, err := e.snaps.SelectParent("")
	if err != nil {
		return err
	}
	if name == "" {
		return errs.New(errs.KindSnapshotOperationFailed, "no common snapshot exists on both sides").
			WithHint("run a backup to establish a baseline")
	}
	if err := e.verifyPair(ctx, e.snaps.SourcePath(name), e.snaps.DestPath(name)); err != nil {
		return err
	}
	e.obs.Info(fmt.Sprintf("baseline pair %s is consistent", name))
	return nil
}
