// Package pipeline runs the three-stage send | meter | receive transfer.
// Each stage is a separately spawned child with retained handles, so the
// exit status and stderr of every stage are individually known. The meter
// sits between send and receive and emits byte counts on its stderr; the
// engine's progress reporting is parsed from it and is lossy by design.
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/runner"
)

// Stage identifies one pipeline stage in pipeline order.
type Stage string

const (
	StageSend    Stage = "send"
	StageMeter   Stage = "meter"
	StageReceive Stage = "receive"
)

// DefaultStageTimeout bounds each stage's exit wait after the stream ends.
// The send stage's exit is the end of the stream, so the meter and receive
// waits are the ones it bounds.
const DefaultStageTimeout = 300 * time.Second

// receiveNoise matches informational receive chatter that is dropped
// before lines are surfaced to the observer.
var receiveNoise = regexp.MustCompile(`write .* offset=`)

// Progress is one progress observation parsed from the meter.
type Progress struct {
	Bytes      int64
	Total      int64
	Throughput float64
	Elapsed    time.Duration
	ETA        time.Duration
}

// Callbacks is the narrow observer surface the pipeline reports through.
// Nil members are skipped.
type Callbacks struct {
	Info     func(msg string)
	Warn     func(msg string)
	Progress func(p Progress)
}

func (c Callbacks) info(msg string) {
	if c.Info != nil {
		c.Info(msg)
	}
}

func (c Callbacks) warn(msg string) {
	if c.Warn != nil {
		c.Warn(msg)
	}
}

// Options configures one pipeline run.
type Options struct {
	// SnapshotPath is the read-only source snapshot to send.
	SnapshotPath string
	// ParentPath, when set, makes the send incremental from that parent.
	ParentPath string
	// DestDir is the directory btrfs receive writes into.
	DestDir string
	// DestPath is the destination subvolume the receive creates; its
	// presence after a failure means stage C started and left a partial
	// artifact.
	DestPath string
	// EstimatedBytes is the size estimate passed to the send stage and
	// used for progress percentages.
	EstimatedBytes int64
	// StageTimeout overrides DefaultStageTimeout when positive.
	StageTimeout time.Duration
	// DeletePartial removes a half-written destination snapshot. Required.
	DeletePartial func(ctx context.Context, path string) error
	// Callbacks receives progress and filtered receive output.
	Callbacks Callbacks
}

// stageStatus is the collected outcome of one child.
type stageStatus struct {
	stage    Stage
	err      error
	timedOut bool
	stderr   *bytes.Buffer
}

// Run executes the transfer. On failure the half-written destination
// snapshot, if stage C created one, is removed before the error returns.
func Run(ctx context.Context, opts Options) error {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}

	err := run(ctx, opts)
	if err == nil {
		return nil
	}

	// Stage C may have left a partial subvolume behind. Probe rather than
	// assume: if send failed before receive created anything, there is
	// nothing to remove. Cleanup here is not cancellable.
	if info, statErr := os.Stat(opts.DestPath); statErr == nil && info.IsDir() {
		if opts.DeletePartial != nil {
			if delErr := opts.DeletePartial(context.WithoutCancel(ctx), opts.DestPath); delErr != nil {
				var e *errs.Error
				if errors.As(err, &e) {
					e.Suppress(errs.Wrap(errs.KindCleanupFailed, "removing partial destination snapshot", delErr).
						With("path", opts.DestPath))
				}
			}
		}
	}
	return err
}

func run(ctx context.Context, opts Options) error {
	sendArgs := []string{"send", "-e", "1024", "-s", strconv.FormatInt(opts.EstimatedBytes, 10)}
	if opts.ParentPath != "" {
		sendArgs = append(sendArgs, "-p", opts.ParentPath)
	}
	sendArgs = append(sendArgs, opts.SnapshotPath)

	meterArgs := []string{"-f", "-n", "-b", "-s", strconv.FormatInt(opts.EstimatedBytes, 10)}

	send, err := runner.Command(ctx, "btrfs", sendArgs...)
	if err != nil {
		return err
	}
	meter, err := runner.Command(ctx, "pv", meterArgs...)
	if err != nil {
		return err
	}
	receive, err := runner.Command(ctx, "btrfs", "receive", opts.DestDir)
	if err != nil {
		return err
	}

	// Explicit pipes between the stages. The parent closes its copies
	// once the children hold theirs, so EOF propagates naturally.
	sendOut, meterIn, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating send pipe: %w", err)
	}
	meterOut, receiveIn, err := os.Pipe()
	if err != nil {
		sendOut.Close()
		meterIn.Close()
		return fmt.Errorf("creating receive pipe: %w", err)
	}
	send.Stdout = meterIn
	meter.Stdin = sendOut
	meter.Stdout = receiveIn
	receive.Stdin = meterOut

	var sendStderr bytes.Buffer
	send.Stderr = &sendStderr

	// The observed stderr streams get explicit pipes as well: the parent
	// keeps the read ends and drains them to EOF, which arrives exactly
	// when the child's last descriptor copy closes.
	meterErrR, meterErrW, err := os.Pipe()
	if err != nil {
		closeAll(sendOut, meterIn, meterOut, receiveIn)
		return fmt.Errorf("creating meter stderr pipe: %w", err)
	}
	receiveErrR, receiveErrW, err := os.Pipe()
	if err != nil {
		closeAll(sendOut, meterIn, meterOut, receiveIn, meterErrR, meterErrW)
		return fmt.Errorf("creating receive stderr pipe: %w", err)
	}
	meter.Stderr = meterErrW
	receive.Stderr = receiveErrW

	statuses := []*stageStatus{
		{stage: StageSend, stderr: &sendStderr},
		{stage: StageMeter, stderr: &bytes.Buffer{}},
		{stage: StageReceive, stderr: &bytes.Buffer{}},
	}

	for i, cmd := range []*exec.Cmd{send, meter, receive} {
		if err := cmd.Start(); err != nil {
			terminate(send, meter, receive)
			closeAll(sendOut, meterIn, meterOut, receiveIn, meterErrR, meterErrW, receiveErrR, receiveErrW)
			return errs.Wrap(errs.KindStreamFailed, fmt.Sprintf("starting %s stage", statuses[i].stage), err)
		}
	}
	// The children own their descriptor copies now.
	closeAll(sendOut, meterIn, meterOut, receiveIn, meterErrW, receiveErrW)

	// Observer tasks: progress from the meter, filtered lines from the
	// receive. Both drain until their pipes close.
	var group errgroup.Group
	start := time.Now()
	group.Go(func() error {
		defer meterErrR.Close()
		observeMeter(meterErrR, statuses[1].stderr, start, opts)
		return nil
	})
	group.Go(func() error {
		defer receiveErrR.Close()
		observeReceive(receiveErrR, statuses[2].stderr, opts.Callbacks)
		return nil
	})

	// Await all three exits in pipeline order. Send exits once it has
	// written the whole stream, which may take hours, so its wait has no
	// deadline (the context still cancels it). Meter and receive then each
	// get their own deadline to drain and exit.
	statuses[0].err = send.Wait()
	statuses[1].err, statuses[1].timedOut = waitStage(meter, opts.StageTimeout)
	statuses[2].err, statuses[2].timedOut = waitStage(receive, opts.StageTimeout)

	_ = group.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return classify(statuses)
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}

func terminate(cmds ...*exec.Cmd) {
	for _, cmd := range cmds {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}
}

// waitStage waits for one child under the per-stage deadline. A stage
// that outlives its deadline is killed and reported as timed out.
func waitStage(cmd *exec.Cmd, timeout time.Duration) (error, bool) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err, false
	case <-time.After(timeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return <-done, true
	}
}

// classify picks the stage to blame and builds the surfaced error.
//
// Preference runs in pipeline order, but a stage that died of a broken
// pipe is skipped when a later stage also failed: the broken pipe is the
// echo of the downstream failure, not its origin. If every failing stage
// is a broken-pipe casualty, the most downstream one is reported.
func classify(statuses []*stageStatus) error {
	var failed []*stageStatus
	for _, st := range statuses {
		if st.err != nil || st.timedOut {
			failed = append(failed, st)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	blamed := failed[len(failed)-1]
	for _, st := range failed {
		if !brokenPipe(st) {
			blamed = st
			break
		}
	}

	if blamed.timedOut {
		return errs.Newf(errs.KindTimeout, "%s stage did not exit within the stage deadline", blamed.stage).
			With("stage", string(blamed.stage)).
			With("stderr", runner.Excerpt(blamed.stderr.Bytes()))
	}

	e := errs.Newf(errs.KindStreamFailed, "%s stage failed", blamed.stage).
		With("stage", string(blamed.stage)).
		With("stderr", runner.Excerpt(blamed.stderr.Bytes()))
	var exitErr *exec.ExitError
	if errors.As(blamed.err, &exitErr) {
		e.With("exit_code", strconv.Itoa(exitErr.ExitCode()))
	}
	e.Cause = blamed.err
	return e
}

// brokenPipe reports whether a stage's failure looks like the echo of a
// vanished downstream reader rather than a genuine error.
func brokenPipe(st *stageStatus) bool {
	if st.timedOut || st.err == nil {
		return false
	}
	var exitErr *exec.ExitError
	if errors.As(st.err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() && ws.Signal() == syscall.SIGPIPE {
			return true
		}
	}
	return strings.Contains(strings.ToLower(st.stderr.String()), "broken pipe")
}

// observeMeter parses byte counts from the meter's stderr and reports
// progress. Unparseable lines are retained for error context; progress
// parsing is best-effort and never fails the run.
func observeMeter(r io.Reader, retained *bytes.Buffer, start time.Time, opts Options) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			retained.WriteString(line)
			retained.WriteByte('\n')
			continue
		}
		if opts.Callbacks.Progress == nil {
			continue
		}
		elapsed := time.Since(start)
		p := Progress{
			Bytes:   n,
			Total:   opts.EstimatedBytes,
			Elapsed: elapsed,
		}
		if secs := elapsed.Seconds(); secs > 0 {
			p.Throughput = float64(n) / secs
		}
		if p.Throughput > 0 && opts.EstimatedBytes > n {
			p.ETA = time.Duration(float64(opts.EstimatedBytes-n) / p.Throughput * float64(time.Second))
		}
		opts.Callbacks.Progress(p)
	}
}

// observeReceive surfaces the receive's stderr line by line, dropping the
// per-extent write chatter. Every line, noisy or not, is retained for
// error context.
func observeReceive(r io.Reader, retained *bytes.Buffer, cb Callbacks) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		retained.WriteString(line)
		retained.WriteByte('\n')
		if receiveNoise.MatchString(line) {
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cb.info(trimmed)
		}
	}
}

// scanCRLines splits on \n or \r so interactive-style meter output is
// tokenized the same as line output.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
