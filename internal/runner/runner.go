// Package runner spawns allow-listed external tools with sanitized
// arguments and captured output. It is the only path through which the
// engine executes anything; components never call os/exec directly.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/majorcontext/berm/internal/errs"
)

// toolDir is the fixed lookup directory for external tools. PATH is
// deliberately not consulted.
const toolDir = "/usr/bin"

// allowedTools is the compile-time allow-list of external binaries.
var allowedTools = map[string]bool{
	"btrfs":      true,
	"mount":      true,
	"mountpoint": true,
	"find":       true,
	"pv":         true,
	"du":         true,
	"lsblk":      true,
	"blkid":      true,
}

// argPattern is the permitted argument character set. An argument that
// would change under filtering is rejected rather than silently rewritten.
var argPattern = regexp.MustCompile(`^[A-Za-z0-9_/\-=.:\s]*$`)

// stderrExcerptLen bounds the stderr excerpt attached to errors.
const stderrExcerptLen = 1024

// Result holds the captured outcome of one tool invocation.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// ToolPath validates that tool is allow-listed and present at its fixed
// path, returning the absolute path to execute.
func ToolPath(tool string) (string, error) {
	if !allowedTools[tool] {
		return "", errs.Newf(errs.KindInvalidInput, "tool %q is not allow-listed", tool)
	}
	path := filepath.Join(toolDir, tool)
	if _, err := os.Stat(path); err != nil {
		return "", errs.Wrap(errs.KindDependencyMissing, fmt.Sprintf("required tool %q not found", tool), err).
			With("path", path).
			WithHint(fmt.Sprintf("install the package providing %s", path))
	}
	return path, nil
}

// checkArgs rejects any argument outside the permitted character set.
func checkArgs(args []string) error {
	for _, a := range args {
		if !argPattern.MatchString(a) {
			return errs.Newf(errs.KindInvalidInput, "argument %q contains disallowed characters", a)
		}
	}
	return nil
}

// Command builds an exec.Cmd for an allow-listed tool under the same
// sanitization rules as Run. The caller owns stdio wiring and lifecycle;
// the pipeline executor uses this to retain per-child handles.
func Command(ctx context.Context, tool string, args ...string) (*exec.Cmd, error) {
	if !allowedTools[tool] {
		return nil, errs.Newf(errs.KindInvalidInput, "tool %q is not allow-listed", tool)
	}
	if err := checkArgs(args); err != nil {
		return nil, err
	}
	path, err := ToolPath(tool)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second
	return cmd, nil
}

// Run executes an allow-listed tool and captures its output. A non-zero
// exit yields a CommandFailed error alongside the populated Result, so
// callers that tolerate specific exit codes can still inspect it.
func Run(ctx context.Context, tool string, args ...string) (Result, error) {
	cmd, err := Command(ctx, tool, args...)
	if err != nil {
		return Result{}, err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	res := Result{
		ExitCode: -1,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if runErr == nil {
		return res, nil
	}

	// Cancellation is propagated as-is; the caller decided to abort and
	// the reason lives on the context.
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, errs.Wrap(errs.KindTimeout, fmt.Sprintf("%s timed out", tool), ctx.Err()).
				With("argv", argvString(tool, args))
		}
		return res, ctx.Err()
	}

	if os.IsPermission(runErr) || errors.Is(runErr, os.ErrPermission) {
		return res, errs.Wrap(errs.KindInvalidInput, fmt.Sprintf("permission denied running %s", tool), runErr).
			With("argv", argvString(tool, args))
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return res, errs.Newf(errs.KindCommandFailed, "%s exited with status %d", tool, res.ExitCode).
			With("argv", argvString(tool, args)).
			With("exit_code", fmt.Sprintf("%d", res.ExitCode)).
			With("stderr", Excerpt(res.Stderr))
	}

	return res, errs.Wrap(errs.KindCommandFailed, fmt.Sprintf("running %s", tool), runErr).
		With("argv", argvString(tool, args))
}

// Excerpt returns the tail of captured stderr, trimmed for error context.
func Excerpt(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) > stderrExcerptLen {
		s = "..." + s[len(s)-stderrExcerptLen:]
	}
	return s
}

func argvString(tool string, args []string) string {
	return strings.Join(append([]string{tool}, args...), " ")
}
