package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/majorcontext/berm/internal/errs"
)

func TestToolPathRejectsUnknownTool(t *testing.T) {
	_, err := ToolPath("bash")
	if err == nil {
		t.Fatal("ToolPath should reject a tool outside the allow-list")
	}
	if !errs.IsKind(err, errs.KindInvalidInput) {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindInvalidInput)
	}
}

func TestRunRejectsDisallowedArguments(t *testing.T) {
	bad := []string{
		"$(reboot)",
		"a;b",
		"foo|bar",
		"back`tick`",
		"quote'",
	}
	for _, arg := range bad {
		_, err := Run(context.Background(), "du", arg)
		if err == nil {
			t.Errorf("Run with arg %q should fail", arg)
			continue
		}
		if !errs.IsKind(err, errs.KindInvalidInput) {
			t.Errorf("arg %q: kind = %q, want %q", arg, errs.KindOf(err), errs.KindInvalidInput)
		}
	}
}

func TestRunCapturesOutput(t *testing.T) {
	if _, err := ToolPath("du"); err != nil {
		t.Skipf("du unavailable: %v", err)
	}

	dir := t.TempDir()
	res, err := Run(context.Background(), "du", "-sb", dir)
	if err != nil {
		t.Fatalf("Run(du) error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(string(res.Stdout), dir) {
		t.Errorf("stdout should mention %s: %q", dir, res.Stdout)
	}
}

func TestRunReportsCommandFailure(t *testing.T) {
	if _, err := ToolPath("du"); err != nil {
		t.Skipf("du unavailable: %v", err)
	}

	_, err := Run(context.Background(), "du", "-sb", "/no/such/path/anywhere")
	if err == nil {
		t.Fatal("Run should fail for a nonexistent path")
	}
	if !errs.IsKind(err, errs.KindCommandFailed) {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindCommandFailed)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	if _, err := ToolPath("du"); err != nil {
		t.Skipf("du unavailable: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, "du", "-sb", "/")
	if err == nil {
		t.Fatal("Run should fail when the context is already cancelled")
	}
}

func TestRunDeadline(t *testing.T) {
	if _, err := ToolPath("find"); err != nil {
		t.Skipf("find unavailable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)
	_, err := Run(ctx, "find", "/", "-name", "needle-that-takes-a-while")
	if err == nil {
		t.Fatal("Run should fail when the deadline passes")
	}
	if !errs.IsKind(err, errs.KindTimeout) {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindTimeout)
	}
}

func TestExcerptTruncatesLongStderr(t *testing.T) {
	long := strings.Repeat("x", 4096)
	got := Excerpt([]byte(long))
	if len(got) > stderrExcerptLen+3 {
		t.Errorf("excerpt length = %d, want <= %d", len(got), stderrExcerptLen+3)
	}
	if !strings.HasPrefix(got, "...") {
		t.Errorf("truncated excerpt should start with ellipsis: %q", got[:8])
	}
}
