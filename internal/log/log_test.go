package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitLevelThresholds(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Stderr: &buf}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	Debug("hidden debug line")
	Info("hidden info line")
	Warn("visible warn line")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info should be suppressed by default, got %q", out)
	}
	if !strings.Contains(out, "visible warn line") {
		t.Errorf("warnings should reach stderr, got %q", out)
	}
}

func TestInitVerbose(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Verbose: true, Stderr: &buf}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	Debug("debug line shows")
	if !strings.Contains(buf.String(), "debug line shows") {
		t.Errorf("verbose should emit debug, got %q", buf.String())
	}
}

func TestQuietOverridesVerbose(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Verbose: true, Quiet: true, Stderr: &buf}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	Info("suppressed while quiet")
	if strings.Contains(buf.String(), "suppressed") {
		t.Errorf("quiet should suppress info, got %q", buf.String())
	}
}

func TestWithRunTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Stderr: &buf}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	WithRun("run_deadbeef")
	Warn("tagged line")
	if !strings.Contains(buf.String(), "run_deadbeef") {
		t.Errorf("records should carry the run id, got %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{JSONFormat: true, Stderr: &buf}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	Warn("structured line")
	if !strings.Contains(buf.String(), `"msg":"structured line"`) {
		t.Errorf("JSON output expected, got %q", buf.String())
	}
}
