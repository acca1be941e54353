package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessageIncludesContext(t *testing.T) {
	err := New(KindInsufficientSpace, "not enough space").
		With("free_bytes", "100").
		With("required_bytes", "2048")

	msg := err.Error()
	if !strings.Contains(msg, "not enough space") {
		t.Errorf("message missing text: %q", msg)
	}
	if !strings.Contains(msg, "free_bytes=100") {
		t.Errorf("message missing context: %q", msg)
	}
	if !strings.Contains(msg, "required_bytes=2048") {
		t.Errorf("message missing context: %q", msg)
	}
}

func TestKindOf(t *testing.T) {
	err := New(KindMountMissing, "no mount")
	if got := KindOf(err); got != KindMountMissing {
		t.Errorf("KindOf() = %q, want %q", got, KindMountMissing)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if got := KindOf(wrapped); got != KindMountMissing {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindMountMissing)
	}

	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindCommandFailed, "command blew up", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through the wrapper")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("message should include cause: %q", err.Error())
	}
}

func TestSuppressNeverReplacesPrimary(t *testing.T) {
	primary := New(KindStreamFailed, "receive died")
	cleanup1 := errors.New("could not delete source snapshot")
	primary.Suppress(cleanup1, nil)

	if len(primary.Suppressed) != 1 {
		t.Fatalf("Suppressed length = %d, want 1", len(primary.Suppressed))
	}
	if primary.Kind != KindStreamFailed {
		t.Errorf("kind changed after suppress: %q", primary.Kind)
	}
}

func TestHintOf(t *testing.T) {
	err := New(KindLockUnavailable, "locked").WithHint("wait for the running backup")
	if got := HintOf(err); got != "wait for the running backup" {
		t.Errorf("HintOf() = %q", got)
	}
	if got := HintOf(errors.New("plain")); got != "" {
		t.Errorf("HintOf(plain) = %q, want empty", got)
	}
}

func TestIsKind(t *testing.T) {
	err := New(KindTimeout, "too slow")
	if !IsKind(err, KindTimeout) {
		t.Error("IsKind should match")
	}
	if IsKind(err, KindStreamFailed) {
		t.Error("IsKind should not match a different kind")
	}
}
