package estimate

import (
	"context"
	"testing"

	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/units"
)

func TestCheckSpaceStatfsFallback(t *testing.T) {
	// The btrfs usage query fails on a plain directory, so the check
	// falls back to statfs. Requiring zero bytes with no buffer always
	// passes against a writable temp dir.
	dir := t.TempDir()
	if err := CheckSpace(context.Background(), dir, 0, 0); err != nil {
		t.Fatalf("CheckSpace() error: %v", err)
	}
}

func TestCheckSpaceShortfall(t *testing.T) {
	// No filesystem has this much room.
	dir := t.TempDir()
	required := int64(1) << 61
	err := CheckSpace(context.Background(), dir, required, units.GiB)
	if err == nil {
		t.Fatal("CheckSpace should fail for an absurd requirement")
	}
	if !errs.IsKind(err, errs.KindInsufficientSpace) {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindInsufficientSpace)
	}
	e := err.(*errs.Error)
	if e.Context["free_bytes"] == "" || e.Context["required_bytes"] == "" {
		t.Errorf("error should report both numbers, got context %v", e.Context)
	}
}
