// Package verify checks the identifier contract that makes a destination
// snapshot trustworthy: the destination's recorded received UUID must
// equal the source snapshot's own UUID. A mismatch means the two sides
// have silently diverged and incremental sends on top would corrupt the
// destination further.
package verify

import (
	"context"

	"github.com/google/uuid"

	"github.com/majorcontext/berm/internal/btrfs"
	"github.com/majorcontext/berm/internal/errs"
)

const scrubHint = "run `btrfs scrub start` on the destination filesystem and investigate before retrying"

// Pair confirms that the snapshot at destPath was received from the
// snapshot at sourcePath. It is the post-transfer success condition.
func Pair(ctx context.Context, sourcePath, destPath string) error {
	src, err := btrfs.Show(ctx, sourcePath)
	if err != nil {
		return err
	}
	dst, err := btrfs.Show(ctx, destPath)
	if err != nil {
		return err
	}
	return match(src, dst)
}

// Ancestor confirms a proposed common ancestor pair is consistent before
// it is used as the base of an incremental send. Failure here is a
// refuse-to-proceed condition, not a post-facto corruption report.
func Ancestor(ctx context.Context, sourcePath, destPath string) error {
	if err := Pair(ctx, sourcePath, destPath); err != nil {
		if errs.IsKind(err, errs.KindIdentifierMismatch) {
			return errs.Wrap(errs.KindIdentifierMismatch,
				"common ancestor pair is inconsistent; refusing incremental send", err).
				With("source", sourcePath).
				With("destination", destPath).
				WithHint(scrubHint)
		}
		return err
	}
	return nil
}

func match(src, dst btrfs.SubvolumeInfo) error {
	// A source snapshot carrying a received UUID was not created by this
	// engine's snapshot step; refuse rather than verify against it.
	if src.ReceivedUUID != uuid.Nil {
		return errs.Newf(errs.KindIdentifierMismatch,
			"source snapshot %s has a received UUID; it is not an original snapshot", src.Path).
			With("source", src.Path).
			With("source_received_uuid", src.ReceivedUUID.String()).
			WithHint(scrubHint)
	}
	if dst.ReceivedUUID == uuid.Nil {
		return errs.Newf(errs.KindIdentifierMismatch,
			"destination snapshot %s has no received UUID", dst.Path).
			With("destination", dst.Path).
			With("source_uuid", src.UUID.String()).
			WithHint(scrubHint)
	}
	if src.UUID != dst.ReceivedUUID {
		return errs.Newf(errs.KindIdentifierMismatch,
			"destination received UUID does not match source UUID").
			With("source", src.Path).
			With("destination", dst.Path).
			With("source_uuid", src.UUID.String()).
			With("received_uuid", dst.ReceivedUUID.String()).
			WithHint(scrubHint)
	}
	return nil
}
