// Package btrfs wraps the btrfs tool and parses its human-readable output
// into typed values. Only the fields the engine needs are extracted:
// a subvolume's own UUID, its received UUID, its referenced size, and a
// filesystem's estimated free space.
package btrfs

import (
	"context"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/runner"
)

// SubvolumeInfo holds the parsed fields of `btrfs subvolume show`.
//
// UUID is the subvolume's own identifier, assigned at creation. ReceivedUUID
// is recorded by `btrfs receive` on the destination copy and equals the UUID
// of the subvolume that produced the stream; it is uuid.Nil everywhere else.
// The two must never be confused: comparing a UUID against itself makes
// verification a tautology.
type SubvolumeInfo struct {
	Path         string
	UUID         uuid.UUID
	ReceivedUUID uuid.UUID
	TotalBytes   int64
}

// Field-anchored patterns over `btrfs subvolume show` output. The bare
// UUID pattern must not match the "Parent UUID:" or "Received UUID:" lines,
// hence the line anchor directly before the key.
var (
	uuidRe         = regexp.MustCompile(`(?m)^\s*UUID:\s+([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\s*$`)
	receivedUUIDRe = regexp.MustCompile(`(?m)^\s*Received UUID:\s+([0-9a-f-]+)\s*$`)
	totalBytesRe   = regexp.MustCompile(`(?m)^\s*Total bytes:\s+(\d+)\s*$`)
	freeEstimateRe = regexp.MustCompile(`(?m)^\s*Free \(estimated\):\s+(\d+)`)
)

// Show runs `btrfs subvolume show` on path and extracts the identifier
// fields. A missing own UUID is an error; a missing or dashed received
// UUID parses to uuid.Nil. TotalBytes is zero when the field is absent
// (older tool versions omit it); callers fall back to du in that case.
func Show(ctx context.Context, path string) (SubvolumeInfo, error) {
	res, err := runner.Run(ctx, "btrfs", "subvolume", "show", path)
	if err != nil {
		return SubvolumeInfo{}, err
	}
	return parseShow(path, res.Stdout)
}

func parseShow(path string, out []byte) (SubvolumeInfo, error) {
	info := SubvolumeInfo{Path: path}

	m := uuidRe.FindSubmatch(out)
	if m == nil {
		return info, errs.Newf(errs.KindCommandFailed, "no UUID in subvolume show output for %s", path).
			With("path", path)
	}
	id, err := uuid.Parse(string(m[1]))
	if err != nil {
		return info, errs.Wrap(errs.KindCommandFailed, "malformed subvolume UUID", err).
			With("path", path).
			With("uuid", string(m[1]))
	}
	info.UUID = id

	if m := receivedUUIDRe.FindSubmatch(out); m != nil {
		if s := string(m[1]); s != "-" {
			rid, err := uuid.Parse(s)
			if err != nil {
				return info, errs.Wrap(errs.KindCommandFailed, "malformed received UUID", err).
					With("path", path).
					With("received_uuid", s)
			}
			info.ReceivedUUID = rid
		}
	}

	if m := totalBytesRe.FindSubmatch(out); m != nil {
		n, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err == nil {
			info.TotalBytes = n
		}
	}

	return info, nil
}

// FreeEstimated runs `btrfs filesystem usage -b` on a mount point and
// returns the "Free (estimated)" byte count.
func FreeEstimated(ctx context.Context, mount string) (int64, error) {
	res, err := runner.Run(ctx, "btrfs", "filesystem", "usage", "-b", mount)
	if err != nil {
		return 0, err
	}
	return parseFreeEstimated(mount, res.Stdout)
}

func parseFreeEstimated(mount string, out []byte) (int64, error) {
	m := freeEstimateRe.FindSubmatch(out)
	if m == nil {
		return 0, errs.Newf(errs.KindCommandFailed, "no free-space estimate in filesystem usage output for %s", mount).
			With("mount", mount)
	}
	n, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return 0, errs.Wrap(errs.KindCommandFailed, "malformed free-space estimate", err).
			With("mount", mount)
	}
	return n, nil
}
