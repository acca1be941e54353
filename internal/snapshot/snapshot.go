// Package snapshot creates, enumerates, and deletes the read-only btrfs
// snapshots the engine transfers. Snapshot names embed a UTC timestamp in
// a lexically ordered form, so name order is creation order.
package snapshot

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TimeLayout is the timestamp embedded in snapshot names. It sorts
// lexically in creation order and survives the runner's argument filter.
const TimeLayout = "2006-01-02T15:04:05Z"

// Name builds a snapshot name for the given source basename and time.
func Name(base string, t time.Time) string {
	return base + "." + t.UTC().Format(TimeLayout)
}

// ParseName extracts the embedded timestamp from a snapshot name produced
// by Name. The second return is false when name does not belong to base or
// the timestamp is malformed.
func ParseName(base, name string) (time.Time, bool) {
	suffix, ok := strings.CutPrefix(name, base+".")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeLayout, suffix)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// List returns the names of direct children of dir that parse as
// snapshots of base, sorted oldest first by embedded timestamp.
func List(dir, base string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := ParseName(base, entry.Name()); ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a snapshot directory is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// modTime returns the filesystem modification time of dir/name, used only
// as a tiebreak when two names embed the same timestamp.
func modTime(dir, name string) time.Time {
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
