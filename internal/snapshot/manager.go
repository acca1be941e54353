package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/runner"
)

const (
	deleteAttempts = 3
	deletePause    = time.Second
)

// Manager performs snapshot operations for one source volume and its
// two snapshot directories.
type Manager struct {
	sourceVolume string
	sourceDir    string
	destDir      string

	// now is replaceable for tests.
	now func() time.Time
}

// NewManager creates a Manager for sourceVolume with snapshots stored
// under sourceDir locally and destDir on the destination filesystem.
func NewManager(sourceVolume, sourceDir, destDir string) *Manager {
	return &Manager{
		sourceVolume: sourceVolume,
		sourceDir:    sourceDir,
		destDir:      destDir,
		now:          time.Now,
	}
}

// Base returns the source volume's basename, the prefix of every
// snapshot name this manager owns.
func (m *Manager) Base() string {
	return filepath.Base(m.sourceVolume)
}

// SourcePath returns the source-side path of a named snapshot.
func (m *Manager) SourcePath(name string) string {
	return filepath.Join(m.sourceDir, name)
}

// DestPath returns the destination-side path of a named snapshot.
func (m *Manager) DestPath(name string) string {
	return filepath.Join(m.destDir, name)
}

// DestDir returns the destination snapshot directory.
func (m *Manager) DestDir() string {
	return m.destDir
}

// Create takes a new read-only snapshot of the source volume and returns
// its name. The snapshot is immutable from this point; only Delete
// removes it.
func (m *Manager) Create(ctx context.Context) (string, error) {
	name := Name(m.Base(), m.now())
	target := m.SourcePath(name)

	if Exists(target) {
		return "", errs.Newf(errs.KindSnapshotOperationFailed, "snapshot %s already exists", name).
			With("path", target)
	}

	_, err := runner.Run(ctx, "btrfs", "subvolume", "snapshot", "-r", m.sourceVolume, target)
	if err != nil {
		return "", errs.Wrap(errs.KindSnapshotOperationFailed, fmt.Sprintf("creating snapshot %s", name), err).
			With("source", m.sourceVolume).
			With("path", target)
	}
	return name, nil
}

// Delete removes the snapshot subvolume at path. Deletion is retried;
// the second attempt adds --commit-after to flush a partially committed
// subvolume that refuses a plain delete.
func (m *Manager) Delete(ctx context.Context, path string) error {
	var last error
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(deletePause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		args := []string{"subvolume", "delete"}
		if attempt == 1 {
			args = append(args, "--commit-after")
		}
		args = append(args, path)

		if _, err := runner.Run(ctx, "btrfs", args...); err != nil {
			if ctx.Err() != nil {
				return err
			}
			last = err
			continue
		}
		return nil
	}
	return errs.Wrap(errs.KindSnapshotOperationFailed, fmt.Sprintf("deleting snapshot %s", path), last).
		With("path", path)
}

// ListSource returns source-side snapshot names, oldest first.
func (m *Manager) ListSource() ([]string, error) {
	names, err := List(m.sourceDir, m.Base())
	if err != nil {
		return nil, errs.Wrap(errs.KindSnapshotOperationFailed, "listing source snapshots", err).
			With("dir", m.sourceDir)
	}
	return names, nil
}

// ListDest returns destination-side snapshot names, oldest first.
func (m *Manager) ListDest() ([]string, error) {
	names, err := List(m.destDir, m.Base())
	if err != nil {
		return nil, errs.Wrap(errs.KindSnapshotOperationFailed, "listing destination snapshots", err).
			With("dir", m.destDir)
	}
	return names, nil
}
