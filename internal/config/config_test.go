package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "berm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
source_volume: /vol/data
destination_mount: /mnt/backup
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/vol/data/.snapshots", cfg.SnapshotDir)
	assert.Equal(t, "/run/lock/berm.lock", cfg.LockFile)
	assert.Equal(t, 1, cfg.MinFreeGB)
	assert.Equal(t, 1, cfg.KeepMinimum)
	assert.True(t, cfg.Progress())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
source_volume: /vol/data
snapshot_dir: /vol/data/.snap
destination_mount: /mnt/backup
min_free_gb: 5
lock_file: /tmp/test.lock
retention_days: 30
keep_minimum: 3
show_progress: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/vol/data/.snap", cfg.SnapshotDir)
	assert.Equal(t, int64(5)<<30, cfg.BufferBytes())
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 3, cfg.KeepMinimum)
	assert.False(t, cfg.Progress())
}

func TestLoadMissingFileExplainsSetup(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_volume")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
source_volume: /vol/data
destination_mount: /mnt/backup
sourcevolume: /typo
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRequiresAbsolutePaths(t *testing.T) {
	cases := []string{
		"source_volume: data\ndestination_mount: /mnt/backup\n",
		"source_volume: /vol/data\ndestination_mount: backup\n",
		"source_volume: /vol/data\ndestination_mount: /mnt/backup\nlock_file: relative.lock\n",
	}
	for _, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, "config: %s", content)
	}
}

func TestValidateRejectsNegativeRetention(t *testing.T) {
	path := writeConfig(t, `
source_volume: /vol/data
destination_mount: /mnt/backup
retention_days: -1
`)
	_, err := Load(path)
	require.Error(t, err)
}
