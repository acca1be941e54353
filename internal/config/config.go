// Package config handles berm.yaml parsing and validation.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/majorcontext/berm/internal/units"
)

// Config is the engine's configuration surface.
type Config struct {
	// SourceVolume is the absolute path of the subvolume to back up.
	SourceVolume string `yaml:"source_volume"`

	// SnapshotDir is where source-side snapshots are created. Defaults
	// to <source_volume>/.snapshots.
	SnapshotDir string `yaml:"snapshot_dir,omitempty"`

	// DestinationMount is the mount point of the destination filesystem;
	// received snapshots land directly under it.
	DestinationMount string `yaml:"destination_mount"`

	// MinFreeGB is the safety buffer added to size estimates, in GiB.
	MinFreeGB int `yaml:"min_free_gb,omitempty"`

	// LockFile is the absolute path of the single-run lock.
	LockFile string `yaml:"lock_file,omitempty"`

	// RetentionDays prunes snapshots older than this many days after a
	// successful run. Zero disables pruning.
	RetentionDays int `yaml:"retention_days,omitempty"`

	// KeepMinimum is the floor on snapshots retained per side regardless
	// of age.
	KeepMinimum int `yaml:"keep_minimum,omitempty"`

	// ShowProgress controls whether the progress bar renders. Defaults
	// to true on a terminal.
	ShowProgress *bool `yaml:"show_progress,omitempty"`

	// HistoryDB overrides the run-ledger database path.
	HistoryDB string `yaml:"history_db,omitempty"`
}

// DefaultPath returns the standard config location, honoring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "berm", "berm.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "berm.yaml")
	}
	return filepath.Join(home, ".config", "berm", "berm.yaml")
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found\n\nCreate one with at least:\n  source_volume: /path/to/subvolume\n  destination_mount: /mnt/backup", path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SnapshotDir == "" && c.SourceVolume != "" {
		c.SnapshotDir = filepath.Join(c.SourceVolume, ".snapshots")
	}
	if c.LockFile == "" {
		c.LockFile = "/run/lock/berm.lock"
	}
	if c.MinFreeGB <= 0 {
		c.MinFreeGB = 1
	}
	if c.KeepMinimum <= 0 {
		c.KeepMinimum = 1
	}
}

// Validate checks the configuration for structural problems. Paths are
// not required to exist yet; mount and dependency checks happen at run
// time under the lock.
func (c *Config) Validate() error {
	if c.SourceVolume == "" {
		return fmt.Errorf("source_volume is required")
	}
	if !filepath.IsAbs(c.SourceVolume) {
		return fmt.Errorf("source_volume must be an absolute path, got %q", c.SourceVolume)
	}
	if c.DestinationMount == "" {
		return fmt.Errorf("destination_mount is required")
	}
	if !filepath.IsAbs(c.DestinationMount) {
		return fmt.Errorf("destination_mount must be an absolute path, got %q", c.DestinationMount)
	}
	if !filepath.IsAbs(c.SnapshotDir) {
		return fmt.Errorf("snapshot_dir must be an absolute path, got %q", c.SnapshotDir)
	}
	if !filepath.IsAbs(c.LockFile) {
		return fmt.Errorf("lock_file must be an absolute path, got %q", c.LockFile)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}
	return nil
}

// BufferBytes returns the free-space safety buffer in bytes.
func (c *Config) BufferBytes() int64 {
	return int64(c.MinFreeGB) * units.GiB
}

// Progress reports whether progress rendering is enabled, defaulting to
// enabled when unset.
func (c *Config) Progress() bool {
	return c.ShowProgress == nil || *c.ShowProgress
}
