package doctor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/majorcontext/berm/internal/config"
	"github.com/majorcontext/berm/internal/mount"
	"github.com/majorcontext/berm/internal/runner"
)

// requiredTools are probed by the tools section. btrfs and pv are hard
// requirements of the pipeline, mountpoint backs the mount checks and du
// the size-estimate fallback; the rest complete the runner's allow-list.
var requiredTools = []string{"btrfs", "pv", "mountpoint", "du", "mount", "find", "lsblk", "blkid"}

// ToolsSection reports presence and version of each external tool.
type ToolsSection struct{}

func (ToolsSection) Name() string { return "External Tools" }

func (ToolsSection) Print(w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, tool := range requiredTools {
		path, err := runner.ToolPath(tool)
		if err != nil {
			fmt.Fprintf(w, "  %-12s missing (%v)\n", tool, err)
			continue
		}
		fmt.Fprintf(w, "  %-12s %s%s\n", tool, path, versionSuffix(ctx, tool))
	}
	return nil
}

func versionSuffix(ctx context.Context, tool string) string {
	var res runner.Result
	var err error
	switch tool {
	case "btrfs", "pv", "mount", "find", "lsblk", "blkid":
		res, err = runner.Run(ctx, tool, "--version")
	default:
		return ""
	}
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\n")
	if line == "" {
		return ""
	}
	return " (" + line + ")"
}

// ConfigSection reports the resolved configuration, or why it failed to
// load.
type ConfigSection struct {
	Path string
}

func (ConfigSection) Name() string { return "Configuration" }

func (s ConfigSection) Print(w io.Writer) error {
	cfg, err := config.Load(s.Path)
	if err != nil {
		fmt.Fprintf(w, "  %v\n", err)
		return nil
	}
	fmt.Fprintf(w, "  source_volume:     %s\n", cfg.SourceVolume)
	fmt.Fprintf(w, "  snapshot_dir:      %s\n", cfg.SnapshotDir)
	fmt.Fprintf(w, "  destination_mount: %s\n", cfg.DestinationMount)
	fmt.Fprintf(w, "  lock_file:         %s\n", cfg.LockFile)
	fmt.Fprintf(w, "  min_free_gb:       %d\n", cfg.MinFreeGB)
	fmt.Fprintf(w, "  retention_days:    %d\n", cfg.RetentionDays)
	fmt.Fprintf(w, "  keep_minimum:      %d\n", cfg.KeepMinimum)
	return nil
}

// MountsSection checks that both endpoints are mounted.
type MountsSection struct {
	Path string
}

func (MountsSection) Name() string { return "Mounts" }

func (s MountsSection) Print(w io.Writer) error {
	cfg, err := config.Load(s.Path)
	if err != nil {
		fmt.Fprintf(w, "  skipped: %v\n", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, path := range []string{cfg.SourceVolume, cfg.DestinationMount} {
		if err := mount.Verify(ctx, path); err != nil {
			fmt.Fprintf(w, "  %-40s not mounted\n", path)
			continue
		}
		fmt.Fprintf(w, "  %-40s ok\n", path)
	}
	return nil
}
