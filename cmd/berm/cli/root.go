// Package cli implements the berm command-line interface using Cobra.
// It wires configuration, logging, and the terminal observer around the
// backup engine; the engine itself never touches the terminal.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/majorcontext/berm/internal/config"
	"github.com/majorcontext/berm/internal/errs"
	"github.com/majorcontext/berm/internal/log"
	"github.com/majorcontext/berm/internal/ui"
)

var (
	cfgPath string
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "berm",
	Short: "Berm - incremental btrfs backups over send/receive",
	Long: `Berm backs up a local btrfs subvolume to an external btrfs filesystem
using the native send/receive stream. Each run snapshots the source,
transfers a full stream or an incremental delta against the newest
common snapshot, and verifies that the destination copy is byte-identical
before keeping it as the next baseline.`,
	SilenceUsage: true,
	// Errors are reported through reportError with their operator hint;
	// cobra's own printing would duplicate them.
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			cfgPath = os.Getenv("BERM_CONFIG")
		}
		if cfgPath == "" {
			cfgPath = config.DefaultPath()
		}

		debugDir := filepath.Join(stateDir(), "debug")
		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			DebugDir:      debugDir,
			RetentionDays: 30,
		}); err != nil {
			// Debug logging is diagnostics, not correctness; fall back to
			// the default logger rather than refusing to run.
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (env: BERM_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}

// stateDir returns the per-user state directory, honoring XDG_STATE_HOME.
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "berm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".berm")
	}
	return filepath.Join(home, ".local", "state", "berm")
}

// reportError prints a classified error with its hint, if any, and logs
// the structured form.
func reportError(err error) {
	ui.Error(err.Error())
	if hint := errs.HintOf(err); hint != "" {
		ui.Hint(hint)
	}
	log.Error("command failed", "kind", errs.KindOf(err).String(), "error", err)
}
