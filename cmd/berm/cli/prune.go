package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/majorcontext/berm/internal/config"
	"github.com/majorcontext/berm/internal/engine"
	"github.com/majorcontext/berm/internal/ui"
)

var pruneDryRun bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune snapshots past the retention policy",
	Long: `Remove snapshots older than retention_days from both sides, always
keeping at least keep_minimum per side. This is the same pruning a
successful backup performs; running it standalone is useful after
lowering the retention window.

Examples:
  berm prune            # Prune per the configured policy
  berm prune --dry-run  # Show what would be removed`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be removed without deleting")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		reportError(err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs := newTerminalObserver(false)
	eng := engine.New(cfg, engine.WithObserver(obs))
	if err := eng.Prune(ctx, pruneDryRun); err != nil {
		reportError(err)
		return err
	}

	ui.Infof("%s prune complete", ui.OKTag())
	return nil
}
