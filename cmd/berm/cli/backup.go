package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/majorcontext/berm/internal/config"
	"github.com/majorcontext/berm/internal/engine"
	"github.com/majorcontext/berm/internal/history"
	"github.com/majorcontext/berm/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run a backup of the configured subvolume",
	Long: `Run one backup of the configured source subvolume to the destination
filesystem. The run takes a new read-only snapshot, transfers it (as an
incremental delta when a common ancestor exists on both sides), verifies
the destination's received identifier against the source, and prunes old
snapshots per the retention policy.

Exactly one run may be active at a time; concurrent invocations fail
with a lock error. Interrupting the run (Ctrl-C) aborts the transfer and
removes the half-written snapshots from both sides.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		reportError(err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs := newTerminalObserver(cfg.Progress())
	defer obs.Done()

	opts := []engine.Option{engine.WithObserver(obs)}
	if store, herr := history.Open(historyPath(cfg)); herr == nil {
		defer store.Close()
		opts = append(opts, engine.WithHistory(store))
	} else {
		ui.Warnf("run history unavailable: %v", herr)
	}

	eng := engine.New(cfg, opts...)
	if err := eng.Run(ctx); err != nil {
		obs.Done()
		reportError(err)
		return err
	}

	ui.Infof("%s backup complete", ui.OKTag())
	return nil
}

func historyPath(cfg *config.Config) string {
	if cfg.HistoryDB != "" {
		return cfg.HistoryDB
	}
	return history.DefaultPath()
}
