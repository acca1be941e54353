package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/majorcontext/berm/internal/config"
	"github.com/majorcontext/berm/internal/engine"
	"github.com/majorcontext/berm/internal/ui"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the newest common snapshot pair",
	Long: `Verify that the newest snapshot present on both sides still satisfies
the identifier contract: the destination's received UUID must equal the
source snapshot's UUID. A mismatch means the baseline cannot be trusted
for incremental backups.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		reportError(err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs := newTerminalObserver(false)
	eng := engine.New(cfg, engine.WithObserver(obs))
	if err := eng.VerifyBaseline(ctx); err != nil {
		reportError(err)
		return err
	}

	ui.Infof("%s baseline verified", ui.OKTag())
	return nil
}
