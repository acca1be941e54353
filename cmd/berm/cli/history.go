package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorcontext/berm/internal/config"
	"github.com/majorcontext/berm/internal/history"
	"github.com/majorcontext/berm/internal/units"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent backup runs",
	Long: `Show the recorded outcomes of recent backup runs: when they ran, what
kind of transfer they performed, and how they ended.

Examples:
  berm history           # Last 20 runs
  berm history -n 5      # Last 5 runs
  berm history --json    # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		reportError(err)
		return err
	}

	store, err := history.Open(historyPath(cfg))
	if err != nil {
		reportError(err)
		return err
	}
	defer store.Close()

	runs, err := store.Recent(historyLimit)
	if err != nil {
		reportError(err)
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tKIND\tSNAPSHOT\tESTIMATED\tDURATION\tOUTCOME")
	for _, r := range runs {
		outcome := r.Outcome
		if r.ErrorKind != "" {
			outcome = fmt.Sprintf("%s (%s)", r.Outcome, r.ErrorKind)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.Kind,
			r.Snapshot,
			units.Format(r.EstimatedBytes),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			outcome)
	}
	return w.Flush()
}
