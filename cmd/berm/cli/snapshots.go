package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorcontext/berm/internal/config"
	"github.com/majorcontext/berm/internal/snapshot"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots on both sides",
	Long: `List the snapshots of the configured source volume, showing which side
each one exists on. A snapshot present on both sides is a candidate
parent for the next incremental backup.

Examples:
  berm snapshots          # Table of snapshots and their sides
  berm snapshots --json   # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: listSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}

type snapshotRow struct {
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	Source      bool      `json:"source"`
	Destination bool      `json:"destination"`
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		reportError(err)
		return err
	}

	base := snapshot.NewManager(cfg.SourceVolume, cfg.SnapshotDir, cfg.DestinationMount).Base()
	source, err := snapshot.List(cfg.SnapshotDir, base)
	if err != nil {
		reportError(err)
		return err
	}
	dest, err := snapshot.List(cfg.DestinationMount, base)
	if err != nil {
		reportError(err)
		return err
	}

	rows := map[string]*snapshotRow{}
	for _, name := range source {
		ts, _ := snapshot.ParseName(base, name)
		rows[name] = &snapshotRow{Name: name, CreatedAt: ts, Source: true}
	}
	for _, name := range dest {
		if row, ok := rows[name]; ok {
			row.Destination = true
			continue
		}
		ts, _ := snapshot.ParseName(base, name)
		rows[name] = &snapshotRow{Name: name, CreatedAt: ts, Destination: true}
	}

	sorted := make([]snapshotRow, 0, len(rows))
	for _, row := range rows {
		sorted = append(sorted, *row)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sorted)
	}

	if len(sorted) == 0 {
		fmt.Println("no snapshots")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAGE\tSOURCE\tDESTINATION")
	now := time.Now().UTC()
	for _, row := range sorted {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			row.Name, formatAge(now.Sub(row.CreatedAt)), mark(row.Source), mark(row.Destination))
	}
	return w.Flush()
}

func mark(present bool) string {
	if present {
		return "yes"
	}
	return "-"
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
