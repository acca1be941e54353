package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/majorcontext/berm/internal/doctor"
	"github.com/majorcontext/berm/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnostic information about the backup environment",
	Long: `Displays diagnostic information for debugging a berm setup.

This command shows:
- Presence and versions of the required external tools
- The resolved configuration
- Mount status of the source and destination`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Printf("%s %s\n\n", ui.Bold("Berm Doctor"), version)

	reg := doctor.NewRegistry()
	reg.Register(doctor.ToolsSection{})
	reg.Register(doctor.ConfigSection{Path: cfgPath})
	reg.Register(doctor.MountsSection{Path: cfgPath})

	for _, section := range reg.Sections() {
		fmt.Println(ui.Bold(section.Name()))
		if err := section.Print(os.Stdout); err != nil {
			fmt.Printf("  section failed: %v\n", err)
		}
		fmt.Println()
	}
	return nil
}
