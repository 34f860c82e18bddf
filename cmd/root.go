package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the slotwise application
var rootCmd = &cobra.Command{
	Use:   "slotwise",
	Short: "Suggests free meeting slots from your Google Calendar",
	Long: `slotwise is a scheduling assistant that reads your Google Calendar
availability and suggests free meeting slots within your working hours.

It can run as:
  - A standalone CLI tool (default)
  - An HTTP API server that also classifies meeting requests in your
    Gmail inbox and books chosen slots`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "slotwise version %s\n" .Version}}`)

	// If no subcommand is provided, run the suggest command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "suggest")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newSuggestCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
