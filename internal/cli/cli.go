package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "odmp-harvest",
		Short: "Harvest the Officer Down Memorial Page into SQLite",
		Long: `A CLI tool that downloads every officer memorial from the Officer Down
Memorial Page search, year by year, into a SQLite database.
Each download is a full resync: the database is cleared and reloaded.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// Run executes the CLI with args and returns the process exit code
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

// Execute runs the CLI
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}
