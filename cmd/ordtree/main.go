// Package main provides the entry point for the ordtree CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/cmd/ordtree/commands"
	"github.com/Sumatoshi-tech/ordtree/pkg/version"
)

// exitVerifyFailed is the exit code of a failed `ordtree verify`.
const exitVerifyFailed = 2

func main() {
	version.InitBinaryVersion()

	globals := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "ordtree",
		Short: "ordtree - arena-backed red-black tree toolkit",
		Long: `ordtree drives an arena-backed red-black tree from the command line.

Commands:
  insert    Insert keys and print the ordered traversal with tree statistics
  bench     Run a configurable insert/delete workload and report balance
  verify    Check the tree against a sorted-slice oracle over random rounds`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	globals.Bind(rootCmd)

	// Add commands.
	rootCmd.AddCommand(commands.NewInsertCommand(globals))
	rootCmd.AddCommand(commands.NewBenchCommand(globals))
	rootCmd.AddCommand(commands.NewVerifyCommand(globals))
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		if errors.Is(err, commands.ErrVerifyFailed) {
			os.Exit(exitVerifyFailed)
		}

		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
