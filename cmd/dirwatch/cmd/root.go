// Package cmd provides the CLI commands for dirwatch.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirwatch/pkg/version"
)

// NewRootCmd creates the root command for the dirwatch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirwatch",
		Short: "Stream change events for a directory's direct contents",
		Long: `dirwatch watches a single directory (non-recursively) and streams
typed change events: an initial snapshot of the directory's entries,
followed by live create/modify/remove notifications, ending with a
terminal invalidation event when the watch stops or the directory
disappears.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("dirwatch version {{.Version}}\n")

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
