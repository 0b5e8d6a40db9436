package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flint/internal/version"
)

var versionShowFull bool

func init() {
	versionCmd.Flags().BoolVar(&versionShowFull, "full", false, "include commit and build date")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show flint build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		colorEnabled(cmd)
		fmt.Fprintf(cmd.OutOrStdout(), "flint %s\n", version.Version)
		if versionShowFull {
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", valueOrUnknown(version.GitCommit))
			fmt.Fprintf(cmd.OutOrStdout(), "built:  %s\n", valueOrUnknown(version.BuildDate))
		}
		return nil
	},
}

func valueOrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
