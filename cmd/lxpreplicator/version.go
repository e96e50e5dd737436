// cmd/lxpreplicator/version.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "lxpreplicator %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}
