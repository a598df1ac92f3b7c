package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/tapestry"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tapestry",
		// The root pre-run loads configuration, which version does not need.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tapestry version %s\n", strings.TrimSpace(tapestry.Version))
		},
	}
}
