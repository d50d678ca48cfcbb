package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deixis/barnhunt"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of barnhunt",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "barnhunt version %s\n", strings.TrimSpace(barnhunt.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
