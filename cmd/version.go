package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waseemkhan00777/askify-gemini/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "askify %s (commit %s, built %s)\n",
			buildinfo.Version, buildinfo.Commit, buildinfo.BuiltAt)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
