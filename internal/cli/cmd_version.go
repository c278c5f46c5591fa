package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.globals.JSON {
				return printJSON(deps.out, map[string]string{
					"version":    deps.build.Version,
					"commit":     deps.build.Commit,
					"build_time": deps.build.BuildTime,
				})
			}
			fmt.Fprintf(deps.out, "mima %s (commit %s, built %s)\n",
				deps.build.Version, deps.build.Commit, deps.build.BuildTime)
			return nil
		},
	}
}
