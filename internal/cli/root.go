// Package cli assembles the mima command tree. Commands open the vault
// lazily, run one operation, and release it before returning.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

type globalFlags struct {
	VaultPath string
	JSON      bool
	Quiet     bool
}

type commandDeps struct {
	out     io.Writer
	globals *globalFlags
	build   BuildInfo
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &globalFlags{}
	deps := commandDeps{out: out, globals: globals, build: build}

	root := &cobra.Command{
		Use:           "mima",
		Short:         "Personal credential vault",
		Long:          "mima stores site credentials in a local SQLite vault with categories,\ncustom fields, a recycle bin, modification history and ranked search.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&globals.VaultPath, "vault", "", "Vault file path (default: per-user data directory)")
	root.PersistentFlags().BoolVar(&globals.JSON, "json", false, "Emit JSON output")
	root.PersistentFlags().BoolVar(&globals.Quiet, "quiet", false, "Suppress non-essential output")

	root.AddCommand(
		newAddCommand(deps),
		newUpdateCommand(deps),
		newGetCommand(deps),
		newListCommand(deps),
		newSearchCommand(deps),
		newRemoveCommand(deps),
		newTrashCommand(deps),
		newRestoreCommand(deps),
		newPurgeCommand(deps),
		newHistoryCommand(deps),
		newCategoryCommand(deps),
		newFieldCommand(deps),
		newSettingsCommand(deps),
		newExportCommand(deps),
		newImportCommand(deps),
		newBackupCommand(deps),
		newVersionCommand(deps),
	)
	return root
}

func printJSON(out io.Writer, payload any) error {
	encoder := json.NewEncoder(out)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func notice(deps commandDeps, format string, args ...any) error {
	if deps.globals.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(deps.out, format, args...)
	return err
}
