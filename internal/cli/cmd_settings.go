package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/snipermjy/password-manager/internal/app"
)

func newSettingsCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write vault settings",
	}
	cmd.AddCommand(
		newSettingsListCommand(deps),
		newSettingsGetCommand(deps),
		newSettingsSetCommand(deps),
	)
	return cmd
}

func newSettingsListCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				settings, err := vault.Store().Settings.All(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, settings)
				}
				keys := make([]string, 0, len(settings))
				for key := range settings {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Fprintf(deps.out, "%s=%s\n", key, settings[key])
				}
				return nil
			})
		},
	}
}

func newSettingsGetCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				value, err := vault.Store().Settings.Get(ctx, args[0], "")
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]string{args[0]: value})
				}
				fmt.Fprintln(deps.out, value)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				if err := vault.Store().Settings.Set(ctx, args[0], args[1]); err != nil {
					return err
				}
				return notice(deps, "%s=%s\n", args[0], args[1])
			})
		},
	}
}
