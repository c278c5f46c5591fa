package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/snipermjy/password-manager/internal/app"
	"github.com/snipermjy/password-manager/internal/codec"
)

func newBackupCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create backups and inspect the backup trail",
	}
	cmd.AddCommand(
		newBackupCreateCommand(deps),
		newBackupHistoryCommand(deps),
	)
	return cmd
}

func newBackupCreateCommand(deps commandDeps) *cobra.Command {
	var (
		dir        string
		formatName string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a timestamped backup file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("backup create does not accept positional arguments")
			}
			if dir == "" {
				return usageErrorf("backup create requires --dir")
			}
			format, err := codec.ParseFormat(formatName)
			if err != nil {
				return usageErrorf("unsupported format %q (csv, excel, json)", formatName)
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				backups := app.NewBackupService(vault, nil)
				path, err := backups.BackupToDir(ctx, dir, format)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]string{"path": path})
				}
				return notice(deps, "backup written to %s\n", path)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Backup directory (required)")
	cmd.Flags().StringVar(&formatName, "format", "excel", "Backup format: csv, excel or json")
	return cmd
}

func newBackupHistoryCommand(deps commandDeps) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent backup attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("backup history does not accept positional arguments")
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				backups := app.NewBackupService(vault, nil)
				entries, err := backups.History(ctx, limit)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, entries)
				}
				for _, entry := range entries {
					fmt.Fprintf(deps.out, "%s\t%s\t%s\t%s\t%s\n",
						entry.BackupTime.Format(time.RFC3339), entry.Kind, entry.Status, entry.FilePath, entry.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	return cmd
}
