package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snipermjy/password-manager/internal/app"
	"github.com/snipermjy/password-manager/internal/storage"
)

func newFieldCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Manage custom field definitions",
	}
	cmd.AddCommand(
		newFieldListCommand(deps),
		newFieldAddCommand(deps),
		newFieldRemoveCommand(deps),
	)
	return cmd
}

func newFieldListCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List custom field definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				fields, err := vault.Store().CustomFields.List(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, fields)
				}
				for _, field := range fields {
					usage, err := vault.Store().CustomFields.UsageCount(ctx, field.ID)
					if err != nil {
						return err
					}
					fmt.Fprintf(deps.out, "%d\t%s\t%s\t%d value(s)\n", field.ID, field.FieldName, field.FieldType, usage)
				}
				return nil
			})
		},
	}
}

func newFieldAddCommand(deps commandDeps) *cobra.Command {
	var sortOrder int
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Define a custom field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				field := &storage.CustomField{FieldName: args[0], SortOrder: sortOrder}
				id, err := vault.Store().CustomFields.Add(ctx, field)
				if err != nil {
					if errors.Is(err, storage.ErrConflict) {
						return fmt.Errorf("custom field %q already exists", args[0])
					}
					return err
				}
				return notice(deps, "added custom field %d\n", id)
			})
		},
	}
	cmd.Flags().IntVar(&sortOrder, "sort-order", 0, "Sort position")
	return cmd
}

func newFieldRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an unused custom field definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				err := vault.Store().CustomFields.Delete(ctx, id)
				if errors.Is(err, storage.ErrFieldInUse) {
					return fmt.Errorf("custom field %d still has stored values", id)
				}
				if err != nil {
					return err
				}
				return notice(deps, "custom field %d deleted\n", id)
			})
		},
	}
}
