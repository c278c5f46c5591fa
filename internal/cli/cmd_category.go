package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snipermjy/password-manager/internal/app"
	"github.com/snipermjy/password-manager/internal/storage"
)

func newCategoryCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
	}
	cmd.AddCommand(
		newCategoryListCommand(deps),
		newCategoryAddCommand(deps),
		newCategoryUpdateCommand(deps),
		newCategoryRemoveCommand(deps),
	)
	return cmd
}

func newCategoryListCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories with usage counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				categories, err := vault.Store().Categories.List(ctx)
				if err != nil {
					return err
				}
				type categoryRow struct {
					ID        int64  `json:"id"`
					Name      string `json:"name"`
					Color     string `json:"color"`
					SortOrder int    `json:"sort_order"`
					IsDefault bool   `json:"is_default"`
					Usage     int    `json:"usage"`
				}
				rows := make([]categoryRow, 0, len(categories))
				for _, category := range categories {
					usage, err := vault.Store().Categories.UsageCount(ctx, category.Name)
					if err != nil {
						return err
					}
					rows = append(rows, categoryRow{
						ID:        category.ID,
						Name:      category.Name,
						Color:     category.Color,
						SortOrder: category.SortOrder,
						IsDefault: category.IsDefault,
						Usage:     usage,
					})
				}
				if deps.globals.JSON {
					return printJSON(deps.out, rows)
				}
				for _, row := range rows {
					marker := " "
					if row.IsDefault {
						marker = "*"
					}
					fmt.Fprintf(deps.out, "%d\t%s%s\t%s\t%d in use\n", row.ID, marker, row.Name, row.Color, row.Usage)
				}
				return nil
			})
		},
	}
}

func newCategoryAddCommand(deps commandDeps) *cobra.Command {
	var (
		color     string
		sortOrder int
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				category := &storage.Category{Name: args[0], Color: color, SortOrder: sortOrder}
				id, err := vault.Store().Categories.Add(ctx, category)
				if err != nil {
					if errors.Is(err, storage.ErrConflict) {
						return fmt.Errorf("category %q already exists", args[0])
					}
					return err
				}
				return notice(deps, "added category %d\n", id)
			})
		},
	}
	cmd.Flags().StringVar(&color, "color", "#999999", "Display color (hex)")
	cmd.Flags().IntVar(&sortOrder, "sort-order", 0, "Sort position")
	return cmd
}

func newCategoryUpdateCommand(deps commandDeps) *cobra.Command {
	var (
		name      string
		color     string
		sortOrder int
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or restyle a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("color") && !cmd.Flags().Changed("sort-order") {
				return usageErrorf("category update requires at least one of --name, --color, --sort-order")
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				categories, err := vault.Store().Categories.List(ctx)
				if err != nil {
					return err
				}
				var current *storage.Category
				for i := range categories {
					if categories[i].ID == id {
						current = &categories[i]
						break
					}
				}
				if current == nil {
					return fmt.Errorf("category %d not found", id)
				}

				if cmd.Flags().Changed("name") {
					current.Name = name
				}
				if cmd.Flags().Changed("color") {
					current.Color = color
				}
				if cmd.Flags().Changed("sort-order") {
					current.SortOrder = sortOrder
				}

				if err := vault.Store().Categories.Update(ctx, current); err != nil {
					if errors.Is(err, storage.ErrConflict) {
						return fmt.Errorf("category %q already exists", current.Name)
					}
					return err
				}
				return notice(deps, "category %d updated\n", id)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&color, "color", "", "New display color (hex)")
	cmd.Flags().IntVar(&sortOrder, "sort-order", 0, "New sort position")
	return cmd
}

func newCategoryRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an unused, non-default category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				err := vault.Store().Categories.Delete(ctx, id)
				switch {
				case errors.Is(err, storage.ErrCategoryDefault):
					return fmt.Errorf("category %d is a built-in default and cannot be deleted", id)
				case errors.Is(err, storage.ErrCategoryInUse):
					return fmt.Errorf("category %d is still referenced by active credentials", id)
				case err != nil:
					return err
				}
				return notice(deps, "category %d deleted\n", id)
			})
		},
	}
}
