package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snipermjy/password-manager/internal/app"
	"github.com/snipermjy/password-manager/internal/storage"
)

func newAddCommand(deps commandDeps) *cobra.Command {
	var (
		cred         storage.Credential
		customFields []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a credential",
		Example: "  mima add --site GitHub --password s3cret --account octocat\n" +
			"  mima add --site 淘宝 --password p --category 购物 --field 安全问题=猫的名字",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("add does not accept positional arguments")
			}
			if strings.TrimSpace(cred.SiteName) == "" {
				return usageErrorf("add requires --site")
			}
			if cred.Password == "" {
				return usageErrorf("add requires --password")
			}

			parsed, err := parseFieldFlags(customFields)
			if err != nil {
				return err
			}
			cred.CustomFields = parsed

			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				id, err := vault.Add(ctx, &cred)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"id": id})
				}
				return notice(deps, "added credential %d\n", id)
			})
		},
	}
	cmd.Flags().StringVar(&cred.SiteName, "site", "", "Site name (required)")
	cmd.Flags().StringVar(&cred.URL, "url", "", "Site URL")
	cmd.Flags().StringVar(&cred.LoginAccount, "account", "", "Login account")
	cmd.Flags().StringVar(&cred.Password, "password", "", "Password (required)")
	cmd.Flags().StringVar(&cred.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&cred.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&cred.Category, "category", "", "Category name")
	cmd.Flags().StringVar(&cred.Notes, "notes", "", "Free-text notes")
	cmd.Flags().StringVar(&cred.RegisterDate, "register-date", "", "Registration date (YYYY-MM-DD, default today)")
	cmd.Flags().StringArrayVar(&customFields, "field", nil, "Custom field as name=value (repeatable)")
	return cmd
}

func newUpdateCommand(deps commandDeps) *cobra.Command {
	var (
		edits        storage.Credential
		customFields []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a credential, recording changed fields in its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				cred, err := vault.Get(ctx, id)
				if err != nil {
					return err
				}

				flagTargets := map[string]*string{
					"site":          &edits.SiteName,
					"url":           &edits.URL,
					"account":       &edits.LoginAccount,
					"password":      &edits.Password,
					"phone":         &edits.Phone,
					"email":         &edits.Email,
					"category":      &edits.Category,
					"notes":         &edits.Notes,
					"register-date": &edits.RegisterDate,
				}
				fieldTargets := map[string]*string{
					"site":          &cred.SiteName,
					"url":           &cred.URL,
					"account":       &cred.LoginAccount,
					"password":      &cred.Password,
					"phone":         &cred.Phone,
					"email":         &cred.Email,
					"category":      &cred.Category,
					"notes":         &cred.Notes,
					"register-date": &cred.RegisterDate,
				}
				changed := false
				for name, source := range flagTargets {
					if cmd.Flags().Changed(name) {
						*fieldTargets[name] = *source
						changed = true
					}
				}
				if cmd.Flags().Changed("field") {
					parsed, err := parseFieldFlags(customFields)
					if err != nil {
						return err
					}
					cred.CustomFields = parsed
					changed = true
				}
				if !changed {
					return usageErrorf("update requires at least one field flag")
				}

				if err := vault.Update(ctx, cred); err != nil {
					return err
				}
				return notice(deps, "credential %d updated\n", id)
			})
		},
	}
	cmd.Flags().StringVar(&edits.SiteName, "site", "", "Site name")
	cmd.Flags().StringVar(&edits.URL, "url", "", "Site URL")
	cmd.Flags().StringVar(&edits.LoginAccount, "account", "", "Login account")
	cmd.Flags().StringVar(&edits.Password, "password", "", "Password")
	cmd.Flags().StringVar(&edits.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&edits.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&edits.Category, "category", "", "Category name")
	cmd.Flags().StringVar(&edits.Notes, "notes", "", "Free-text notes")
	cmd.Flags().StringVar(&edits.RegisterDate, "register-date", "", "Registration date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&customFields, "field", nil, "Replace custom fields with name=value (repeatable)")
	return cmd
}

func newGetCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				cred, err := vault.Get(ctx, id)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, credentialJSON(cred))
				}
				printCredential(deps, cred)
				return nil
			})
		},
	}
	return cmd
}

func newListCommand(deps commandDeps) *cobra.Command {
	var (
		includeDeleted bool
		deletedOnly    bool
		category       string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("list does not accept positional arguments")
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				var (
					records []storage.Credential
					err     error
				)
				switch {
				case deletedOnly:
					records, err = vault.ListDeleted(ctx)
				case category != "":
					records, err = vault.Store().Credentials.FilterByCategory(ctx, category, includeDeleted)
				default:
					records, err = vault.List(ctx, includeDeleted)
				}
				if err != nil {
					return err
				}
				return printRecords(deps, records)
			})
		},
	}
	cmd.Flags().BoolVar(&includeDeleted, "all", false, "Include recycle-bin records")
	cmd.Flags().BoolVar(&deletedOnly, "deleted", false, "Show only the recycle bin")
	cmd.Flags().StringVar(&category, "category", "", "Filter by exact category name")
	return cmd
}

func newSearchCommand(deps commandDeps) *cobra.Command {
	var (
		stored bool
		domain bool
	)
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search credentials by relevance",
		Example: "  mima search github\n" +
			"  mima search --domain mail.google.com\n" +
			"  mima search --stored 138",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := args[0]
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				var (
					records []storage.Credential
					err     error
				)
				switch {
				case domain:
					records, err = vault.FindByDomain(ctx, keyword)
				case stored:
					records, err = vault.SearchStored(ctx, keyword, false)
				default:
					records, err = vault.SearchRanked(ctx, keyword)
				}
				if err != nil {
					return err
				}
				return printRecords(deps, records)
			})
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "Use the storage-layer substring search")
	cmd.Flags().BoolVar(&domain, "domain", false, "Treat the keyword as a domain/URL")
	return cmd
}

func newTrashCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "trash",
		Short: "Show the recycle bin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("trash does not accept positional arguments")
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				records, err := vault.ListDeleted(ctx)
				if err != nil {
					return err
				}
				return printRecords(deps, records)
			})
		},
	}
}

func newRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Move a credential to the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				if err := vault.SoftDelete(ctx, id); err != nil {
					return err
				}
				return notice(deps, "credential %d moved to recycle bin\n", id)
			})
		},
	}
}

func newRestoreCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a credential from the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				if err := vault.Restore(ctx, id); err != nil {
					return err
				}
				return notice(deps, "credential %d restored\n", id)
			})
		},
	}
}

func newPurgeCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>",
		Short: "Permanently delete a recycled credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				if err := vault.Purge(ctx, id); err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						return fmt.Errorf("credential %d is not in the recycle bin", id)
					}
					return err
				}
				return notice(deps, "credential %d purged\n", id)
			})
		},
	}
}

func newHistoryCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show a credential's modification history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				entries, err := vault.History(ctx, id)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, entries)
				}
				for _, entry := range entries {
					fmt.Fprintf(deps.out, "%s  %s: %q -> %q\n",
						entry.ModifiedAt.Format(time.RFC3339), entry.FieldLabel, entry.OldValue, entry.NewValue)
				}
				return nil
			})
		},
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid credential id %q", raw)
	}
	return id, nil
}

func parseFieldFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(flags))
	for _, flag := range flags {
		name, value, ok := strings.Cut(flag, "=")
		if !ok || name == "" {
			return nil, usageErrorf("invalid --field %q, expected name=value", flag)
		}
		out[name] = value
	}
	return out, nil
}

func credentialJSON(cred *storage.Credential) map[string]any {
	return map[string]any{
		"id":            cred.ID,
		"site_name":     cred.SiteName,
		"url":           cred.URL,
		"login_account": cred.LoginAccount,
		"password":      cred.Password,
		"phone":         cred.Phone,
		"email":         cred.Email,
		"category":      cred.Category,
		"notes":         cred.Notes,
		"register_date": cred.RegisterDate,
		"created_at":    cred.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    cred.UpdatedAt.Format(time.RFC3339Nano),
		"is_deleted":    cred.Deleted,
		"custom_fields": cred.CustomFields,
	}
}

func printCredential(deps commandDeps, cred *storage.Credential) {
	fmt.Fprintf(deps.out, "id:       %d\n", cred.ID)
	fmt.Fprintf(deps.out, "site:     %s\n", cred.SiteName)
	if cred.URL != "" {
		fmt.Fprintf(deps.out, "url:      %s\n", cred.URL)
	}
	if cred.LoginAccount != "" {
		fmt.Fprintf(deps.out, "account:  %s\n", cred.LoginAccount)
	}
	fmt.Fprintf(deps.out, "password: %s\n", cred.Password)
	if cred.Phone != "" {
		fmt.Fprintf(deps.out, "phone:    %s\n", cred.Phone)
	}
	if cred.Email != "" {
		fmt.Fprintf(deps.out, "email:    %s\n", cred.Email)
	}
	if cred.Category != "" {
		fmt.Fprintf(deps.out, "category: %s\n", cred.Category)
	}
	if cred.Notes != "" {
		fmt.Fprintf(deps.out, "notes:    %s\n", cred.Notes)
	}
	fmt.Fprintf(deps.out, "registered: %s\n", cred.RegisterDate)
	for name, value := range cred.CustomFields {
		fmt.Fprintf(deps.out, "%s: %s\n", name, value)
	}
}

func printRecords(deps commandDeps, records []storage.Credential) error {
	if deps.globals.JSON {
		out := make([]map[string]any, 0, len(records))
		for i := range records {
			out = append(out, credentialJSON(&records[i]))
		}
		return printJSON(deps.out, out)
	}
	for i := range records {
		record := &records[i]
		fmt.Fprintf(deps.out, "%d\t%s\t%s\t%s\n", record.ID, record.SiteName, record.LoginAccount, record.Category)
	}
	return notice(deps, "%d record(s)\n", len(records))
}
