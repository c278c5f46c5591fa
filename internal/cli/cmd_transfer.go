package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snipermjy/password-manager/internal/app"
	"github.com/snipermjy/password-manager/internal/codec"
)

func newExportCommand(deps commandDeps) *cobra.Command {
	var (
		formatName     string
		output         string
		includeDeleted bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export credentials to CSV, Excel or JSON",
		Example: "  mima export --output passwords.csv\n" +
			"  mima export --format excel --output passwords.xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("export does not accept positional arguments")
			}
			if output == "" {
				return usageErrorf("export requires --output")
			}
			format, err := codec.ParseFormat(formatName)
			if err != nil {
				return usageErrorf("unsupported format %q (csv, excel, json)", formatName)
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				records, err := vault.List(ctx, includeDeleted)
				if err != nil {
					return err
				}
				if err := vault.ExportFile(records, format, output); err != nil {
					return err
				}
				return notice(deps, "exported %d record(s) to %s\n", len(records), output)
			})
		},
	}
	cmd.Flags().StringVar(&formatName, "format", "csv", "Export format: csv, excel or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (required)")
	cmd.Flags().BoolVar(&includeDeleted, "all", false, "Include recycle-bin records")
	return cmd
}

func newImportCommand(deps commandDeps) *cobra.Command {
	var (
		formatName string
		input      string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import credentials from CSV, Excel or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("import does not accept positional arguments")
			}
			if input == "" {
				return usageErrorf("import requires --input")
			}
			format, err := codec.ParseFormat(formatName)
			if err != nil {
				return usageErrorf("unsupported format %q (csv, excel, json)", formatName)
			}
			return withVault(cmd.Context(), deps, func(ctx context.Context, vault *app.VaultService) error {
				report, err := vault.ImportFile(ctx, input, format)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, report)
				}
				for _, rowErr := range report.Errors {
					fmt.Fprintln(deps.out, rowErr)
				}
				return notice(deps, "imported %d record(s), rejected %d\n", report.Imported, len(report.Errors))
			})
		},
	}
	cmd.Flags().StringVar(&formatName, "format", "csv", "Import format: csv, excel or json")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file path (required)")
	return cmd
}
