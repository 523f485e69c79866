package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/varubogu/flequit-sub003/internal/transfer"
)

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export a project to JSONL or YAML",
	Long: `Export a project and everything in it.

  jsonl  one record per line, parents first; can be imported again
  yaml   a readable tree of lists, tasks and subtasks

Without --output the export is written to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		projectID := args[0]

		var export func(w io.Writer) error
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var result *transfer.Result
		switch format {
		case "jsonl":
			export = func(w io.Writer) error {
				result, err = transfer.ExportJSONL(ctx, store.Repositories, projectID, w)
				return err
			}
		case "yaml":
			export = func(w io.Writer) error {
				return transfer.ExportYAML(ctx, store.Repositories, projectID, w)
			}
		default:
			return fmt.Errorf("unknown format %q (want jsonl or yaml)", format)
		}

		if output == "" {
			return export(cmd.OutOrStdout())
		}
		if err := transfer.WriteFile(output, export); err != nil {
			return err
		}
		if result != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported %s to %s\n", renderPass("✓"), result, output)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported %s to %s\n", renderPass("✓"), projectID, output)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import records from a JSONL export",
	Long: `Import every record of a JSONL export. Existing entities with the same id
are replaced. Records that fail to decode or validate are reported and
skipped; use - to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		out := cmd.OutOrStdout()

		in := cmd.InOrStdin()
		if args[0] != "-" {
			// #nosec G304 - controlled path from CLI
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			defer f.Close()
			in = f
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := transfer.ImportJSONL(ctx, store.Repositories, in, transfer.ImportOptions{DryRun: dryRun})
		if err != nil {
			return err
		}
		for _, e := range result.Errors {
			fmt.Fprintf(out, "%s %s\n", renderFail("✗"), e)
		}

		verb := "Imported"
		if dryRun {
			verb = "Validated"
		}
		mark := renderPass("✓")
		if len(result.Errors) > 0 {
			mark = renderWarn("!")
		}
		fmt.Fprintf(out, "%s %s %s\n", mark, verb, result)
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d records failed", len(result.Errors))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "jsonl", "output format (jsonl, yaml)")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	importCmd.Flags().Bool("dry-run", false, "validate without saving")

	rootCmd.AddCommand(exportCmd, importCmd)
}
