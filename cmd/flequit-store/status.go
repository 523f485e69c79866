package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/varubogu/flequit-sub003/internal/relational"
	"github.com/varubogu/flequit-sub003/internal/relational/migrate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show documents, cache tables and schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Fprintf(out, "%s %s\n\n", renderAccent("Data directory:"), cfg.DataDir)

		if docs := store.Documents(); docs != nil {
			types, err := docs.ListDocuments(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(types))
			for _, typ := range types {
				rows = append(rows, []string{typ.String(), typ.FileName()})
			}
			fmt.Fprintf(out, "%s %d\n", renderAccent("Documents:"), len(types))
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"Document", "File"}, rows))
			}
		} else {
			fmt.Fprintf(out, "%s %s\n", renderAccent("Documents:"), renderWarn("disabled"))
		}
		fmt.Fprintln(out)

		db := store.DB()
		if db == nil {
			fmt.Fprintf(out, "%s %s\n", renderAccent("Cache:"), renderWarn("disabled"))
		} else {
			size := "-"
			if fi, err := os.Stat(db.Path()); err == nil {
				size = strconv.FormatInt(fi.Size(), 10) + " bytes"
			}
			fmt.Fprintf(out, "%s %s (%s)\n", renderAccent("Cache:"), db.Path(), size)

			r := migrate.New(db, relational.Tables(), logger)
			current, err := r.Current(ctx)
			if err != nil {
				return err
			}
			version := renderPass(fmt.Sprintf("%d", current))
			if current < r.Target() {
				version = renderFail(fmt.Sprintf("%d (target %d)", current, r.Target()))
			}
			fmt.Fprintf(out, "%s %s\n", renderAccent("Schema version:"), version)

			counts, err := db.TableCounts(ctx)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, strconv.FormatInt(counts[name], 10)})
			}
			fmt.Fprintln(out, renderTable([]string{"Table", "Rows"}, rows))
		}

		if showMetrics, _ := cmd.Flags().GetBool("metrics"); showMetrics {
			fmt.Fprintln(out)
			recorder.WritePrometheus(out)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("metrics", false, "also print the operation metrics of this run")
	rootCmd.AddCommand(statusCmd)
}
