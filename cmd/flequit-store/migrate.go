package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/varubogu/flequit-sub003/internal/relational"
	"github.com/varubogu/flequit-sub003/internal/relational/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the cache schema up to date",
	Long: `Apply pending schema migrations to the relational cache and print the
migration ledger.

Migrations are forward-only and idempotent; running this on an up to date
cache changes nothing. Every other command migrates on first use as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Relational.Enabled {
			return errors.New("the relational cache is disabled")
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		db, err := relational.Open(ctx, cfg.RelationalOptions(logger))
		if err != nil {
			return err
		}
		defer db.Close()

		r := migrate.New(db, relational.Tables(), logger)
		applied, err := r.Run(ctx)
		if err != nil {
			return err
		}

		ledger, err := r.Ledger(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(ledger))
		for _, e := range ledger {
			rows = append(rows, []string{strconv.Itoa(e.Version), string(e.Kind), e.Description, e.AppliedAt.Local().Format(time.DateTime)})
		}
		fmt.Fprintln(out, renderTable([]string{"Version", "Kind", "Description", "Applied"}, rows))

		if applied == 0 {
			fmt.Fprintf(out, "%s Schema is up to date (version %d)\n", renderPass("✓"), r.Target())
		} else {
			fmt.Fprintf(out, "%s Applied %d migration(s), schema is at version %d\n", renderPass("✓"), applied, r.Target())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
