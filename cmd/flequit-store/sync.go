package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/varubogu/flequit-sub003/internal/dashboard"
	"github.com/varubogu/flequit-sub003/internal/repository"
	docsync "github.com/varubogu/flequit-sub003/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Project the documents into the relational cache",
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-project every document into the cache",
	Long: `Re-project every document into the relational cache and prune rows whose
document no longer exists. The documents are never modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		syncer, err := newSyncer(cmd, store)
		if err != nil {
			return err
		}
		st, err := syncer.FullSync(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", renderPass("✓"), st)
		if st.FailedDocuments > 0 || st.Failed > 0 {
			fmt.Fprintf(out, "%s some entities could not be projected, see the log\n", renderWarn("!"))
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the cache current while documents change",
	Long: `Sync every document once, then watch the data directory and re-project each
document another replica writes. A full sync also runs periodically to catch
removed documents.

With --listen a dashboard is served on the given address:
  ws://<addr>/ws     sync events and table counts
  http://<addr>/stats
  http://<addr>/metrics
  http://<addr>/health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("full-sync-interval")
		listen, _ := cmd.Flags().GetString("listen")
		out := cmd.OutOrStdout()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		syncer, err := newSyncer(cmd, store)
		if err != nil {
			return err
		}

		dc := docsync.DaemonConfig{
			FullSyncInterval: interval,
			Debounce:         cfg.Document.Debounce,
			Logger:           logger,
			Metrics:          recorder,
			OnSync: func(ev docsync.Event) {
				if ev.Err != nil {
					fmt.Fprintf(out, "%s %v\n", renderFail("✗"), ev.Err)
				}
			},
		}

		if listen != "" {
			server := dashboard.NewServer(dashboard.Config{
				Addr:    listen,
				Counts:  store.DB().TableCounts,
				Metrics: recorder,
				Logger:  logger,
			})
			if err := server.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer server.Stop()

			handler := dashboard.NewHandler(server)
			printErr := dc.OnSync
			dc.OnSync = func(ev docsync.Event) {
				printErr(ev)
				handler.OnSync(ev)
			}
			fmt.Fprintf(out, "Dashboard on http://%s (WebSocket ws://%s/ws)\n", server.Addr(), server.Addr())
		}

		daemon, err := docsync.NewDaemon(store.Documents(), syncer, dc)
		if err != nil {
			return err
		}
		if err := daemon.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s Watching %s\n", renderPass("✓"), store.Documents().Dir())
		fmt.Fprintln(out, "Press Ctrl+C to stop...")

		<-ctx.Done()

		if err := daemon.Stop(); err != nil {
			return fmt.Errorf("failed to stop: %w", err)
		}
		total, syncs := daemon.Stats()
		fmt.Fprintf(out, "\nStopped after %d syncs: %s\n", syncs, total)
		return nil
	},
}

// newSyncer checks both backends are enabled and builds a syncer over them.
func newSyncer(cmd *cobra.Command, store *repository.Store) (docsync.Syncer, error) {
	if store.Documents() == nil || store.DB() == nil {
		return nil, errors.New("syncing needs both the document and the relational backend enabled")
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	return docsync.New(store.Documents(), store.DB(), docsync.Options{
		Concurrency: concurrency,
		Logger:      logger,
	})
}

func init() {
	syncCmd.PersistentFlags().Int("concurrency", 0, "documents projected in parallel (0 means the default)")
	watchCmd.Flags().Duration("full-sync-interval", docsync.DefaultDaemonConfig().FullSyncInterval, "interval between full syncs (0 disables)")
	watchCmd.Flags().String("listen", "", "serve the dashboard on this address, e.g. 127.0.0.1:8080")

	syncCmd.AddCommand(rebuildCmd, watchCmd)
	rootCmd.AddCommand(syncCmd)
}
