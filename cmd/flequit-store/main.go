// Command flequit-store manages the local task store: the replicated
// documents under the data directory and the relational cache built from them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/varubogu/flequit-sub003/internal/config"
	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/metrics"
	"github.com/varubogu/flequit-sub003/internal/repository"
)

var (
	cfg       config.Config
	logger    = logging.Discard()
	logCloser io.Closer
	recorder  = metrics.New()
)

var rootCmd = &cobra.Command{
	Use:   "flequit-store",
	Short: "Local task store maintenance",
	Long: `Maintain the local task store.

Tasks live in replicated documents under the data directory (the source of
truth) and are mirrored into a SQLite cache for queries. These commands
inspect both, rebuild the cache, keep it current while documents change,
and move projects in and out as files.

Settings come from --config, FLEQUIT_* environment variables (also read from
.env and .env.local) and the flags below, in increasing precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (toml, yaml or json)")
	flags.String("data-dir", "", "data directory (default $XDG_DATA_HOME/flequit)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig resolves the configuration and opens the log.
func loadConfig(cmd *cobra.Command, args []string) error {
	config.LoadEnvFiles()

	file, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(file)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	c, err := config.FromViper(v)
	if err != nil {
		return err
	}
	cfg = c

	log, closer, err := logging.Open(cfg.LogOptions())
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	logger, logCloser = log, closer
	return nil
}

// bindFlags lets explicitly set flags override the config file and env.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, flag := range map[string]string{
		"data_dir":  "data-dir",
		"log.level": "log-level",
	} {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// openStore opens the backends enabled in the configuration.
func openStore(ctx context.Context) (*repository.Store, error) {
	return repository.Open(ctx, cfg, logger, recorder)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
