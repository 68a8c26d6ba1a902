// Package cmd assembles the streamcore CLI's cobra command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/audiorelay/streamcore/cmd/play"
	"github.com/audiorelay/streamcore/internal/conf"
	"github.com/audiorelay/streamcore/internal/logging"
)

// RootCommand creates the root "streamcore" command and its subcommands.
// Configuration precedence, lowest to highest: built-in defaults, the
// YAML file/environment variables conf.Load reads, then these flags.
func RootCommand() *cobra.Command {
	configPath := os.Getenv("STREAMCORE_CONFIG")
	cfg, err := conf.Load(configPath)
	if err != nil {
		cfg = conf.Defaults()
	}

	rootCmd := &cobra.Command{
		Use:   "streamcore",
		Short: "Stream and play network audio",
	}

	if err := setupFlags(rootCmd, cfg); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(play.Command(cfg))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Init(cfg.Log)
		return nil
	}

	return rootCmd
}

// setupFlags defines flags global to every subcommand.
func setupFlags(rootCmd *cobra.Command, cfg *conf.Config) error {
	rootCmd.PersistentFlags().StringVar(&cfg.CacheDirectory, "cache-dir", cfg.CacheDirectory, "Directory used for the on-disk stream cache")
	rootCmd.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Address for the Prometheus metrics server, e.g. :9090 (empty disables it)")
	rootCmd.PersistentFlags().DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Timeout for HTTP/FTP/SFTP input connections")

	return viper.BindPFlags(rootCmd.PersistentFlags())
}
