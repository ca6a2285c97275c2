package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"subscription-api/internal/config"
	"subscription-api/internal/infra/logging"
)

type rootOptions struct {
	configPath string
	dev        bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "subscription-api",
		Short:         "Subscription accounts, tariffs and billing webhooks over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "enable developer mode (console logs)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newSeedCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the configuration and builds the process logger.
func (o *rootOptions) load() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath, o.dev)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	return cfg, logger, nil
}
