package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/config"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/logging"
	"github.com/beesaferoot/tenantly/internal/migration/commands"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tenantly",
		Short:         "Property rental platform backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to a config file (yaml, json or toml)")

	rootCmd.AddCommand(
		serveCmd(),
		routesCmd(),
		commands.MigrateCmd(openDB),
	)
	return rootCmd
}

// loadConfig reads the config named by --config, or the defaults plus
// environment when the flag is empty.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func openDB(cmd *cobra.Command) (*gorm.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return gateway.OpenDB(cfg.Database)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format)
}
