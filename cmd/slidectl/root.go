package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gopherai-slides/internal/bootstrap"
	"gopherai-slides/internal/config"
)

var (
	configFile string
	useSQLite  bool
)

var rootCmd = &cobra.Command{
	Use:           "slidectl",
	Short:         "Generate presentations and query their knowledge bases",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVar(&useSQLite, "sqlite", false, "store presentations in the local sqlite database")
}

// openApp builds the full pipeline without consuming the generation queue.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return nil, err
		}
	}
	app, err := bootstrap.New(ctx,
		bootstrap.WithoutWorker(),
		bootstrap.WithConfig(func(cfg *config.Config) {
			if useSQLite {
				cfg.Database.Driver = "sqlite"
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("bootstrap failed: %w", err)
	}
	return app, nil
}
