package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/config"
	"github.com/JakeFAU/keyword-news-collector/internal/logging"
	"github.com/JakeFAU/keyword-news-collector/internal/server"
)

// appFactory builds the application. Tests swap it to inject a logger or
// alternate wiring.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server.App, error)

type cli struct {
	cfgFile  string
	cfg      config.Config
	logger   *zap.Logger
	buildApp appFactory
}

// newRootCmd creates and configures the root command. A nil factory selects
// server.Build.
func newRootCmd(factory appFactory) *cobra.Command {
	if factory == nil {
		factory = server.Build
	}
	c := &cli{buildApp: factory}

	cmd := &cobra.Command{
		Use:          "newscollector",
		Short:        "Collects news for subscribed keywords and serves personalized feeds.",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		c.newServeCmd(),
		c.newCollectCmd(),
		c.newFeedCmd(),
		c.newUserCmd(),
		c.newMigrateCmd(),
	)
	return cmd
}

// withApp builds the application, runs fn and drains the pools afterwards so
// events raised by fn are delivered before the process exits.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *server.App) error) error {
	ctx := cmd.Context()
	app, err := c.buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	runErr := fn(ctx, app)
	if err := app.Close(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("application close incomplete", zap.Error(err))
	}
	return runErr
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
