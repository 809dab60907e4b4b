package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the operational HTTP server",
		Long: `Starts periodic collection for every stored keyword and serves
/healthz, /readyz and /metrics. SIGINT or SIGTERM drains the collection pool,
then the event pool, before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.buildApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			if err := app.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		},
	}
}
