package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/keyword-news-collector/internal/server"
)

func (c *cli) newCollectCmd() *cobra.Command {
	var keyword string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *server.App) error {
				if keyword != "" {
					return printJSON(cmd, <-app.Orchestrator().CollectOne(ctx, keyword))
				}
				return printJSON(cmd, <-app.Orchestrator().CollectAll(ctx))
			})
		},
	}
	cmd.Flags().StringVar(&keyword, "keyword", "", "collect a single keyword instead of all of them")
	return cmd
}
