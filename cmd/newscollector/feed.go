package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/keyword-news-collector/internal/server"
)

func (c *cli) newFeedCmd() *cobra.Command {
	var (
		userID string
		page   int
		size   int
	)
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print one page of a user's personalized feed as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			return c.withApp(cmd, func(ctx context.Context, app *server.App) error {
				entries, err := app.Feed().GetFeed(ctx, userID, page, size)
				if err != nil {
					return err
				}
				return printJSON(cmd, entries)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	return cmd
}
