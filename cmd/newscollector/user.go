package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
	"github.com/JakeFAU/keyword-news-collector/internal/server"
)

func (c *cli) newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their subscriptions",
	}
	cmd.AddCommand(
		c.newUserRegisterCmd(),
		c.newUserKeywordsCmd(),
		c.newUserPlatformsCmd(),
		c.newUserActivateCmd(),
	)
	return cmd
}

func (c *cli) newUserRegisterCmd() *cobra.Command {
	var nickname string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.userChange(cmd, func(ctx context.Context, app *server.App) (news.User, error) {
				return app.Subscriptions().Register(ctx, nickname)
			})
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "display name")
	return cmd
}

func (c *cli) newUserKeywordsCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "keywords [text...]",
		Short: "Replace a user's keyword subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			return c.userChange(cmd, func(ctx context.Context, app *server.App) (news.User, error) {
				return app.Subscriptions().SyncKeywords(ctx, userID, args)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func (c *cli) newUserPlatformsCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "platforms [NAVER|DAUM|GOOGLE...]",
		Short: "Replace the platforms a user's feed draws from",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			return c.userChange(cmd, func(ctx context.Context, app *server.App) (news.User, error) {
				return app.Subscriptions().SyncPlatforms(ctx, userID, args)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func (c *cli) newUserActivateCmd() *cobra.Command {
	var (
		userID  string
		keyword string
		active  bool
	)
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Toggle whether a subscribed keyword is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" || keyword == "" {
				return errors.New("--user and --keyword are required")
			}
			return c.userChange(cmd, func(ctx context.Context, app *server.App) (news.User, error) {
				return app.Subscriptions().SetKeywordActive(ctx, userID, keyword, active)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&keyword, "keyword", "", "subscribed keyword text")
	cmd.Flags().BoolVar(&active, "active", true, "set to false to pause the keyword")
	return cmd
}

func (c *cli) userChange(
	cmd *cobra.Command,
	fn func(ctx context.Context, app *server.App) (news.User, error),
) error {
	return c.withApp(cmd, func(ctx context.Context, app *server.App) error {
		user, err := fn(ctx, app)
		if err != nil {
			return err
		}
		return printJSON(cmd, user)
	})
}
