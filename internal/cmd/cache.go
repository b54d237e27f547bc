package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jra3/sprintdash/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or drop the cached sprint data",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show when the cached data expires",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return cacheStatus(ctx, a.cache, cmd.OutOrStdout(), time.Now())
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the cached data; the next view fetches from Jira",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.dash.ClearCache(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cacheStatus(ctx context.Context, c *cache.Cache, out io.Writer, now time.Time) error {
	at, ok, err := c.ExpiresAt(ctx)
	if err != nil {
		return err
	}
	switch {
	case !ok:
		fmt.Fprintln(out, "Cache is empty")
	case at.After(now):
		fmt.Fprintf(out, "Cache expires %s\n", humanize.RelTime(at, now, "ago", "from now"))
	default:
		fmt.Fprintf(out, "Cache expired %s\n", humanize.RelTime(at, now, "ago", "from now"))
	}
	return nil
}
