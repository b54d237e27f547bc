package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jra3/sprintdash/internal/aggregate"
	"github.com/jra3/sprintdash/internal/dashboard"
	"github.com/jra3/sprintdash/internal/render"
)

type viewFlags struct {
	users   []string
	boards  []string
	sprints []string
	refresh bool
}

func (f viewFlags) filter() aggregate.Filter {
	return aggregate.Filter{User: f.users, Board: f.boards, Sprint: f.sprints}
}

var (
	ticketsFlags viewFlags
	pointsFlags  viewFlags
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Show open sprints as ticket trees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return showView(ctx, a, cmd.OutOrStdout(), cmd.ErrOrStderr(), dashboard.TabTickets, ticketsFlags)
		})
	},
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Show open story points per assignee and sprint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return showView(ctx, a, cmd.OutOrStdout(), cmd.ErrOrStderr(), dashboard.TabPoints, pointsFlags)
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [board name...]",
	Short: "Fetch fresh data from Jira",
	Long: `Fetch fresh data for every enabled board, or only for the named boards.
Cached data of the other boards is kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runRefresh(ctx, a, cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
		})
	},
}

func init() {
	for _, c := range []struct {
		cmd   *cobra.Command
		flags *viewFlags
	}{{ticketsCmd, &ticketsFlags}, {pointsCmd, &pointsFlags}} {
		c.cmd.Flags().StringSliceVarP(&c.flags.users, "user", "u", nil, "only these assignees")
		c.cmd.Flags().StringSliceVarP(&c.flags.boards, "board", "b", nil, "only these board names")
		c.cmd.Flags().StringSliceVarP(&c.flags.sprints, "sprint", "s", nil, "only these sprints")
		c.cmd.Flags().BoolVarP(&c.flags.refresh, "refresh", "r", false, "ignore the cache and fetch from Jira")
		rootCmd.AddCommand(c.cmd)
	}
	rootCmd.AddCommand(refreshCmd)
}

// showView loads the sprint list, records tab as the active view and renders
// it with the given filters. A refresh under a board filter only fetches the
// filtered boards.
func showView(ctx context.Context, a *app, out, errOut io.Writer, tab string, f viewFlags) error {
	var err error
	if f.refresh {
		_, err = a.dash.Refresh(ctx, f.boards)
	} else {
		_, err = a.dash.Load(ctx)
	}
	if err != nil {
		return explain(a, err)
	}
	if err := a.state.SetActiveTab(ctx, tab); err != nil {
		return err
	}

	v := a.dash.View(f.filter())
	switch tab {
	case dashboard.TabPoints:
		err = render.Points(out, v.Sprints, v.Rows)
	default:
		err = render.Tickets(out, v.Items, render.Options{BaseURL: a.state.Config().BaseURL})
	}
	if err != nil {
		return err
	}
	return render.Alerts(errOut, a.state.Alerts())
}

func runRefresh(ctx context.Context, a *app, out, errOut io.Writer, boards []string) error {
	res, err := a.dash.Refresh(ctx, boards)
	if err != nil {
		return explain(a, err)
	}
	fmt.Fprintf(out, "Fetched %d sprints\n", len(res.Items))
	return render.Alerts(errOut, a.state.Alerts())
}

// explain turns a missing configuration into a pointer at the config
// commands.
func explain(a *app, err error) error {
	if errors.Is(err, dashboard.ErrConfigMissing) {
		return fmt.Errorf("%w: set %s with `sprintdash config set`",
			err, strings.Join(a.state.Config().Missing(), ", "))
	}
	return err
}
