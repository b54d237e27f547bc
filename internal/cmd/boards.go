package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/dashboard"
	"github.com/jra3/sprintdash/internal/render"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "Manage the tracked boards",
	Long: `Commands for the boards the dashboard fetches. Boards are fetched and
their sprints ordered in list order; positions are numbered from 1.`,
}

var boardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tracked boards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return render.Boards(cmd.OutOrStdout(), a.state.StoredConfig().Boards)
		})
	},
}

var boardsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replace the tracked boards with every scrum board in Jira",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			boards, err := a.dash.LoadRemoteBoards(ctx)
			if err != nil {
				return explain(a, err)
			}
			return render.Boards(cmd.OutOrStdout(), boards)
		})
	},
}

var boardsMoveCmd = &cobra.Command{
	Use:   "move [from] [to]",
	Short: "Move a board to another position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := position(args[0])
		if err != nil {
			return err
		}
		to, err := position(args[1])
		if err != nil {
			return err
		}
		return editBoards(cmd, func(b []config.Board) ([]config.Board, error) {
			return config.MoveBoard(b, from, to)
		})
	},
}

var boardsRemoveCmd = &cobra.Command{
	Use:   "remove [position]",
	Short: "Stop tracking a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		i, err := position(args[0])
		if err != nil {
			return err
		}
		return editBoards(cmd, func(b []config.Board) ([]config.Board, error) {
			return config.RemoveBoard(b, i)
		})
	},
}

var boardsRenameCmd = &cobra.Command{
	Use:   "rename [position] [name]",
	Short: "Change the display name of a board",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		i, err := position(args[0])
		if err != nil {
			return err
		}
		return editBoards(cmd, func(b []config.Board) ([]config.Board, error) {
			return config.RenameBoard(b, i, args[1])
		})
	},
}

var boardsEnableCmd = &cobra.Command{
	Use:   "enable [board id]",
	Short: "Include a board in fetches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editBoards(cmd, func(b []config.Board) ([]config.Board, error) {
			return config.SetBoardEnabled(b, args[0], true)
		})
	},
}

var boardsDisableCmd = &cobra.Command{
	Use:   "disable [board id]",
	Short: "Skip a board in fetches without forgetting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editBoards(cmd, func(b []config.Board) ([]config.Board, error) {
			return config.SetBoardEnabled(b, args[0], false)
		})
	},
}

func init() {
	boardsCmd.AddCommand(boardsListCmd, boardsLoadCmd, boardsMoveCmd, boardsRemoveCmd,
		boardsRenameCmd, boardsEnableCmd, boardsDisableCmd)
	rootCmd.AddCommand(boardsCmd)
}

// position converts a 1-based position argument to a list index.
func position(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("position must be a number from 1, got %q", arg)
	}
	return n - 1, nil
}

func editBoards(cmd *cobra.Command, edit func([]config.Board) ([]config.Board, error)) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return updateBoards(ctx, a.state, cmd.OutOrStdout(), edit)
	})
}

// updateBoards applies a pure board-list edit to the stored config and prints
// the result. A failed edit leaves the config untouched.
func updateBoards(ctx context.Context, state *dashboard.State, out io.Writer, edit func([]config.Board) ([]config.Board, error)) error {
	err := state.UpdateConfig(ctx, func(c config.JiraConfig) (config.JiraConfig, error) {
		boards, err := edit(c.Boards)
		if err != nil {
			return c, err
		}
		c.Boards = boards
		return c, nil
	})
	if err != nil {
		return err
	}
	return render.Boards(out, state.StoredConfig().Boards)
}
