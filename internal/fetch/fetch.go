// Package fetch resolves tracked boards to their open sprints and each sprint
// to its issues. Calls fan out concurrently; results are slotted by board and
// sprint position so completion order never affects the output.
package fetch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/jira"
)

// Gateway is the subset of the Jira client the fetcher needs.
type Gateway interface {
	ListSprints(ctx context.Context, boardID string) ([]jira.Sprint, error)
	ListSprintIssues(ctx context.Context, boardID string, sprintID int) ([]jira.Issue, error)
}

// BoardSprints is a board with its active and future sprints.
type BoardSprints struct {
	Board   config.Board
	Sprints []jira.Sprint
}

// SprintIssues is the full issue list of one sprint of one board.
type SprintIssues struct {
	Board  config.Board
	Sprint jira.Sprint
	Issues []jira.Issue
}

type Fetcher struct {
	gw  Gateway
	log *zap.Logger
}

func New(gw Gateway, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{gw: gw, log: log}
}

// Boards lists the open sprints of every enabled board. Any failed call
// fails the whole fetch.
func (f *Fetcher) Boards(ctx context.Context, boards []config.Board) ([]BoardSprints, error) {
	var enabled []config.Board
	for _, b := range boards {
		if b.Enabled {
			enabled = append(enabled, b)
		}
	}

	results := make([]BoardSprints, len(enabled))
	g, ctx := errgroup.WithContext(ctx)
	for i, b := range enabled {
		g.Go(func() error {
			sprints, err := f.gw.ListSprints(ctx, b.ID)
			if err != nil {
				return fmt.Errorf("board %s: %w", b.Key, err)
			}
			var open []jira.Sprint
			for _, s := range sprints {
				if s.Open() {
					open = append(open, s)
				}
			}
			f.log.Debug("board sprints",
				zap.String("board", b.Key),
				zap.Int("total", len(sprints)),
				zap.Int("open", len(open)))
			results[i] = BoardSprints{Board: b, Sprints: open}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Issues fetches the issues of every sprint, all in parallel. The result is
// ordered by board, then by the API's sprint order.
func (f *Fetcher) Issues(ctx context.Context, boards []BoardSprints) ([]SprintIssues, error) {
	total := 0
	for _, b := range boards {
		total += len(b.Sprints)
	}

	results := make([]SprintIssues, total)
	g, ctx := errgroup.WithContext(ctx)
	slot := 0
	for _, b := range boards {
		for _, s := range b.Sprints {
			i := slot
			slot++
			g.Go(func() error {
				issues, err := f.gw.ListSprintIssues(ctx, b.Board.ID, s.ID)
				if err != nil {
					return fmt.Errorf("board %s sprint %q: %w", b.Board.Key, s.Name, err)
				}
				results[i] = SprintIssues{Board: b.Board, Sprint: s, Issues: issues}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Fetch runs Boards then Issues.
func (f *Fetcher) Fetch(ctx context.Context, boards []config.Board) ([]SprintIssues, error) {
	bs, err := f.Boards(ctx, boards)
	if err != nil {
		return nil, err
	}
	return f.Issues(ctx, bs)
}
