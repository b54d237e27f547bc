package aggregate

import (
	"github.com/samber/lo"

	"github.com/jra3/sprintdash/internal/config"
)

// Filter holds independent inclusion lists. An empty list does not restrict.
type Filter struct {
	User   []string `json:"user"`
	Board  []string `json:"board"`
	Sprint []string `json:"sprint"`
}

// Empty reports whether the filter restricts nothing.
func (f Filter) Empty() bool {
	return len(f.User) == 0 && len(f.Board) == 0 && len(f.Sprint) == 0
}

// Apply returns the sprint items that pass the sprint and board filters.
// The user filter keeps tickets assigned to a listed user, or with a
// subtask assigned to one.
func (f Filter) Apply(items []SprintItem) []SprintItem {
	out := lo.Filter(items, func(item SprintItem, _ int) bool {
		if len(f.Sprint) > 0 && !lo.Contains(f.Sprint, item.Key) {
			return false
		}
		if len(f.Board) > 0 && !f.matchesBoard(item) {
			return false
		}
		return true
	})
	if len(f.User) == 0 {
		return out
	}

	return lo.Map(out, func(item SprintItem, _ int) SprintItem {
		item.Issues = lo.Filter(item.Issues, func(t Ticket, _ int) bool {
			return f.matchesUser(t)
		})
		return item
	})
}

func (f Filter) matchesBoard(item SprintItem) bool {
	for _, b := range f.Board {
		if lo.Contains(item.BoardTitle, b) {
			return true
		}
	}
	return false
}

func (f Filter) matchesUser(t Ticket) bool {
	if lo.Contains(f.User, t.Assignee) {
		return true
	}
	for _, sub := range t.Subtasks {
		if lo.Contains(f.User, sub.Assignee) {
			return true
		}
	}
	return false
}

// Options are the choices offered for each filter.
type Options struct {
	Users   []string `json:"users"`
	Boards  []string `json:"boards"`
	Sprints []string `json:"sprints"`
}

// FilterOptions derives filter choices: users with creditable points in items,
// the tracked board names, and the sprint keys of items.
func FilterOptions(items []SprintItem, boards []config.Board) Options {
	return Options{
		Users: GroupByAssignee(items).Users(),
		Boards: lo.Uniq(lo.Map(boards, func(b config.Board, _ int) string {
			return b.Name
		})),
		Sprints: lo.Map(items, func(item SprintItem, _ int) string {
			return item.Key
		}),
	}
}
