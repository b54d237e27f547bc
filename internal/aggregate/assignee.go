package aggregate

import (
	"sort"

	"github.com/samber/lo"
)

// TerminalStatuses are never credited in the story-point matrix.
var TerminalStatuses = []string{"Done", "Blocked", "Closed", "Abandoned"}

// Matrix maps assignee to sprint key to summed story points.
type Matrix map[string]map[string]float64

// GroupByAssignee sums open story points per assignee and sprint. A ticket
// with subtasks is not credited itself; its subtasks are credited to their
// own assignees instead. Only one level of subtasks is visited.
func GroupByAssignee(items []SprintItem) Matrix {
	m := Matrix{}
	for _, item := range items {
		for _, t := range item.Issues {
			if !creditable(t) {
				continue
			}
			if len(t.Subtasks) == 0 {
				m.add(t.Assignee, item.Key, t.Points())
				continue
			}
			for _, sub := range t.Subtasks {
				if creditable(sub) {
					m.add(sub.Assignee, item.Key, sub.Points())
				}
			}
		}
	}
	return m
}

func creditable(t Ticket) bool {
	return t.Assignee != "" && !lo.Contains(TerminalStatuses, t.Status)
}

func (m Matrix) add(user, sprint string, points float64) {
	row, ok := m[user]
	if !ok {
		row = map[string]float64{}
		m[user] = row
	}
	row[sprint] += points
}

// Users returns the assignees in ascending order.
func (m Matrix) Users() []string {
	users := lo.Keys(m)
	sort.Strings(users)
	return users
}

// Row is one assignee's points, one cell per requested sprint.
type Row struct {
	User   string    `json:"user"`
	Points []float64 `json:"points"`
	Total  float64   `json:"total"`
}

// Rows lays the matrix out for the given sprint columns. Missing cells are 0.
func (m Matrix) Rows(sprints []string) []Row {
	rows := make([]Row, 0, len(m))
	for _, user := range m.Users() {
		r := Row{User: user, Points: make([]float64, len(sprints))}
		for i, s := range sprints {
			r.Points[i] = m[user][s]
			r.Total += r.Points[i]
		}
		rows = append(rows, r)
	}
	return rows
}
