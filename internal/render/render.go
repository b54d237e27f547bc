// Package render draws the dashboard views for a terminal: the sprint ticket
// tree and the story-point table.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/dustin/go-humanize"

	"github.com/jra3/sprintdash/internal/aggregate"
	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/dashboard"
)

// jiraTime is the timestamp layout of issue created/updated fields.
const jiraTime = "2006-01-02T15:04:05.000-0700"

var (
	sprintStyle = lipgloss.NewStyle().Bold(true)
	keyStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	chipStyle   = lipgloss.NewStyle().Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	statusColors = map[string]lipgloss.Color{
		"In Development": lipgloss.Color("2"),
		"In Testing":     lipgloss.Color("3"),
		"To Do":          lipgloss.Color("4"),
	}

	severityColors = map[string]lipgloss.Color{
		dashboard.SeverityError:   lipgloss.Color("1"),
		dashboard.SeverityWarning: lipgloss.Color("3"),
		dashboard.SeverityInfo:    lipgloss.Color("4"),
		dashboard.SeveritySuccess: lipgloss.Color("2"),
	}
)

type Options struct {
	// BaseURL enables browse links when set.
	BaseURL string
	Now     func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Tickets writes one tree per sprint: tickets under the sprint, subtasks
// under their parent.
func Tickets(w io.Writer, items []aggregate.SprintItem, opts Options) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("No sprints match."))
		return err
	}
	for _, item := range items {
		t := tree.Root(sprintLabel(item)).Enumerator(tree.RoundedEnumerator)
		for _, tk := range item.Issues {
			t.Child(ticketNode(tk, opts))
		}
		if _, err := fmt.Fprintln(w, t.String()); err != nil {
			return err
		}
	}
	return nil
}

func sprintLabel(item aggregate.SprintItem) string {
	var points float64
	for _, t := range item.Issues {
		points += t.Points()
	}
	return fmt.Sprintf("%s %s", sprintStyle.Render(item.Key),
		dimStyle.Render(fmt.Sprintf("(%s) %d tickets, %s pts",
			strings.Join(item.BoardTitle, ", "), len(item.Issues), FormatPoints(points))))
}

func ticketNode(t aggregate.Ticket, opts Options) any {
	label := TicketLine(t, opts)
	if len(t.Subtasks) == 0 {
		return label
	}
	node := tree.Root(label).Enumerator(tree.RoundedEnumerator)
	for _, sub := range t.Subtasks {
		node.Child(TicketLine(sub, opts))
	}
	return node
}

// TicketLine renders a single ticket row.
func TicketLine(t aggregate.Ticket, opts Options) string {
	parts := []string{
		keyStyle.Render(t.Key),
		t.Summary,
		chipStyle.Render("[" + FormatPoints(t.Points()) + "]"),
		StatusStyle(t.Status).Render(t.Status),
	}
	if t.Assignee != "" {
		parts = append(parts, "@"+t.Assignee)
	}
	if ts, err := time.Parse(jiraTime, t.Updated); err == nil {
		parts = append(parts, dimStyle.Render("updated "+humanize.RelTime(ts, opts.now(), "ago", "from now")))
	}
	if opts.BaseURL != "" {
		parts = append(parts, dimStyle.Render(BrowseURL(opts.BaseURL, t.Key)))
	}
	return strings.Join(parts, " ")
}

// StatusStyle colours a status chip. Unknown statuses, Done included, stay
// in the default colour.
func StatusStyle(status string) lipgloss.Style {
	if c, ok := statusColors[status]; ok {
		return chipStyle.Foreground(c)
	}
	return chipStyle
}

// BrowseURL links to an issue in the Jira web UI.
func BrowseURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/browse/" + key
}

// Points writes the assignee by sprint story-point table. Rows are sorted by
// assignee; cells with no credited points show 0.
func Points(w io.Writer, sprints []string, rows []aggregate.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("No open story points."))
		return err
	}

	headers := append([]string{"Assignee"}, sprints...)
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := []string{r.User}
		for _, p := range r.Points {
			line = append(line, FormatPoints(p))
		}
		data = append(data, line)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col > 0:
				return cellStyle.Align(lipgloss.Right)
			default:
				return cellStyle
			}
		})
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// FormatPoints prints story points without trailing zeros.
func FormatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// Alerts writes one line per pending alert, oldest first.
func Alerts(w io.Writer, alerts []dashboard.Alert) error {
	for _, a := range alerts {
		label := lipgloss.NewStyle().Bold(true).Foreground(severityColors[a.Severity]).Render(strings.ToUpper(a.Severity))
		if _, err := fmt.Fprintf(w, "%s %s\n", label, a.Message); err != nil {
			return err
		}
	}
	return nil
}

// Boards writes the tracked boards in fetch order, numbered from 1.
func Boards(w io.Writer, boards []config.Board) error {
	if len(boards) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("No boards configured. Run `sprintdash boards load`."))
		return err
	}
	data := make([][]string, 0, len(boards))
	for i, b := range boards {
		enabled := "yes"
		if !b.Enabled {
			enabled = "no"
		}
		data = append(data, []string{strconv.Itoa(i + 1), b.ID, b.Key, b.Name, enabled})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("#", "ID", "Key", "Name", "Enabled").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.String())
	return err
}
