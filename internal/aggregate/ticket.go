// Package aggregate turns fetched Jira issues into the dashboard view models:
// sorted tickets, per-sprint items merged across boards, and the assignee
// story-point matrix.
package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/jira"
)

// SubtaskType is the issue type Jira uses for subtasks.
const SubtaskType = "Sub-task"

// TypeOrder is the display priority of issue types. Other types follow.
var TypeOrder = []string{"Story", "Task", "Bug", "Operation"}

// Ticket is the simplified issue shape the views consume. Empty fields are
// left out of the JSON encoding.
type Ticket struct {
	Key        string   `json:"key,omitempty"`
	IconURL    string   `json:"iconUrl,omitempty"`
	Type       string   `json:"type,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Status     string   `json:"status,omitempty"`
	Assignee   string   `json:"assignee,omitempty"`
	Created    string   `json:"created,omitempty"`
	Updated    string   `json:"updated,omitempty"`
	StoryPoint *float64 `json:"story_point,omitempty"`
	Subtasks   []Ticket `json:"subtasks,omitempty"`
}

// Points returns the story points, 0 when unset.
func (t Ticket) Points() float64 {
	if t.StoryPoint == nil {
		return 0
	}
	return *t.StoryPoint
}

// Transformer converts wire issues into tickets.
type Transformer struct {
	StoryPointField string
}

func NewTransformer(storyPointField string) *Transformer {
	if storyPointField == "" {
		storyPointField = config.DefaultStoryPointField
	}
	return &Transformer{StoryPointField: storyPointField}
}

// Transform converts every issue. Embedded subtask stubs are resolved by key
// against issues, since the stubs lack assignee and story points; a key that
// is not in the list falls back to its stub.
func (tr *Transformer) Transform(issues []jira.Issue) []Ticket {
	index := make(map[string]*jira.Issue, len(issues))
	for i := range issues {
		if _, dup := index[issues[i].Key]; !dup {
			index[issues[i].Key] = &issues[i]
		}
	}

	out := make([]Ticket, 0, len(issues))
	for i := range issues {
		out = append(out, tr.transform(&issues[i], index, map[string]bool{}))
	}
	return out
}

func (tr *Transformer) transform(issue *jira.Issue, index map[string]*jira.Issue, visiting map[string]bool) Ticket {
	visiting[issue.Key] = true
	defer delete(visiting, issue.Key)

	f := issue.Fields
	t := Ticket{
		Key:        issue.Key,
		IconURL:    f.IssueType.IconURL,
		Type:       f.IssueType.Name,
		Summary:    f.Summary,
		Status:     f.Status.Name,
		Assignee:   f.AssigneeName(),
		Created:    f.Created,
		Updated:    f.Updated,
		StoryPoint: f.Number(tr.StoryPointField),
	}

	var subtasks []Ticket
	for i := range f.Subtasks {
		stub := &f.Subtasks[i]
		if visiting[stub.Key] {
			continue
		}
		full, ok := index[stub.Key]
		if !ok {
			full = stub
		}
		subtasks = append(subtasks, tr.transform(full, index, visiting))
	}
	if len(subtasks) > 0 {
		t.Subtasks = SortTickets(subtasks)
	}
	return t
}

// SprintTickets transforms a sprint's issues into its top-level ticket list:
// subtasks only appear under their parent.
func (tr *Transformer) SprintTickets(issues []jira.Issue) []Ticket {
	var top []Ticket
	for _, t := range tr.Transform(issues) {
		if t.Type != SubtaskType {
			top = append(top, t)
		}
	}
	return SortTickets(top)
}

// SortTickets returns a sorted copy of tickets. Known types come first in
// TypeOrder, then unknown types in order of first appearance. Within a type,
// keys of the form PREFIX-NUMBER sort by number; other keys follow them in
// their original relative order.
func SortTickets(tickets []Ticket) []Ticket {
	rank := make(map[string]int, len(TypeOrder))
	for i, typ := range TypeOrder {
		rank[typ] = i
	}
	for _, t := range tickets {
		if _, ok := rank[t.Type]; !ok {
			rank[t.Type] = len(rank)
		}
	}

	type sortKey struct {
		rank   int
		num    int
		hasNum bool
	}
	keyOf := func(t Ticket) sortKey {
		n, ok := KeyNumber(t.Key)
		return sortKey{rank: rank[t.Type], num: n, hasNum: ok}
	}

	out := append([]Ticket(nil), tickets...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := keyOf(out[i]), keyOf(out[j])
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.hasNum != b.hasNum {
			return a.hasNum
		}
		return a.hasNum && a.num < b.num
	})
	return out
}

// KeyNumber parses the numeric suffix after the last '-' of an issue key.
func KeyNumber(key string) (int, bool) {
	i := strings.LastIndexByte(key, '-')
	if i <= 0 || i == len(key)-1 {
		return 0, false
	}
	suffix := key[i+1:]
	if suffix[0] < '0' || suffix[0] > '9' {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}
