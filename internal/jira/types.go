package jira

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jra3/sprintdash/internal/config"
)

// Sprint states returned by the agile API.
const (
	SprintFuture = "future"
	SprintActive = "active"
	SprintClosed = "closed"
)

type Board struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Location BoardLocation `json:"location"`
}

type BoardLocation struct {
	ProjectKey  string `json:"projectKey"`
	DisplayName string `json:"displayName"`
}

type Sprint struct {
	ID            int    `json:"id"`
	Self          string `json:"self"`
	Name          string `json:"name"`
	State         string `json:"state"`
	Goal          string `json:"goal"`
	OriginBoardID int    `json:"originBoardId"`
	CreatedDate   string `json:"createdDate"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

// Open reports whether the sprint is active or future.
func (s Sprint) Open() bool {
	return s.State == SprintActive || s.State == SprintFuture
}

type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	IssueType IssueType `json:"issuetype"`
	Summary   string    `json:"summary"`
	Status    Status    `json:"status"`
	Assignee  *User     `json:"assignee"`
	Created   string    `json:"created"`
	Updated   string    `json:"updated"`
	Subtasks  []Issue   `json:"subtasks"`

	// Custom holds every customfield_* value undecoded, keyed by field id.
	Custom map[string]json.RawMessage `json:"-"`
}

type IssueType struct {
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

type Status struct {
	Name string `json:"name"`
}

type User struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type plain IssueFields
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, v := range all {
		if !strings.HasPrefix(k, "customfield_") {
			continue
		}
		if p.Custom == nil {
			p.Custom = make(map[string]json.RawMessage)
		}
		p.Custom[k] = v
	}

	*f = IssueFields(p)
	return nil
}

// Number returns the numeric value of a custom field, or nil when the field
// is absent, null or not a number.
func (f IssueFields) Number(field string) *float64 {
	raw, ok := f.Custom[field]
	if !ok {
		return nil
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// AssigneeName returns the assignee display name, or "" when unassigned.
func (f IssueFields) AssigneeName() string {
	if f.Assignee == nil {
		return ""
	}
	return f.Assignee.DisplayName
}

// ScrumBoards converts a board listing into tracked config boards,
// keeping only scrum boards in listing order.
func ScrumBoards(boards []Board) []config.Board {
	var out []config.Board
	for _, b := range boards {
		if b.Type != "scrum" {
			continue
		}
		out = append(out, config.Board{
			ID:      strconv.Itoa(b.ID),
			Key:     b.Location.ProjectKey,
			Name:    b.Location.DisplayName,
			Enabled: true,
		})
	}
	return out
}
