package testutil

import "fmt"

// Fixture functions return map[string]any for JSON encoding.
// This avoids import cycles with the jira package.

// StoryPointField is the custom field id the fixtures put story points in.
const StoryPointField = "customfield_10076"

// BoardsPath is the board listing endpoint.
const BoardsPath = "/rest/agile/1.0/board"

// SprintsPath returns the sprint listing endpoint of a board.
func SprintsPath(boardID string) string {
	return fmt.Sprintf("/rest/agile/1.0/board/%s/sprint", boardID)
}

// IssuesPath returns the issue listing endpoint of a sprint.
func IssuesPath(boardID string, sprintID int) string {
	return fmt.Sprintf("/rest/agile/1.0/board/%s/sprint/%d/issue", boardID, sprintID)
}

// FixtureBoard returns a board listing entry.
func FixtureBoard(id int, projectKey, displayName, boardType string) map[string]any {
	return map[string]any{
		"id":   id,
		"name": projectKey + " board",
		"type": boardType,
		"location": map[string]any{
			"projectKey":  projectKey,
			"displayName": displayName,
		},
	}
}

// FixtureSprint returns a sprint listing entry.
func FixtureSprint(id int, name, state string) map[string]any {
	return map[string]any{
		"id":        id,
		"name":      name,
		"state":     state,
		"startDate": "2024-01-01T09:00:00.000Z",
		"endDate":   "2024-01-14T17:00:00.000Z",
	}
}

// FixtureIssue returns a full issue. assignee may be empty and points nil.
func FixtureIssue(key, issueType, status, assignee string, points any, subtasks ...map[string]any) map[string]any {
	fields := map[string]any{
		"issuetype": map[string]any{
			"name":    issueType,
			"iconUrl": "https://example.test/icons/" + issueType + ".svg",
		},
		"summary":       "Summary of " + key,
		"status":        map[string]any{"name": status},
		"created":       "2024-01-02T10:00:00.000+0000",
		"updated":       "2024-01-03T10:00:00.000+0000",
		StoryPointField: points,
	}
	if assignee != "" {
		fields["assignee"] = map[string]any{
			"displayName":  assignee,
			"emailAddress": assignee + "@example.test",
		}
	}
	if len(subtasks) > 0 {
		fields["subtasks"] = subtasks
	}
	return map[string]any{"key": key, "fields": fields}
}

// FixtureSubtaskStub returns the trimmed subtask record Jira embeds under a parent.
func FixtureSubtaskStub(key, status string) map[string]any {
	return map[string]any{
		"key": key,
		"fields": map[string]any{
			"summary":   "Stub of " + key,
			"status":    map[string]any{"name": status},
			"issuetype": map[string]any{"name": "Sub-task"},
		},
	}
}

// BoardsResponse wraps boards in the paged listing envelope.
func BoardsResponse(boards ...map[string]any) map[string]any {
	return map[string]any{"values": boards}
}

// SprintsResponse wraps sprints in the paged listing envelope.
func SprintsResponse(sprints ...map[string]any) map[string]any {
	return map[string]any{"values": sprints}
}

// IssuesResponse wraps issues in the search result envelope.
func IssuesResponse(issues ...map[string]any) map[string]any {
	return map[string]any{"issues": issues}
}
