package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDuplicateBoard is returned when a board list repeats an id.
var ErrDuplicateBoard = errors.New("duplicate board id")

// Board is a tracked Jira board. Its position in JiraConfig.Boards is the
// display and merge precedence.
type Board struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// JiraConfig holds the connection credentials and the tracked boards.
// It is treated as a value: every edit returns a new copy.
type JiraConfig struct {
	Email           string  `json:"email"`
	APIKey          string  `json:"apiKey"`
	BaseURL         string  `json:"baseURL"`
	SprintStartWord string  `json:"sprintStartWord"`
	Boards          []Board `json:"boards"`
}

// Missing lists the required connection fields that are empty.
func (c JiraConfig) Missing() []string {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "baseURL")
	}
	if c.Email == "" {
		missing = append(missing, "email")
	}
	if c.APIKey == "" {
		missing = append(missing, "apiKey")
	}
	return missing
}

// Validate checks the board list invariants.
func (c JiraConfig) Validate() error {
	seen := make(map[string]bool, len(c.Boards))
	for _, b := range c.Boards {
		if seen[b.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateBoard, b.ID)
		}
		seen[b.ID] = true
	}
	return nil
}

// Clone returns a deep copy so callers can edit without aliasing the board slice.
func (c JiraConfig) Clone() JiraConfig {
	out := c
	out.Boards = append([]Board(nil), c.Boards...)
	return out
}

// WithEnv overlays non-empty environment overrides.
func (c JiraConfig) WithEnv(env EnvOverrides) JiraConfig {
	out := c.Clone()
	if env.BaseURL != "" {
		out.BaseURL = env.BaseURL
	}
	if env.Email != "" {
		out.Email = env.Email
	}
	if env.APIKey != "" {
		out.APIKey = env.APIKey
	}
	return out
}

// BoardKeys returns the board keys in precedence order.
func (c JiraConfig) BoardKeys() []string {
	keys := make([]string, 0, len(c.Boards))
	for _, b := range c.Boards {
		keys = append(keys, b.Key)
	}
	return keys
}

// EnabledBoards returns the boards that take part in fetches.
func (c JiraConfig) EnabledBoards() []Board {
	var out []Board
	for _, b := range c.Boards {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}

// Set assigns a scalar field by its JSON name.
func (c JiraConfig) Set(key, value string) (JiraConfig, error) {
	out := c.Clone()
	switch key {
	case "email":
		out.Email = value
	case "apiKey":
		out.APIKey = value
	case "baseURL":
		out.BaseURL = value
	case "sprintStartWord":
		out.SprintStartWord = value
	default:
		return c, fmt.Errorf("unknown config key %q (want email, apiKey, baseURL or sprintStartWord)", key)
	}
	return out, nil
}

// MoveBoard returns a new list with the board at from moved to to.
func MoveBoard(boards []Board, from, to int) ([]Board, error) {
	if err := checkIndex(boards, from); err != nil {
		return nil, err
	}
	if err := checkIndex(boards, to); err != nil {
		return nil, err
	}
	out := make([]Board, 0, len(boards))
	moved := boards[from]
	for i, b := range boards {
		if i != from {
			out = append(out, b)
		}
	}
	out = append(out[:to], append([]Board{moved}, out[to:]...)...)
	return out, nil
}

// RemoveBoard returns a new list without the board at index.
func RemoveBoard(boards []Board, index int) ([]Board, error) {
	if err := checkIndex(boards, index); err != nil {
		return nil, err
	}
	out := make([]Board, 0, len(boards)-1)
	out = append(out, boards[:index]...)
	return append(out, boards[index+1:]...), nil
}

// RenameBoard returns a new list with the board at index renamed.
func RenameBoard(boards []Board, index int, name string) ([]Board, error) {
	if err := checkIndex(boards, index); err != nil {
		return nil, err
	}
	out := append([]Board(nil), boards...)
	out[index].Name = name
	return out, nil
}

// SetBoardEnabled returns a new list with the board identified by id toggled.
func SetBoardEnabled(boards []Board, id string, enabled bool) ([]Board, error) {
	out := append([]Board(nil), boards...)
	for i := range out {
		if out[i].ID == id {
			out[i].Enabled = enabled
			return out, nil
		}
	}
	return nil, fmt.Errorf("board %q not found", id)
}

func checkIndex(boards []Board, i int) error {
	if i < 0 || i >= len(boards) {
		return fmt.Errorf("board index %d out of range [0, %d)", i, len(boards))
	}
	return nil
}

// exportDoc fixes the key order of exported files.
type exportDoc struct {
	Email           string  `json:"email,omitempty"`
	APIKey          string  `json:"apiKey,omitempty"`
	BaseURL         string  `json:"baseURL,omitempty"`
	SprintStartWord string  `json:"sprintStartWord,omitempty"`
	Boards          []Board `json:"boards"`
}

// Export serialises the config for sharing. Credentials are only included
// when confirm is set; empty strings are left out, the board list is always
// written.
func Export(c JiraConfig, confirm bool) ([]byte, error) {
	doc := exportDoc{
		BaseURL:         c.BaseURL,
		SprintStartWord: c.SprintStartWord,
		Boards:          c.Boards,
	}
	if doc.Boards == nil {
		doc.Boards = []Board{}
	}
	if confirm {
		doc.Email = c.Email
		doc.APIKey = c.APIKey
	}
	return json.Marshal(doc)
}

// Import parses an exported document. The result replaces the current
// config wholesale; absent fields come back empty.
func Import(data []byte) (JiraConfig, error) {
	var doc exportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return JiraConfig{}, fmt.Errorf("parse config document: %w", err)
	}
	c := JiraConfig{
		Email:           doc.Email,
		APIKey:          doc.APIKey,
		BaseURL:         doc.BaseURL,
		SprintStartWord: doc.SprintStartWord,
		Boards:          doc.Boards,
	}
	if err := c.Validate(); err != nil {
		return JiraConfig{}, err
	}
	return c, nil
}
