package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jra3/sprintdash/internal/fetch"
)

// BoardSprint is the ticket list of one sprint of one board, before sprints
// sharing a name are merged. It is the unit the cache keeps so a
// board-scoped refresh can replace one board's data.
type BoardSprint struct {
	Sprint     string   `json:"sprint"`
	BoardID    string   `json:"boardId"`
	BoardTitle string   `json:"boardTitle"`
	Issues     []Ticket `json:"issues"`
}

// SprintItem merges every board's tickets for one sprint name.
type SprintItem struct {
	Key        string   `json:"key"`
	BoardTitle []string `json:"boardTitle"`
	Issues     []Ticket `json:"issues"`
}

// BoardSprints transforms fetched sprint issues into per-board sprint records,
// preserving fetch order.
func (tr *Transformer) BoardSprints(fetched []fetch.SprintIssues) []BoardSprint {
	out := make([]BoardSprint, 0, len(fetched))
	for _, si := range fetched {
		out = append(out, BoardSprint{
			Sprint:     si.Sprint.Name,
			BoardID:    si.Board.ID,
			BoardTitle: si.Board.Name,
			Issues:     tr.SprintTickets(si.Issues),
		})
	}
	return out
}

// MergeSprints groups records by sprint name in order of first appearance,
// concatenating board titles and issues.
func MergeSprints(raw []BoardSprint) []SprintItem {
	var items []SprintItem
	pos := make(map[string]int)
	for _, r := range raw {
		i, ok := pos[r.Sprint]
		if !ok {
			i = len(items)
			pos[r.Sprint] = i
			items = append(items, SprintItem{Key: r.Sprint, BoardTitle: []string{}, Issues: []Ticket{}})
		}
		items[i].BoardTitle = append(items[i].BoardTitle, r.BoardTitle)
		items[i].Issues = append(items[i].Issues, r.Issues...)
	}
	return items
}

// SprintKey is a sprint name split into its board key and label.
type SprintKey struct {
	Board   string
	Label   string
	Number  int
	Numeric bool
}

// ParseSprintKey splits a sprint name of the form "<BOARD> <startWord><N>",
// e.g. "ALPHA Sprint 12" with startWord "Sprint ". The board key is the first
// word. The number is read from the rest of the name with startWord removed,
// falling back to the last word with startWord removed.
func ParseSprintKey(key, startWord string) SprintKey {
	fields := strings.Fields(key)
	if len(fields) == 0 {
		return SprintKey{}
	}
	sk := SprintKey{Board: fields[0]}
	if len(fields) == 1 {
		return sk
	}

	rest := strings.Join(fields[1:], " ")
	sk.Label = rest
	if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(rest, startWord))); err == nil {
		sk.Number, sk.Numeric = n, true
		return sk
	}
	last := strings.TrimPrefix(fields[len(fields)-1], strings.TrimSpace(startWord))
	if n, err := strconv.Atoi(last); err == nil {
		sk.Number, sk.Numeric = n, true
	}
	return sk
}

// OrderSprints returns items sorted by the position of their board key in
// boardOrder, then by ascending sprint number. Sprints of unknown boards go
// last in their existing order; non-numeric labels follow numeric ones.
func OrderSprints(items []SprintItem, boardOrder []string, startWord string) []SprintItem {
	pos := make(map[string]int, len(boardOrder))
	for i, k := range boardOrder {
		if _, ok := pos[k]; !ok {
			pos[k] = i
		}
	}

	type sortKey struct {
		board int
		SprintKey
	}
	keyOf := func(item SprintItem) sortKey {
		sk := ParseSprintKey(item.Key, startWord)
		p, ok := pos[sk.Board]
		if !ok {
			p = -1
		}
		return sortKey{board: p, SprintKey: sk}
	}

	out := append([]SprintItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := keyOf(out[i]), keyOf(out[j])
		switch {
		case a.board < 0:
			return false
		case b.board < 0:
			return true
		case a.board != b.board:
			return a.board < b.board
		case a.Numeric != b.Numeric:
			return a.Numeric
		}
		return a.Numeric && a.Number < b.Number
	})
	return out
}
