package orchestrator

import (
	"strings"

	"github.com/ethangolledge/doc-query/internal/config"
)

// SelectionKind is the shape of an operator's type selection.
type SelectionKind int

const (
	// SelectExplicit names specific types in Types.
	SelectExplicit SelectionKind = iota
	// SelectAll downloads every file regardless of the allow-list.
	SelectAll
	// SelectNone downloads nothing.
	SelectNone
)

// Selection is an operator's answer to the type prompt.
type Selection struct {
	Kind  SelectionKind
	Types []string
}

// ParseSelection reads "all", "none" (case-insensitive) or a comma-separated
// list of types.
func ParseSelection(raw string) Selection {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "all":
		return Selection{Kind: SelectAll}
	case "none":
		return Selection{Kind: SelectNone}
	}
	return Selection{Kind: SelectExplicit, Types: config.SplitList(raw)}
}

// JoinWithAnd renders items as "a", "a and b" or "a, b, and c".
func JoinWithAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
