package outline

import (
	"strconv"
	"strings"

	"github.com/noteline/noteline/pkg/models"
)

// TreeNode is one entry of the derived hierarchy forest: a note plus its
// children in collection order. The forest is rebuilt from the flat notes
// snapshot after every change notification and is never persisted.
type TreeNode struct {
	Note     models.Note
	Children []*TreeNode
}

// OutlineEntry is one row of the flattened, labeled outline view produced
// by a pre-order walk of the forest.
type OutlineEntry struct {
	Note models.Note `json:"note"`
	// Depth is the display depth in the rebuilt tree, which may differ
	// from the stored Level if an ancestor was deleted.
	Depth int `json:"depth"`
	// Label is the outline prefix for the entry: Roman, alpha, or numeric
	// depending on depth, empty for roots.
	Label string `json:"label"`
}

// OrganizeHierarchy turns a flat notes snapshot into a rooted forest.
//
// Two passes: the first collects every record by id and gathers roots in
// sequence order; the second appends each non-root record to its parent's
// child list, again in sequence order. A note whose parent id does not
// resolve is treated as a root rather than dropped or rejected: the read
// path must always produce some valid tree, and a missing parent usually
// means a remote delete whose cascade has not finished propagating.
//
// The function is pure: the same snapshot always yields the same forest.
func OrganizeHierarchy(notes []models.Note) []*TreeNode {
	byID := make(map[models.NoteID]*TreeNode, len(notes))
	for _, n := range notes {
		byID[n.ID] = &TreeNode{Note: n}
	}

	var roots []*TreeNode
	for _, n := range notes {
		node := byID[n.ID]
		if n.IsRoot() {
			roots = append(roots, node)
			continue
		}
		parent, ok := byID[n.ParentID]
		if !ok || n.ParentID == n.ID {
			// Orphaned (or self-referential) record: promote to root.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// Flatten performs a pre-order walk of the forest, parent before children,
// children in collection order, assigning each entry its display depth and
// outline label.
func Flatten(forest []*TreeNode) []OutlineEntry {
	var out []OutlineEntry
	var walk func(nodes []*TreeNode, depth int)
	walk = func(nodes []*TreeNode, depth int) {
		for i, node := range nodes {
			out = append(out, OutlineEntry{
				Note:  node.Note,
				Depth: depth,
				Label: OutlineLabel(depth, i),
			})
			walk(node.Children, depth+1)
		}
	}
	walk(forest, 0)
	return out
}

// OutlineLabel renders the outline prefix for a note at the given display
// depth and sibling index:
//
//	depth 0  (root)      no label
//	depth 1  I. II. III. uppercase Roman
//	depth 2  A. B. C.    uppercase letters, wrapping after Z
//	depth 3  1. 2. 3.    arabic numerals
//	depth 4  a) b) c)    lowercase letters, wrapping after z
//	depth 5+ •           literal bullet
func OutlineLabel(depth, index int) string {
	switch depth {
	case 0:
		return ""
	case 1:
		return toRoman(index+1) + "."
	case 2:
		return string(rune('A'+index%26)) + "."
	case 3:
		return strconv.Itoa(index+1) + "."
	case 4:
		return string(rune('a'+index%26)) + ")"
	default:
		return "•"
	}
}

var romanPairs = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// toRoman converts a positive integer using the standard subtractive-pair
// table. Sibling counts are expected to stay small, but the table runs
// through M so large counts render instead of crashing.
func toRoman(num int) string {
	var b strings.Builder
	for _, p := range romanPairs {
		for num >= p.value {
			b.WriteString(p.symbol)
			num -= p.value
		}
	}
	return b.String()
}
