package view

// Op is one patch operation kind.
type Op int

const (
	// OpSetText replaces the text of an existing dynamic text node.
	OpSetText Op = iota
	// OpInsert adds a node that did not exist in the previous tree.
	OpInsert
	// OpRemove deletes a node that no longer exists.
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpSetText:
		return "set-text"
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Patch is one minimal mutation turning the previous tree into the next.
type Patch struct {
	Op Op
	// ID addresses the node being mutated, inserted, or removed.
	ID string
	// Text carries the new text for OpSetText, or the serialized content
	// of the inserted subtree for OpInsert.
	Text string
}

// Diff computes the minimal patch set between two trees rendered from the
// same program. Nodes are matched by structural ID; static nodes are
// shared by pointer between trees and are skipped without inspection.
func Diff(prev, next *Tree) []Patch {
	var patches []Patch
	diffChildren(prev.Roots, next.Roots, &patches)
	return patches
}

func diffChildren(prev, next []*Node, patches *[]Patch) {
	prevByID := make(map[string]*Node, len(prev))
	for _, n := range prev {
		prevByID[n.ID] = n
	}
	nextIDs := make(map[string]struct{}, len(next))

	for _, n := range next {
		nextIDs[n.ID] = struct{}{}
		old, ok := prevByID[n.ID]
		if !ok {
			*patches = append(*patches, Patch{Op: OpInsert, ID: n.ID, Text: serializeNode(n)})
			continue
		}
		if old == n {
			// Shared static node, nothing to re-visit.
			continue
		}
		switch n.Kind {
		case KindText:
			if old.Text != n.Text {
				*patches = append(*patches, Patch{Op: OpSetText, ID: n.ID, Text: n.Text})
			}
		case KindGroup:
			diffChildren(old.Children, n.Children, patches)
		}
	}

	for _, n := range prev {
		if _, ok := nextIDs[n.ID]; !ok {
			*patches = append(*patches, Patch{Op: OpRemove, ID: n.ID})
		}
	}
}

func serializeNode(n *Node) string {
	if n.Kind == KindText {
		return n.Text
	}
	return Serialize(&Tree{Roots: n.Children})
}
