// Package view is the render-time model for the view backend: instead of
// linear writes, a compiled view program produces a tree of text nodes
// with stable structural identities, and updates diff the previous tree
// against a fresh one into a minimal patch set. Static nodes are built
// once at compile time and shared across every mount and update.
package view

import (
	"fmt"
	"strings"

	"github.com/vk/stampgo/runtime"
)

// Kind discriminates view nodes.
type Kind int

const (
	// KindText is a text node, static or dynamic.
	KindText Kind = iota
	// KindGroup is a control node (branch or loop) owning a child list.
	KindGroup
)

// Node is one node of a mounted view tree. ID is a stable structural
// identity: two trees rendered from the same template address the same
// position with the same ID, with loop iterations keyed by index.
type Node struct {
	ID   string
	Kind Kind
	// Static marks text fixed at compile time. Static nodes are shared
	// between trees by pointer and are never re-evaluated or re-visited
	// after first mount.
	Static   bool
	Text     string
	Children []*Node
}

// Tree is the mounted form of one template render.
type Tree struct {
	Roots []*Node
}

// Serialize flattens the tree's text content in document order. The
// result is byte-identical to what the buffer backend writes for the same
// values.
func Serialize(t *Tree) string {
	var b strings.Builder
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n.Kind == KindText {
				b.WriteString(n.Text)
				continue
			}
			walk(n.Children)
		}
	}
	walk(t.Roots)
	return b.String()
}

// MountFunc builds a view tree for one evaluation scope.
type MountFunc func(ec *runtime.Scope) (*Tree, error)

// Program is the compiled form of one template for the view backend.
type Program struct {
	name  string
	mount MountFunc
}

// NewProgram wraps compiled mount logic.
func NewProgram(name string, mount MountFunc) *Program {
	return &Program{name: name, mount: mount}
}

// Name reports the template the program was compiled from.
func (p *Program) Name() string { return p.name }

// Mount produces the initial view tree for the given values.
func (p *Program) Mount(vars runtime.Vars) (*Tree, error) {
	tree, err := p.mount(runtime.NewEvalContext(vars))
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %w", p.name, err)
	}
	return tree, nil
}

// Update renders a fresh tree for the new values and diffs it against
// prev, returning the new tree plus the minimal patch set that turns prev
// into it.
func (p *Program) Update(prev *Tree, vars runtime.Vars) (*Tree, []Patch, error) {
	next, err := p.mount(runtime.NewEvalContext(vars))
	if err != nil {
		return nil, nil, fmt.Errorf("updating %s: %w", p.name, err)
	}
	return next, Diff(prev, next), nil
}
