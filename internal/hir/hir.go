package hir

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/stampgo/internal/span"
	"github.com/vk/stampgo/internal/template"
)

// EscapeMode is the escaping policy attached to one expression.
type EscapeMode int

const (
	// EscapeNone emits the rendered value verbatim.
	EscapeNone EscapeMode = iota
	// EscapeMarkup entity-escapes the rendered value.
	EscapeMarkup
)

func (m EscapeMode) String() string {
	if m == EscapeMarkup {
		return "markup"
	}
	return "none"
}

// Node is one element of the lowered intermediate form.
type Node interface {
	hirNode()
	Span() span.Span
}

// LitRun is a contiguous run of literal output. Lowering guarantees no two
// consecutive LitRun nodes survive in any body.
type LitRun struct {
	Text string
	At   span.Span
}

// Expr is a bound expression with its escaping policy. Refs lists the root
// names the expression references; Locals is the subset bound by an
// enclosing block scope, resolved innermost-first. Roots outside Locals
// are top-level data references, opaque to the compiler.
type Expr struct {
	Src    string
	Bound  hcl.Expression
	Escape EscapeMode
	Refs   []string
	Locals []string
	At     span.Span
}

// If is a conditional branch. An `unless` block lowers to If with the
// branches swapped.
type If struct {
	CondSrc string
	Cond    hcl.Expression
	Then    []Node
	Else    []Node
	At      span.Span
}

// Each is iteration over an iterable value. ItemVar and IndexVar name the
// bindings the body scope introduces; Else renders when the iterable is
// empty.
type Each struct {
	IterSrc  string
	Iterable hcl.Expression
	ItemVar  string
	IndexVar string
	Body     []Node
	Else     []Node
	At       span.Span
}

// Binding is one name=expression pair passed to a partial.
type Binding struct {
	Name string
	Src  string
	Expr hcl.Expression
}

// Partial is an inlined partial subtree. Body is shared between all
// references with the same memo Key, so backends can compile each distinct
// partial once and compose by call.
type Partial struct {
	Name   string
	Key    string
	Params []Binding
	Body   []Node
	At     span.Span
}

func (n *LitRun) Span() span.Span  { return n.At }
func (n *Expr) Span() span.Span    { return n.At }
func (n *If) Span() span.Span      { return n.At }
func (n *Each) Span() span.Span    { return n.At }
func (n *Partial) Span() span.Span { return n.At }

func (*LitRun) hirNode()  {}
func (*Expr) hirNode()    {}
func (*If) hirNode()      {}
func (*Each) hirNode()    {}
func (*Partial) hirNode() {}

// Unit is the lowered form of one root template, ready for a backend.
type Unit struct {
	Template *template.Template
	Nodes    []Node
	// Partials maps memo keys to the single shared subtree for each
	// distinct partial the unit references.
	Partials map[string]*Partial
}
