package parser

import (
	"github.com/vk/stampgo/internal/span"
	"github.com/vk/stampgo/internal/template"
)

// Node is one element of the template AST.
type Node interface {
	Span() span.Span
	node()
}

// Trim records whitespace-control markers on one tag's edges.
type Trim struct {
	Before bool
	After  bool
}

// Root is a parsed template.
type Root struct {
	Template *template.Template
	Nodes    []Node
}

// Literal is a run of plain text between tags.
type Literal struct {
	Text string
	At   span.Span
}

// Expr is an embedded expression tag. The expression source is opaque at
// this stage; validation happens during HIR construction.
type Expr struct {
	Src    string
	SrcPos span.Pos
	// Raw marks the triple-brace form, which is never escaped.
	Raw  bool
	Trim Trim
	At   span.Span
}

// Block is a helper block with an optional else branch. Open/Close/Else
// trims are kept separately: each of the block's tag edges can carry its
// own whitespace-control marker.
type Block struct {
	Helper string
	Arg    string
	ArgPos span.Pos

	Body []Node
	Else []Node
	// HasElse distinguishes an empty else branch from no else at all.
	HasElse bool

	OpenTrim  Trim
	CloseTrim Trim
	ElseTrim  Trim

	OpenSpan  span.Span
	CloseSpan span.Span
	At        span.Span
}

// Param is one key=expr argument of a partial reference.
type Param struct {
	Key    string
	Src    string
	SrcPos span.Pos
	At     span.Span
}

// Partial is a reference to a separately-authored sub-template.
type Partial struct {
	Name   string
	Params []Param
	Trim   Trim
	At     span.Span
}

// RawBlock is verbatim text from a {{{{raw}}}} block; its content is never
// interpreted as tags.
type RawBlock struct {
	Text string
	At   span.Span
}

func (n *Literal) Span() span.Span  { return n.At }
func (n *Expr) Span() span.Span     { return n.At }
func (n *Block) Span() span.Span    { return n.At }
func (n *Partial) Span() span.Span  { return n.At }
func (n *RawBlock) Span() span.Span { return n.At }

func (*Literal) node()  {}
func (*Expr) node()     {}
func (*Block) node()    {}
func (*Partial) node()  {}
func (*RawBlock) node() {}
