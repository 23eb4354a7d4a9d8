package lexer

import "github.com/vk/stampgo/internal/span"

// Kind discriminates the token union produced by Scan.
type Kind int

const (
	// KindLiteral is a run of text between tags.
	KindLiteral Kind = iota
	// KindExpr is an escaped expression tag: {{ expr }}.
	KindExpr
	// KindRawExpr is a raw expression tag: {{{ expr }}}.
	KindRawExpr
	// KindOpenBlock is a block opener: {{#helper arg}}.
	KindOpenBlock
	// KindElse is the {{else}} or {{else if cond}} marker inside a block.
	// For the chained form, Text holds the condition source.
	KindElse
	// KindCloseBlock is a block closer: {{/helper}}.
	KindCloseBlock
	// KindPartial is a partial reference: {{> name k=v ...}}.
	KindPartial
	// KindComment is {{! ... }} or {{!-- ... --}}.
	KindComment
	// KindRawText is the verbatim body of a {{{{raw}}}} block.
	KindRawText
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindExpr:
		return "expression"
	case KindRawExpr:
		return "raw expression"
	case KindOpenBlock:
		return "block open"
	case KindElse:
		return "else"
	case KindCloseBlock:
		return "block close"
	case KindPartial:
		return "partial"
	case KindComment:
		return "comment"
	case KindRawText:
		return "raw text"
	default:
		return "unknown"
	}
}

// Token is one lexical element of a template. Literal tokens use Text for
// the run; tag tokens use Text for the raw tag content (expression source,
// helper argument, or partial reference) with TextPos marking where that
// content begins in the source.
type Token struct {
	Kind Kind

	// Text is the token payload: literal bytes, expression source, block
	// argument, or partial reference content.
	Text string

	// Helper is the helper name for KindOpenBlock and KindCloseBlock.
	Helper string

	// TrimBefore and TrimAfter record whitespace-control markers on the
	// tag's open and close edges.
	TrimBefore bool
	TrimAfter  bool

	// Span covers the whole token, delimiters included.
	Span span.Span

	// TextPos is the source position of the first byte of Text. For
	// KindLiteral it equals Span.Start.
	TextPos span.Pos
}
