package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vk/stampgo/internal/lexer"
	"github.com/vk/stampgo/internal/span"
	"github.com/vk/stampgo/internal/template"
)

// ErrorKind classifies parser failures.
type ErrorKind int

const (
	// ErrUnbalanced is a close tag whose helper name does not match the
	// innermost open block.
	ErrUnbalanced ErrorKind = iota
	// ErrUnterminated is end of input with at least one block still open.
	ErrUnterminated
	// ErrBadPartial is a malformed partial reference.
	ErrBadPartial
	// ErrStrayTag is an else or close tag outside any block.
	ErrStrayTag
)

// Error is a structural parse error. For ErrUnbalanced, OpenSpan points at
// the open tag the close failed to match.
type Error struct {
	Kind     ErrorKind
	Template string
	Span     span.Span
	OpenSpan span.Span
	Detail   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Template, e.Span.Start, e.Detail)
}

// frame is one open block on the parse stack. A chained frame was opened
// by {{else if}} and shares its close tag with the enclosing if block.
type frame struct {
	block    *Block
	inElse   bool
	chained  bool
	body     []Node
	elseBody []Node
}

// Parse consumes the token stream into an AST, enforcing block balance
// with a frame stack. Comments are discarded here and never reach the AST.
func Parse(tpl *template.Template, tokens []lexer.Token) (*Root, error) {
	p := &parser{tpl: tpl}
	for i := range tokens {
		if err := p.consume(&tokens[i]); err != nil {
			return nil, err
		}
	}
	if len(p.stack) > 0 {
		f := p.stack[len(p.stack)-1]
		label := "{{#" + f.block.Helper + "}}"
		if f.chained {
			label = "{{else if}}"
		}
		return nil, &Error{
			Kind:     ErrUnterminated,
			Template: tpl.Name,
			Span:     f.block.OpenSpan,
			Detail:   fmt.Sprintf("unterminated block: %s opened at %s is never closed", label, f.block.OpenSpan.Start),
		}
	}
	return &Root{Template: tpl, Nodes: p.top}, nil
}

type parser struct {
	tpl   *template.Template
	top   []Node
	stack []*frame
}

// append adds a node to the innermost open body, or to the root sequence.
func (p *parser) append(n Node) {
	if len(p.stack) == 0 {
		p.top = append(p.top, n)
		return
	}
	f := p.stack[len(p.stack)-1]
	if f.inElse {
		f.elseBody = append(f.elseBody, n)
	} else {
		f.body = append(f.body, n)
	}
}

func (p *parser) consume(tok *lexer.Token) error {
	switch tok.Kind {
	case lexer.KindLiteral:
		p.append(&Literal{Text: tok.Text, At: tok.Span})

	case lexer.KindRawText:
		p.append(&RawBlock{Text: tok.Text, At: tok.Span})

	case lexer.KindComment:
		// Dropped. Adjacent literals merge across the gap during lowering.

	case lexer.KindExpr, lexer.KindRawExpr:
		p.append(&Expr{
			Src:    tok.Text,
			SrcPos: tok.TextPos,
			Raw:    tok.Kind == lexer.KindRawExpr,
			Trim:   Trim{Before: tok.TrimBefore, After: tok.TrimAfter},
			At:     tok.Span,
		})

	case lexer.KindOpenBlock:
		p.stack = append(p.stack, &frame{block: &Block{
			Helper:   tok.Helper,
			Arg:      tok.Text,
			ArgPos:   tok.TextPos,
			OpenTrim: Trim{Before: tok.TrimBefore, After: tok.TrimAfter},
			OpenSpan: tok.Span,
		}})

	case lexer.KindElse:
		if len(p.stack) == 0 {
			return p.stray(tok, "{{else}} outside any block")
		}
		f := p.stack[len(p.stack)-1]
		if f.inElse {
			return p.stray(tok, fmt.Sprintf("duplicate {{else}} in {{#%s}} block", f.block.Helper))
		}
		f.inElse = true
		f.block.HasElse = true
		f.block.ElseTrim = Trim{Before: tok.TrimBefore, After: tok.TrimAfter}
		if tok.Text != "" {
			// {{else if cond}} opens a chained branch: an if block that
			// fills the current else body and shares the close tag.
			if f.block.Helper != "if" {
				return p.stray(tok, fmt.Sprintf("{{else if}} inside {{#%s}} block, chained conditions need {{#if}}", f.block.Helper))
			}
			p.stack = append(p.stack, &frame{
				chained: true,
				block: &Block{
					Helper:   "if",
					Arg:      tok.Text,
					ArgPos:   tok.TextPos,
					OpenTrim: Trim{Before: tok.TrimBefore, After: tok.TrimAfter},
					OpenSpan: tok.Span,
				},
			})
		}

	case lexer.KindCloseBlock:
		for {
			if len(p.stack) == 0 {
				return p.stray(tok, fmt.Sprintf("{{/%s}} without a matching open block", tok.Helper))
			}
			f := p.stack[len(p.stack)-1]
			if f.block.Helper != tok.Helper {
				return &Error{
					Kind:     ErrUnbalanced,
					Template: p.tpl.Name,
					Span:     tok.Span,
					OpenSpan: f.block.OpenSpan,
					Detail: fmt.Sprintf("unbalanced block: {{/%s}} at %s does not close {{#%s}} opened at %s",
						tok.Helper, tok.Span.Start, f.block.Helper, f.block.OpenSpan.Start),
				}
			}
			p.stack = p.stack[:len(p.stack)-1]
			f.block.Body = f.body
			f.block.Else = f.elseBody
			f.block.CloseTrim = Trim{Before: tok.TrimBefore, After: tok.TrimAfter}
			f.block.CloseSpan = tok.Span
			f.block.At = span.New(f.block.OpenSpan.Start, tok.Span.End)
			p.append(f.block)
			if !f.chained {
				break
			}
		}

	case lexer.KindPartial:
		node, err := p.parsePartial(tok)
		if err != nil {
			return err
		}
		p.append(node)
	}
	return nil
}

func (p *parser) stray(tok *lexer.Token, detail string) error {
	return &Error{
		Kind:     ErrStrayTag,
		Template: p.tpl.Name,
		Span:     tok.Span,
		Detail:   detail,
	}
}

// parsePartial splits {{> name k=v ...}} content into the partial name and
// its ordered parameter list. Parameter values run until the next
// depth-zero space, so multi-token expressions need parentheses:
// {{> card title=(greeting + "!")}}.
func (p *parser) parsePartial(tok *lexer.Token) (*Partial, error) {
	content := tok.Text
	if content == "" {
		return nil, &Error{
			Kind:     ErrBadPartial,
			Template: p.tpl.Name,
			Span:     tok.Span,
			Detail:   "partial reference is missing a name",
		}
	}

	name := content
	rest := ""
	restPos := tok.TextPos
	if i := strings.IndexFunc(content, unicode.IsSpace); i >= 0 {
		name = content[:i]
		rest = content[i:]
		restPos = tok.TextPos.AdvanceString(name)
	}
	if !validPartialName(name) {
		return nil, &Error{
			Kind:     ErrBadPartial,
			Template: p.tpl.Name,
			Span:     tok.Span,
			Detail:   fmt.Sprintf("invalid partial name %q", name),
		}
	}

	node := &Partial{
		Name: name,
		Trim: Trim{Before: tok.TrimBefore, After: tok.TrimAfter},
		At:   tok.Span,
	}
	for _, piece := range splitParams(rest, restPos) {
		key, val, ok := strings.Cut(piece.text, "=")
		if !ok || key == "" || val == "" {
			return nil, &Error{
				Kind:     ErrBadPartial,
				Template: p.tpl.Name,
				Span:     span.New(piece.pos, piece.pos.AdvanceString(piece.text)),
				Detail:   fmt.Sprintf("malformed partial parameter %q, want key=expression", piece.text),
			}
		}
		node.Params = append(node.Params, Param{
			Key:    key,
			Src:    val,
			SrcPos: piece.pos.AdvanceString(key + "="),
			At:     span.New(piece.pos, piece.pos.AdvanceString(piece.text)),
		})
	}
	return node, nil
}

type piece struct {
	text string
	pos  span.Pos
}

// splitParams splits parameter text on whitespace at bracket and quote
// depth zero, keeping the source position of each piece.
func splitParams(s string, pos span.Pos) []piece {
	var out []piece
	var quote byte
	depth := 0
	start := -1
	escaped := false

	flush := func(end int) {
		if start >= 0 {
			out = append(out, piece{
				text: s[start:end],
				pos:  pos.AdvanceString(s[:start]),
			})
			start = -1
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			if start < 0 {
				start = i
			}
			quote = c
		case c == '(' || c == '[' || c == '{':
			if start < 0 {
				start = i
			}
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case depth == 0 && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			flush(i)
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(s))
	return out
}

// validPartialName accepts path-like names: letters, digits, and the
// separators used in relative template paths.
func validPartialName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '/':
		default:
			return false
		}
	}
	return !strings.HasPrefix(name, "/") && !strings.Contains(name, "..")
}
