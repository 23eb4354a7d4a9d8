package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vk/stampgo/internal/span"
	"github.com/vk/stampgo/internal/template"
)

// ErrorKind classifies lexer failures.
type ErrorKind int

const (
	// ErrUnterminated is a tag opened without a matching close delimiter.
	ErrUnterminated ErrorKind = iota
	// ErrBadDelimiter is a delimiter sequence the grammar does not know.
	ErrBadDelimiter
)

// Error is a lexical error with its source location.
type Error struct {
	Kind     ErrorKind
	Template string
	Span     span.Span
	Detail   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Template, e.Span.Start, e.Detail)
}

const (
	openDelim     = "{{"
	closeDelim    = "}}"
	rawOpenDelim  = "{{{"
	rawCloseDelim = "}}}"
	rawBlockOpen  = "{{{{"
	rawBlockClose = "}}}}"
)

// Scan tokenizes the template source in a single left-to-right pass.
// Positions are tracked per byte so every token carries an exact span.
func Scan(tpl *template.Template) ([]Token, error) {
	s := &scanner{tpl: tpl, src: tpl.Source, pos: span.Start()}
	for s.cur < len(s.src) {
		idx := strings.Index(s.src[s.cur:], openDelim)
		if idx < 0 {
			s.emitLiteral(s.src[s.cur:])
			break
		}
		if idx > 0 {
			s.emitLiteral(s.src[s.cur : s.cur+idx])
		}
		if err := s.scanTag(); err != nil {
			return nil, err
		}
	}
	return s.tokens, nil
}

type scanner struct {
	tpl    *template.Template
	src    string
	cur    int
	pos    span.Pos
	tokens []Token
}

// advance consumes n bytes, keeping the line/column cursor in sync.
func (s *scanner) advance(n int) {
	s.pos = s.pos.AdvanceString(s.src[s.cur : s.cur+n])
	s.cur += n
}

func (s *scanner) emitLiteral(text string) {
	start := s.pos
	s.advance(len(text))
	s.tokens = append(s.tokens, Token{
		Kind:    KindLiteral,
		Text:    text,
		Span:    span.New(start, s.pos),
		TextPos: start,
	})
}

// scanTag consumes one tag beginning at the current cursor, which is
// guaranteed to sit on "{{".
func (s *scanner) scanTag() error {
	start := s.pos
	rest := s.src[s.cur:]

	if strings.HasPrefix(rest, rawBlockOpen) {
		return s.scanRawBlock(start)
	}
	if strings.HasPrefix(rest, rawOpenDelim) {
		return s.scanRawExpr(start)
	}

	inner := rest[len(openDelim):]
	trimBefore := strings.HasPrefix(inner, "~")
	if trimBefore {
		inner = inner[1:]
	}

	if strings.HasPrefix(inner, "!") {
		return s.scanComment(start, trimBefore, inner[1:])
	}

	var kind Kind
	sigil := 0
	switch {
	case strings.HasPrefix(inner, "#"):
		kind, sigil = KindOpenBlock, 1
	case strings.HasPrefix(inner, "/"):
		kind, sigil = KindCloseBlock, 1
	case strings.HasPrefix(inner, ">"):
		kind, sigil = KindPartial, 1
	case strings.HasPrefix(inner, "="), strings.HasPrefix(inner, "&"), strings.HasPrefix(inner, "^"):
		end := s.pos.AdvanceString(openDelim + trimMarker(trimBefore) + inner[:1])
		return &Error{
			Kind:     ErrBadDelimiter,
			Template: s.tpl.Name,
			Span:     span.New(start, end),
			Detail:   fmt.Sprintf("unrecognized tag delimiter %q", openDelim+inner[:1]),
		}
	default:
		kind = KindExpr
	}

	prefixLen := len(openDelim) + len(trimMarker(trimBefore)) + sigil
	content, trimAfter, tagLen, ok := cutTag(rest, prefixLen, closeDelim)
	if !ok {
		return s.unterminated(start, "unterminated tag: missing closing "+closeDelim)
	}

	textPos := s.pos.AdvanceString(rest[:prefixLen])
	s.advance(tagLen)
	tok := Token{
		Kind:       kind,
		Text:       content,
		TrimBefore: trimBefore,
		TrimAfter:  trimAfter,
		Span:       span.New(start, s.pos),
		TextPos:    textPos,
	}

	switch kind {
	case KindOpenBlock:
		text, pos := trimWithPos(content, textPos)
		tok.Helper, tok.Text, tok.TextPos = splitHelper(text, pos)
	case KindCloseBlock:
		tok.Helper, _ = trimWithPos(content, textPos)
		tok.Text = ""
	case KindExpr, KindPartial:
		tok.Text, tok.TextPos = trimWithPos(content, textPos)
		if kind == KindExpr {
			if err := s.classifyExpr(&tok); err != nil {
				return err
			}
		}
	}
	s.tokens = append(s.tokens, tok)
	return nil
}

// classifyExpr recognizes the keyword forms of an expression tag:
// {{else}} and {{else if cond}} become else tokens, and a {{let ...}}
// binding is rejected by name rather than as expression-syntax noise.
func (s *scanner) classifyExpr(tok *Token) error {
	if rest, ok := cutKeyword(tok.Text, "let"); ok && rest != "" {
		return &Error{
			Kind:     ErrBadDelimiter,
			Template: s.tpl.Name,
			Span:     tok.Span,
			Detail:   "local bindings with {{let ...}} are not supported",
		}
	}
	rest, ok := cutKeyword(tok.Text, "else")
	if !ok {
		return nil
	}
	if rest == "" {
		tok.Kind = KindElse
		tok.Text = ""
		return nil
	}
	chain, chainPos := trimWithPos(rest, tok.TextPos.AdvanceString("else"))
	cond, isIf := cutKeyword(chain, "if")
	if !isIf || strings.TrimSpace(cond) == "" {
		return &Error{
			Kind:     ErrBadDelimiter,
			Template: s.tpl.Name,
			Span:     tok.Span,
			Detail:   fmt.Sprintf("malformed else tag %q, want {{else}} or {{else if condition}}", tok.Text),
		}
	}
	tok.Kind = KindElse
	tok.Text, tok.TextPos = trimWithPos(cond, chainPos.AdvanceString("if"))
	return nil
}

// cutKeyword splits a leading keyword off s. It matches only when the
// keyword is the whole string or is followed by whitespace.
func cutKeyword(s, kw string) (string, bool) {
	if !strings.HasPrefix(s, kw) {
		return "", false
	}
	rest := s[len(kw):]
	if rest == "" || unicode.IsSpace(rune(rest[0])) {
		return rest, true
	}
	return "", false
}

// trimWithPos trims surrounding whitespace from tag content, advancing pos
// past the leading part so spans keep pointing at the real text.
func trimWithPos(text string, pos span.Pos) (string, span.Pos) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	pos = pos.AdvanceString(text[:len(text)-len(trimmed)])
	return strings.TrimRightFunc(trimmed, unicode.IsSpace), pos
}

// splitHelper splits block-open content into the helper name and its
// argument text, tracking the argument's source position.
func splitHelper(text string, pos span.Pos) (helper, arg string, argPos span.Pos) {
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return text, "", pos
	}
	arg, argPos = trimWithPos(text[i:], pos.AdvanceString(text[:i]))
	return text[:i], arg, argPos
}

func (s *scanner) scanRawExpr(start span.Pos) error {
	rest := s.src[s.cur:]
	inner := rest[len(rawOpenDelim):]
	trimBefore := strings.HasPrefix(inner, "~")
	prefixLen := len(rawOpenDelim) + len(trimMarker(trimBefore))

	content, trimAfter, tagLen, ok := cutTag(rest, prefixLen, rawCloseDelim)
	if !ok {
		return s.unterminated(start, "unterminated raw expression: missing closing "+rawCloseDelim)
	}

	textPos := s.pos.AdvanceString(rest[:prefixLen])
	text, textPos := trimWithPos(content, textPos)
	s.advance(tagLen)
	s.tokens = append(s.tokens, Token{
		Kind:       KindRawExpr,
		Text:       text,
		TrimBefore: trimBefore,
		TrimAfter:  trimAfter,
		Span:       span.New(start, s.pos),
		TextPos:    textPos,
	})
	return nil
}

func (s *scanner) scanComment(start span.Pos, trimBefore bool, afterBang string) error {
	rest := s.src[s.cur:]
	long := strings.HasPrefix(afterBang, "--")

	closer := closeDelim
	prefixLen := len(rest) - len(afterBang)
	if long {
		closer = "--" + closeDelim
		prefixLen += 2
		afterBang = afterBang[2:]
	}

	end := strings.Index(afterBang, closer)
	if end < 0 {
		return s.unterminated(start, "unterminated comment: missing closing "+closer)
	}
	body := afterBang[:end]

	trimAfter := strings.HasSuffix(body, "~")
	if trimAfter {
		body = body[:len(body)-1]
	}

	textPos := s.pos.AdvanceString(rest[:prefixLen])
	s.advance(prefixLen + end + len(closer))
	s.tokens = append(s.tokens, Token{
		Kind:       KindComment,
		Text:       body,
		TrimBefore: trimBefore,
		TrimAfter:  trimAfter,
		Span:       span.New(start, s.pos),
		TextPos:    textPos,
	})
	return nil
}

// scanRawBlock consumes {{{{raw}}}} ... {{{{/raw}}}}, emitting the body
// verbatim. No tag inside the body is interpreted.
func (s *scanner) scanRawBlock(start span.Pos) error {
	rest := s.src[s.cur:]
	inner := rest[len(rawBlockOpen):]

	end := strings.Index(inner, rawBlockClose)
	if end < 0 {
		return s.unterminated(start, "unterminated raw block: missing closing "+rawBlockClose)
	}
	name := strings.TrimSpace(inner[:end])
	if name != "raw" {
		return &Error{
			Kind:     ErrBadDelimiter,
			Template: s.tpl.Name,
			Span:     span.New(start, s.pos.AdvanceString(rest[:len(rawBlockOpen)+end+len(rawBlockClose)])),
			Detail:   fmt.Sprintf("unsupported raw block helper %q", name),
		}
	}

	openLen := len(rawBlockOpen) + end + len(rawBlockClose)
	body := rest[openLen:]
	closeTag := rawBlockOpen + "/raw" + rawBlockClose
	bodyEnd := strings.Index(body, closeTag)
	if bodyEnd < 0 {
		return s.unterminated(start, "unterminated raw block: missing "+closeTag)
	}

	textPos := s.pos.AdvanceString(rest[:openLen])
	s.advance(openLen + bodyEnd + len(closeTag))
	s.tokens = append(s.tokens, Token{
		Kind:    KindRawText,
		Text:    body[:bodyEnd],
		Span:    span.New(start, s.pos),
		TextPos: textPos,
	})
	return nil
}

func (s *scanner) unterminated(start span.Pos, detail string) error {
	return &Error{
		Kind:     ErrUnterminated,
		Template: s.tpl.Name,
		Span:     span.New(start, s.pos.AdvanceString(s.src[s.cur:])),
		Detail:   detail,
	}
}

// cutTag finds the tag close delimiter, skipping over quoted strings in the
// content so expressions like {{ greet("}}") }} lex correctly. It returns
// the content between prefixLen and the close delimiter (with a trailing
// trim marker stripped), whether that marker was present, and the total
// byte length of the tag.
func cutTag(rest string, prefixLen int, close string) (content string, trimAfter bool, tagLen int, ok bool) {
	var quote byte
	escaped := false
	for i := prefixLen; i < len(rest); i++ {
		c := rest[i]
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
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if strings.HasPrefix(rest[i:], close) {
			content = rest[prefixLen:i]
			if strings.HasSuffix(content, "~") {
				trimAfter = true
				content = content[:len(content)-1]
			}
			return content, trimAfter, i + len(close), true
		}
	}
	return "", false, 0, false
}

func trimMarker(present bool) string {
	if present {
		return "~"
	}
	return ""
}
