package span

import (
	"fmt"
	"unicode/utf8"
)

// Pos is a position within template source text. Line and Column are
// 1-based; Byte is the 0-based offset into the source.
type Pos struct {
	Byte   int
	Line   int
	Column int
}

// Start returns the position of the first byte of a source.
func Start() Pos {
	return Pos{Byte: 0, Line: 1, Column: 1}
}

// Advance returns the position after consuming r at p.
func (p Pos) Advance(r rune, size int) Pos {
	next := Pos{Byte: p.Byte + size, Line: p.Line, Column: p.Column + 1}
	if r == '\n' {
		next.Line = p.Line + 1
		next.Column = 1
	}
	return next
}

// AdvanceString returns the position after consuming all of s at p.
func (p Pos) AdvanceString(s string) Pos {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		p = p.Advance(r, size)
		i += size
	}
	return p
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open [Start, End) region of template source.
type Span struct {
	Start Pos
	End   Pos
}

// New builds a span from two positions.
func New(start, end Pos) Span {
	return Span{Start: start, End: end}
}

func (s Span) String() string {
	return s.Start.String()
}

// Snippet extracts the spanned source text, clamped to the source bounds.
func (s Span) Snippet(src string) string {
	lo, hi := s.Start.Byte, s.End.Byte
	if lo < 0 {
		lo = 0
	}
	if hi > len(src) {
		hi = len(src)
	}
	if lo >= hi {
		return ""
	}
	return src[lo:hi]
}
