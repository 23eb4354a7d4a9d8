// Package escape implements markup escaping for expression output. The
// replacement table matches the one the generated markup targets rely on:
// besides the usual five, `/` and backtick are escaped so values are safe
// inside attribute and inline-script positions.
package escape

import (
	"io"
	"strings"
)

// replacements maps each escaped byte to its entity form.
var replacements = [256]string{
	'"':  "&quot;",
	'&':  "&amp;",
	'\'': "&#x27;",
	'<':  "&lt;",
	'>':  "&gt;",
	'/':  "&#x2f;",
	'`':  "&#x60;",
}

// Markup returns s with markup-significant bytes replaced by entities.
// The input is returned unchanged (no allocation) when nothing needs
// escaping.
func Markup(s string) string {
	first := -1
	for i := 0; i < len(s); i++ {
		if replacements[s[i]] != "" {
			first = i
			break
		}
	}
	if first < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:first])
	for i := first; i < len(s); i++ {
		if r := replacements[s[i]]; r != "" {
			b.WriteString(r)
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// WriteMarkup writes the escaped form of s to w without building an
// intermediate string for the unescaped runs.
func WriteMarkup(w io.Writer, s string) (int, error) {
	written := 0
	runStart := 0
	for i := 0; i < len(s); i++ {
		r := replacements[s[i]]
		if r == "" {
			continue
		}
		if runStart < i {
			n, err := io.WriteString(w, s[runStart:i])
			written += n
			if err != nil {
				return written, err
			}
		}
		n, err := io.WriteString(w, r)
		written += n
		if err != nil {
			return written, err
		}
		runStart = i + 1
	}
	if runStart < len(s) {
		n, err := io.WriteString(w, s[runStart:])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
