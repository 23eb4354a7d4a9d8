package exprcheck

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/vk/stampgo/internal/span"
)

// Validator parses raw expression text into a bound form or reports a
// syntax error. The template compiler treats the bound form as opaque: no
// evaluation or type checking happens at template-compile time.
type Validator interface {
	Validate(src string, templateName string, at span.Pos) (hcl.Expression, error)
}

// Error is an expression syntax rejection, mapped back into template
// coordinates.
type Error struct {
	Template string
	Span     span.Span
	Detail   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%s: invalid expression: %s", e.Template, e.Span.Start, e.Detail)
}

// HCL validates expressions with the hclsyntax parser.
type HCL struct{}

// New returns the default HCL-backed validator.
func New() *HCL {
	return &HCL{}
}

// Validate parses src as a single HCL expression. Diagnostics come back in
// the expression's own coordinate space; offsets are rebased onto the
// template position the expression text starts at.
func (v *HCL) Validate(src string, templateName string, at span.Pos) (hcl.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), templateName, hcl.InitialPos)
	if diags.HasErrors() {
		first := diags.Errs()[0].(*hcl.Diagnostic)
		errSpan := span.New(at, at.AdvanceString(src))
		if first.Subject != nil {
			start := rebase(at, src, first.Subject.Start.Byte)
			end := rebase(at, src, first.Subject.End.Byte)
			errSpan = span.New(start, end)
		}
		return nil, &Error{
			Template: templateName,
			Span:     errSpan,
			Detail:   first.Detail,
		}
	}
	return expr, nil
}

// rebase maps a byte offset within the expression text onto the template's
// line/column space.
func rebase(base span.Pos, src string, off int) span.Pos {
	if off < 0 {
		off = 0
	}
	if off > len(src) {
		off = len(src)
	}
	return base.AdvanceString(src[:off])
}

// RootNames returns the sorted set of root identifiers an expression
// references. The HIR builder resolves these against the lexical scope
// stack; names bound by no enclosing block are top-level data references.
func RootNames(expr hcl.Expression) []string {
	seen := make(map[string]struct{})
	for _, traversal := range expr.Variables() {
		seen[traversal.RootName()] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TraversalKey renders a traversal as its canonical source text, suitable
// for use as a map key when comparing references across scopes.
func TraversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}
