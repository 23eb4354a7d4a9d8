package hir

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/stampgo/internal/ctxlog"
	"github.com/vk/stampgo/internal/exprcheck"
	"github.com/vk/stampgo/internal/parser"
	"github.com/vk/stampgo/internal/resolver"
	"github.com/vk/stampgo/internal/span"
	"github.com/vk/stampgo/internal/template"
)

// BindingError is an expression that failed validation, or a block
// construct the lowering stage cannot bind.
type BindingError struct {
	Template string
	Span     span.Span
	Detail   string
	Err      error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Template, e.Span.Start, e.Detail)
}

func (e *BindingError) Unwrap() error { return e.Err }

// Build lowers a partial-resolved AST into HIR: whitespace control is
// resolved against unmerged literal edges first, adjacent literals are
// merged, every expression is bound through the validator, and escape
// modes are assigned from the template's render mode.
func Build(ctx context.Context, root *parser.Root, table resolver.Table, validator exprcheck.Validator) (*Unit, error) {
	b := &builder{
		tpl:       root.Template,
		table:     table,
		validator: validator,
		bodies:    make(map[string][]Node),
		partials:  make(map[string]*Partial),
	}
	nodes, err := b.lowerNodes(ctx, root.Template.Name, root.Nodes, nil, false, false)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Lowering complete.",
		"template", root.Template.Name, "top_level_nodes", len(nodes), "partials", len(b.partials))
	return &Unit{Template: root.Template, Nodes: nodes, Partials: b.partials}, nil
}

type builder struct {
	tpl       *template.Template
	table     resolver.Table
	validator exprcheck.Validator

	// bodies memoizes lowered partial subtrees by memo key so repeated
	// references share one subtree.
	bodies   map[string][]Node
	partials map[string]*Partial
}

// seqState tracks the literal-merge tail of one body being lowered.
// lastSegStart marks where the most recent unmerged literal begins inside
// the merged run, so trim markers see unmerged edges.
type seqState struct {
	out          []Node
	lastSegStart int
	lastSegRaw   bool
	trimNextLeft bool
}

func (st *seqState) emitLiteral(text string, at span.Span) {
	if text == "" {
		return
	}
	st.lastSegRaw = false
	if len(st.out) > 0 {
		if lit, ok := st.out[len(st.out)-1].(*LitRun); ok {
			st.lastSegStart = len(lit.Text)
			lit.Text += text
			lit.At.End = at.End
			return
		}
	}
	st.out = append(st.out, &LitRun{Text: text, At: at})
	st.lastSegStart = 0
}

func (st *seqState) emit(n Node) {
	st.trimNextLeft = false
	st.out = append(st.out, n)
}

// trimLastRight applies a TrimBefore marker to the tail of the preceding
// literal, restricted to its unmerged final segment.
func (st *seqState) trimLastRight() {
	if len(st.out) == 0 || st.lastSegRaw {
		return
	}
	lit, ok := st.out[len(st.out)-1].(*LitRun)
	if !ok {
		return
	}
	lit.Text = lit.Text[:st.lastSegStart] + trimTrailing(lit.Text[st.lastSegStart:])
	if lit.Text == "" {
		st.out = st.out[:len(st.out)-1]
		st.lastSegStart = 0
	}
}

// trimTrailing removes spaces and tabs from the end of s, then at most one
// newline, then stops.
func trimTrailing(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == '\t') {
		i--
	}
	if i > 0 && s[i-1] == '\n' {
		i--
		if i > 0 && s[i-1] == '\r' {
			i--
		}
	}
	return s[:i]
}

// trimLeading removes spaces and tabs from the start of s, then at most
// one newline, then stops.
func trimLeading(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i < len(s) && s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
		i += 2
	} else if i < len(s) && s[i] == '\n' {
		i++
	}
	return s[i:]
}

// lowerNodes lowers one body sequence. trimLead and trimTrail are edge
// trims contributed by the enclosing tag's inner whitespace markers.
func (b *builder) lowerNodes(ctx context.Context, tplName string, nodes []parser.Node, sc *scope, trimLead, trimTrail bool) ([]Node, error) {
	st := &seqState{trimNextLeft: trimLead}

	for _, n := range nodes {
		switch node := n.(type) {
		case *parser.Literal:
			text := node.Text
			if st.trimNextLeft {
				text = trimLeading(text)
				st.trimNextLeft = false
			}
			st.emitLiteral(text, node.At)

		case *parser.RawBlock:
			// Raw blocks promise verbatim output, so adjacent trim
			// markers never reach into them. An empty block emits
			// nothing and blocks nothing.
			st.trimNextLeft = false
			if node.Text != "" {
				st.emitLiteral(node.Text, node.At)
				st.lastSegRaw = true
			}

		case *parser.Expr:
			if node.Trim.Before {
				st.trimLastRight()
			}
			expr, err := b.lowerExpr(tplName, node, sc)
			if err != nil {
				return nil, err
			}
			st.emit(expr)
			st.trimNextLeft = node.Trim.After

		case *parser.Block:
			if node.OpenTrim.Before {
				st.trimLastRight()
			}
			lowered, err := b.lowerBlock(ctx, tplName, node, sc)
			if err != nil {
				return nil, err
			}
			st.emit(lowered)
			st.trimNextLeft = node.CloseTrim.After

		case *parser.Partial:
			if node.Trim.Before {
				st.trimLastRight()
			}
			lowered, err := b.lowerPartial(ctx, tplName, node, sc)
			if err != nil {
				return nil, err
			}
			st.emit(lowered)
			st.trimNextLeft = node.Trim.After
		}
	}

	if trimTrail {
		st.trimLastRight()
	}
	return st.out, nil
}

func (b *builder) lowerExpr(tplName string, node *parser.Expr, sc *scope) (*Expr, error) {
	bound, refs, locals, err := b.bind(tplName, node.Src, node.SrcPos, node.At, sc)
	if err != nil {
		return nil, err
	}
	mode := EscapeNone
	if b.tpl.Mode == template.ModeMarkup && !node.Raw {
		mode = EscapeMarkup
	}
	return &Expr{
		Src:    node.Src,
		Bound:  bound,
		Escape: mode,
		Refs:   refs,
		Locals: locals,
		At:     node.At,
	}, nil
}

func (b *builder) lowerBlock(ctx context.Context, tplName string, node *parser.Block, sc *scope) (Node, error) {
	if strings.TrimSpace(node.Arg) == "" {
		return nil, &BindingError{
			Template: tplName,
			Span:     node.OpenSpan,
			Detail:   fmt.Sprintf("{{#%s}} requires an argument expression", node.Helper),
		}
	}
	bound, _, _, err := b.bind(tplName, node.Arg, node.ArgPos, node.OpenSpan, sc)
	if err != nil {
		return nil, err
	}

	// Inner edge trims: the open tag's trailing marker trims the body's
	// leading edge; the close tag's leading marker trims whichever branch
	// ends at it.
	bodyTrail := node.CloseTrim.Before
	if node.HasElse {
		bodyTrail = node.ElseTrim.Before
	}

	lowerBranches := func(sc *scope) (then, alt []Node, err error) {
		then, err = b.lowerNodes(ctx, tplName, node.Body, sc, node.OpenTrim.After, bodyTrail)
		if err != nil {
			return nil, nil, err
		}
		if node.HasElse {
			alt, err = b.lowerNodes(ctx, tplName, node.Else, sc, node.ElseTrim.After, node.CloseTrim.Before)
			if err != nil {
				return nil, nil, err
			}
		}
		return then, alt, nil
	}

	switch node.Helper {
	case "if":
		then, alt, err := lowerBranches(sc)
		if err != nil {
			return nil, err
		}
		return &If{CondSrc: node.Arg, Cond: bound, Then: then, Else: alt, At: node.At}, nil

	case "unless":
		then, alt, err := lowerBranches(sc)
		if err != nil {
			return nil, err
		}
		// unless is if with the branches swapped.
		return &If{CondSrc: node.Arg, Cond: bound, Then: alt, Else: then, At: node.At}, nil

	case "each":
		child := sc.push("this", "index")
		body, err := b.lowerNodes(ctx, tplName, node.Body, child, node.OpenTrim.After, bodyTrail)
		if err != nil {
			return nil, err
		}
		var alt []Node
		if node.HasElse {
			// The empty branch renders outside the iteration scope.
			alt, err = b.lowerNodes(ctx, tplName, node.Else, sc, node.ElseTrim.After, node.CloseTrim.Before)
			if err != nil {
				return nil, err
			}
		}
		return &Each{
			IterSrc:  node.Arg,
			Iterable: bound,
			ItemVar:  "this",
			IndexVar: "index",
			Body:     body,
			Else:     alt,
			At:       node.At,
		}, nil

	default:
		return nil, &BindingError{
			Template: tplName,
			Span:     node.OpenSpan,
			Detail:   fmt.Sprintf("unknown helper %q", node.Helper),
		}
	}
}

func (b *builder) lowerPartial(ctx context.Context, tplName string, node *parser.Partial, sc *scope) (*Partial, error) {
	entry, ok := b.table[node.Name]
	if !ok {
		return nil, &BindingError{
			Template: tplName,
			Span:     node.At,
			Detail:   fmt.Sprintf("partial %q was not resolved", node.Name),
		}
	}

	params := make([]Binding, 0, len(node.Params))
	paramNames := make([]string, 0, len(node.Params))
	for _, p := range node.Params {
		bound, _, _, err := b.bind(tplName, p.Src, p.SrcPos, p.At, sc)
		if err != nil {
			return nil, err
		}
		params = append(params, Binding{Name: p.Key, Src: p.Src, Expr: bound})
		paramNames = append(paramNames, p.Key)
	}

	key := memoKey(node.Name, paramNames)
	body, ok := b.bodies[key]
	if !ok {
		// A partial body binds against its own parameters plus top-level
		// data; the reference site's scope never leaks in.
		inner := (*scope)(nil).push(paramNames...)
		var err error
		body, err = b.lowerNodes(ctx, node.Name, entry.AST.Nodes, inner, false, false)
		if err != nil {
			return nil, err
		}
		b.bodies[key] = body
	}

	lowered := &Partial{Name: node.Name, Key: key, Params: params, Body: body, At: node.At}
	if _, ok := b.partials[key]; !ok {
		b.partials[key] = lowered
	}
	return lowered, nil
}

func memoKey(name string, paramNames []string) string {
	if len(paramNames) == 0 {
		return name
	}
	sorted := append([]string{}, paramNames...)
	sort.Strings(sorted)
	return name + "(" + strings.Join(sorted, ",") + ")"
}

// bind validates one expression and resolves its root references against
// the scope stack.
func (b *builder) bind(tplName, src string, at span.Pos, tagSpan span.Span, sc *scope) (hcl.Expression, []string, []string, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil, nil, &BindingError{
			Template: tplName,
			Span:     tagSpan,
			Detail:   "empty expression",
		}
	}
	bound, err := b.validator.Validate(src, tplName, at)
	if err != nil {
		if checkErr, ok := err.(*exprcheck.Error); ok {
			return nil, nil, nil, &BindingError{
				Template: tplName,
				Span:     checkErr.Span,
				Detail:   checkErr.Detail,
				Err:      err,
			}
		}
		return nil, nil, nil, &BindingError{
			Template: tplName,
			Span:     span.New(at, at.AdvanceString(src)),
			Detail:   err.Error(),
			Err:      err,
		}
	}

	refs := exprcheck.RootNames(bound)
	var locals []string
	for _, name := range refs {
		if sc.bound(name) {
			locals = append(locals, name)
		}
	}
	return bound, refs, locals, nil
}
