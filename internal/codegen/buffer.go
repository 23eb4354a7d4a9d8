package codegen

import (
	"context"
	"fmt"
	"io"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stampgo/internal/ctxlog"
	"github.com/vk/stampgo/internal/escape"
	"github.com/vk/stampgo/internal/hir"
	"github.com/vk/stampgo/runtime"
)

// Buffer is the buffered-text backend: it compiles HIR into rendering
// logic that writes straight into an output sink in document order.
type Buffer struct{}

// NewBuffer creates the buffer backend.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Name identifies the backend in configuration and diagnostics.
func (*Buffer) Name() string { return "buffer" }

// Generate compiles the unit into an executable program. Each distinct
// partial compiles once; references compose by call, never by copy.
func (b *Buffer) Generate(ctx context.Context, unit *hir.Unit) (*runtime.Program, error) {
	g := &bufferGen{unit: unit, partials: make(map[string]runtime.RenderFunc)}
	root, err := g.compileSeq(unit.Nodes)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Buffer backend generation complete.",
		"template", unit.Template.Name, "partials", len(g.partials))
	return runtime.NewProgram(unit.Template.Name, root), nil
}

type bufferGen struct {
	unit     *hir.Unit
	partials map[string]runtime.RenderFunc
}

// compileSeq compiles a body into one step that runs its children in
// document order.
func (g *bufferGen) compileSeq(nodes []hir.Node) (runtime.RenderFunc, error) {
	steps := make([]runtime.RenderFunc, 0, len(nodes))
	for _, n := range nodes {
		step, err := g.compileNode(n)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return func(w io.Writer, ec *runtime.Scope) error {
		for _, step := range steps {
			if err := step(w, ec); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (g *bufferGen) compileNode(n hir.Node) (runtime.RenderFunc, error) {
	switch node := n.(type) {
	case *hir.LitRun:
		text := node.Text
		return func(w io.Writer, _ *runtime.Scope) error {
			_, err := io.WriteString(w, text)
			return err
		}, nil

	case *hir.Expr:
		expr := node.Bound
		escaped := node.Escape == hir.EscapeMarkup
		at := loc(g.unit.Template.Name, node.At)
		return func(w io.Writer, ec *runtime.Scope) error {
			v, err := runtime.Eval(expr, ec)
			if err != nil {
				return fmt.Errorf("%s: %w", at, err)
			}
			s, err := runtime.Format(v)
			if err != nil {
				return fmt.Errorf("%s: %w", at, err)
			}
			if escaped {
				_, err = escape.WriteMarkup(w, s)
			} else {
				_, err = io.WriteString(w, s)
			}
			return err
		}, nil

	case *hir.If:
		return g.compileIf(node)

	case *hir.Each:
		return g.compileEach(node)

	case *hir.Partial:
		return g.compilePartial(node)

	default:
		return nil, &Error{
			Template: g.unit.Template.Name,
			Backend:  "buffer",
			Span:     n.Span(),
			Detail:   fmt.Sprintf("unsupported node %T", n),
		}
	}
}

func (g *bufferGen) compileIf(node *hir.If) (runtime.RenderFunc, error) {
	cond := node.Cond
	at := loc(g.unit.Template.Name, node.At)
	thenStep, err := g.compileSeq(node.Then)
	if err != nil {
		return nil, err
	}
	elseStep, err := g.compileSeq(node.Else)
	if err != nil {
		return nil, err
	}
	return func(w io.Writer, ec *runtime.Scope) error {
		v, err := runtime.Eval(cond, ec)
		if err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if runtime.Truthy(v) {
			return thenStep(w, ec)
		}
		return elseStep(w, ec)
	}, nil
}

func (g *bufferGen) compileEach(node *hir.Each) (runtime.RenderFunc, error) {
	iter := node.Iterable
	itemVar, indexVar := node.ItemVar, node.IndexVar
	at := loc(g.unit.Template.Name, node.At)
	bodyStep, err := g.compileSeq(node.Body)
	if err != nil {
		return nil, err
	}
	emptyStep, err := g.compileSeq(node.Else)
	if err != nil {
		return nil, err
	}
	return func(w io.Writer, ec *runtime.Scope) error {
		v, err := runtime.Eval(iter, ec)
		if err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		items, err := runtime.Elements(v)
		if err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if len(items) == 0 {
			return emptyStep(w, ec)
		}
		for i, item := range items {
			child := runtime.ChildContext(ec, map[string]cty.Value{
				itemVar:  item,
				indexVar: cty.NumberIntVal(int64(i)),
			})
			if err := bodyStep(w, child); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (g *bufferGen) compilePartial(node *hir.Partial) (runtime.RenderFunc, error) {
	bodyStep, err := g.compiledPartial(node.Key, node.Body)
	if err != nil {
		return nil, err
	}
	params := node.Params
	at := loc(g.unit.Template.Name, node.At)
	return func(w io.Writer, ec *runtime.Scope) error {
		bindings := make(map[string]cty.Value, len(params))
		for _, p := range params {
			v, err := runtime.Eval(p.Expr, ec)
			if err != nil {
				return fmt.Errorf("%s: parameter %s: %w", at, p.Name, err)
			}
			bindings[p.Name] = v
		}
		// A partial body sees its parameters plus top-level data only.
		pec := runtime.ChildContext(runtime.RootContext(ec), bindings)
		return bodyStep(w, pec)
	}, nil
}

// compiledPartial compiles a partial body exactly once per memo key.
// Bodies form a DAG, so on-demand compilation terminates.
func (g *bufferGen) compiledPartial(key string, body []hir.Node) (runtime.RenderFunc, error) {
	if step, ok := g.partials[key]; ok {
		return step, nil
	}
	step, err := g.compileSeq(body)
	if err != nil {
		return nil, err
	}
	g.partials[key] = step
	return step, nil
}
