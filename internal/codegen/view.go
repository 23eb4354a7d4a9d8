package codegen

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stampgo/internal/ctxlog"
	"github.com/vk/stampgo/internal/escape"
	"github.com/vk/stampgo/internal/hir"
	"github.com/vk/stampgo/internal/template"
	"github.com/vk/stampgo/runtime"
	"github.com/vk/stampgo/runtime/view"
)

// View is the incremental-patch backend: it compiles HIR into logic that
// builds a tree of identified view nodes instead of linear writes. It
// shares the buffer backend's HIR input and escaping rules; only what is
// emitted differs.
type View struct{}

// NewView creates the view backend.
func NewView() *View {
	return &View{}
}

// Name identifies the backend in configuration and diagnostics.
func (*View) Name() string { return "view" }

// Generate compiles the unit into a mountable view program. The view
// target patches markup documents, so text-mode templates and raw
// expressions are unsupported constructs.
func (v *View) Generate(ctx context.Context, unit *hir.Unit) (*view.Program, error) {
	if unit.Template.Mode != template.ModeMarkup {
		return nil, &Error{
			Template: unit.Template.Name,
			Backend:  "view",
			Detail:   "view backend requires markup render mode",
		}
	}

	g := &viewGen{
		unit:     unit,
		partials: make(map[string]buildFunc),
		statics:  make(map[string]*view.Node),
	}
	build, err := g.compileSeq(unit.Nodes)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("View backend generation complete.",
		"template", unit.Template.Name, "partials", len(g.partials))

	mount := func(ec *runtime.Scope) (*view.Tree, error) {
		roots, err := build(ec, "")
		if err != nil {
			return nil, err
		}
		return &view.Tree{Roots: roots}, nil
	}
	return view.NewProgram(unit.Template.Name, mount), nil
}

// buildFunc builds the view nodes of one body. The identity prefix is a
// runtime parameter because the same compiled body can appear under
// different structural positions (loop iterations, partial call sites).
type buildFunc func(ec *runtime.Scope, prefix string) ([]*view.Node, error)

type viewGen struct {
	unit     *hir.Unit
	partials map[string]buildFunc

	// statics holds the static text nodes, one per structural identity.
	// Sharing them by pointer across trees is what lets the differ skip
	// static content entirely after first mount.
	mu      sync.Mutex
	statics map[string]*view.Node
}

func (g *viewGen) staticNode(id, text string) *view.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.statics[id]; ok {
		return n
	}
	n := &view.Node{ID: id, Kind: view.KindText, Static: true, Text: text}
	g.statics[id] = n
	return n
}

func childID(prefix string, idx int) string {
	return prefix + "/" + strconv.Itoa(idx)
}

func (g *viewGen) compileSeq(nodes []hir.Node) (buildFunc, error) {
	type child struct {
		idx   int
		build func(ec *runtime.Scope, id string) ([]*view.Node, error)
	}
	children := make([]child, 0, len(nodes))
	for i, n := range nodes {
		fn, err := g.compileNode(n)
		if err != nil {
			return nil, err
		}
		children = append(children, child{idx: i, build: fn})
	}
	return func(ec *runtime.Scope, prefix string) ([]*view.Node, error) {
		out := make([]*view.Node, 0, len(children))
		for _, c := range children {
			nodes, err := c.build(ec, childID(prefix, c.idx))
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	}, nil
}

// compileNode compiles one HIR node into a builder for the nodes it
// contributes at its structural position.
func (g *viewGen) compileNode(n hir.Node) (func(ec *runtime.Scope, id string) ([]*view.Node, error), error) {
	switch node := n.(type) {
	case *hir.LitRun:
		text := node.Text
		return func(_ *runtime.Scope, id string) ([]*view.Node, error) {
			return []*view.Node{g.staticNode(id, text)}, nil
		}, nil

	case *hir.Expr:
		if node.Escape != hir.EscapeMarkup {
			return nil, &Error{
				Template: g.unit.Template.Name,
				Backend:  "view",
				Span:     node.At,
				Detail:   "raw expressions cannot be patched incrementally",
			}
		}
		expr := node.Bound
		at := loc(g.unit.Template.Name, node.At)
		return func(ec *runtime.Scope, id string) ([]*view.Node, error) {
			v, err := runtime.Eval(expr, ec)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", at, err)
			}
			s, err := runtime.Format(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", at, err)
			}
			return []*view.Node{{ID: id, Kind: view.KindText, Text: escape.Markup(s)}}, nil
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
			Backend:  "view",
			Span:     n.Span(),
			Detail:   fmt.Sprintf("unsupported node %T", n),
		}
	}
}

func (g *viewGen) compileIf(node *hir.If) (func(ec *runtime.Scope, id string) ([]*view.Node, error), error) {
	cond := node.Cond
	at := loc(g.unit.Template.Name, node.At)
	thenBuild, err := g.compileSeq(node.Then)
	if err != nil {
		return nil, err
	}
	elseBuild, err := g.compileSeq(node.Else)
	if err != nil {
		return nil, err
	}
	return func(ec *runtime.Scope, id string) ([]*view.Node, error) {
		v, err := runtime.Eval(cond, ec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		// Branch children live under distinct identity prefixes, so a
		// branch switch diffs as remove+insert rather than text churn.
		var children []*view.Node
		if runtime.Truthy(v) {
			children, err = thenBuild(ec, id+"/t")
		} else {
			children, err = elseBuild(ec, id+"/e")
		}
		if err != nil {
			return nil, err
		}
		return []*view.Node{{ID: id, Kind: view.KindGroup, Children: children}}, nil
	}, nil
}

func (g *viewGen) compileEach(node *hir.Each) (func(ec *runtime.Scope, id string) ([]*view.Node, error), error) {
	iter := node.Iterable
	itemVar, indexVar := node.ItemVar, node.IndexVar
	at := loc(g.unit.Template.Name, node.At)
	bodyBuild, err := g.compileSeq(node.Body)
	if err != nil {
		return nil, err
	}
	emptyBuild, err := g.compileSeq(node.Else)
	if err != nil {
		return nil, err
	}
	return func(ec *runtime.Scope, id string) ([]*view.Node, error) {
		v, err := runtime.Eval(iter, ec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		items, err := runtime.Elements(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		if len(items) == 0 {
			children, err := emptyBuild(ec, id+"/e")
			if err != nil {
				return nil, err
			}
			return []*view.Node{{ID: id, Kind: view.KindGroup, Children: children}}, nil
		}
		children := make([]*view.Node, 0, len(items))
		for i, item := range items {
			child := runtime.ChildContext(ec, map[string]cty.Value{
				itemVar:  item,
				indexVar: cty.NumberIntVal(int64(i)),
			})
			iterID := fmt.Sprintf("%s[%d]", id, i)
			iterNodes, err := bodyBuild(child, iterID)
			if err != nil {
				return nil, err
			}
			children = append(children, &view.Node{ID: iterID, Kind: view.KindGroup, Children: iterNodes})
		}
		return []*view.Node{{ID: id, Kind: view.KindGroup, Children: children}}, nil
	}, nil
}

func (g *viewGen) compilePartial(node *hir.Partial) (func(ec *runtime.Scope, id string) ([]*view.Node, error), error) {
	bodyBuild, err := g.compiledPartial(node.Key, node.Body)
	if err != nil {
		return nil, err
	}
	params := node.Params
	at := loc(g.unit.Template.Name, node.At)
	return func(ec *runtime.Scope, id string) ([]*view.Node, error) {
		bindings := make(map[string]cty.Value, len(params))
		for _, p := range params {
			v, err := runtime.Eval(p.Expr, ec)
			if err != nil {
				return nil, fmt.Errorf("%s: parameter %s: %w", at, p.Name, err)
			}
			bindings[p.Name] = v
		}
		pec := runtime.ChildContext(runtime.RootContext(ec), bindings)
		children, err := bodyBuild(pec, id)
		if err != nil {
			return nil, err
		}
		return []*view.Node{{ID: id, Kind: view.KindGroup, Children: children}}, nil
	}, nil
}

func (g *viewGen) compiledPartial(key string, body []hir.Node) (buildFunc, error) {
	if fn, ok := g.partials[key]; ok {
		return fn, nil
	}
	fn, err := g.compileSeq(body)
	if err != nil {
		return nil, err
	}
	g.partials[key] = fn
	return fn, nil
}
