// Package runtime backs compiled template programs at render time. A
// Program carries pre-built rendering logic: no template parsing and no
// expression parsing happens here, only evaluation of already-bound
// expressions against the caller's values.
package runtime

import (
	"fmt"
	"io"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Vars is the set of top-level values a template renders with.
type Vars map[string]cty.Value

// Scope is an evaluation scope chain. Block bindings live in child
// scopes; lookups fall through to the parent, so shadowing resolves
// innermost-first.
type Scope = hcl.EvalContext

// RenderFunc is one compiled rendering step. Steps write output in
// document order and evaluate expressions against the given scope.
type RenderFunc func(w io.Writer, ec *Scope) error

// Program is the compiled form of one template for the buffer backend.
type Program struct {
	name   string
	render RenderFunc
}

// NewProgram wraps compiled rendering logic. Backends call this; hosts
// only ever call Render.
func NewProgram(name string, render RenderFunc) *Program {
	return &Program{name: name, render: render}
}

// Name reports the template the program was compiled from.
func (p *Program) Name() string { return p.name }

// Render writes the rendered template to w using the given top-level
// values. A failure leaves no guarantee about partial output in w; callers
// that need atomicity should render into a buffer.
func (p *Program) Render(w io.Writer, vars Vars) error {
	if err := p.render(w, NewEvalContext(vars)); err != nil {
		return fmt.Errorf("rendering %s: %w", p.name, err)
	}
	return nil
}

// NewEvalContext builds the root evaluation scope from top-level values.
func NewEvalContext(vars Vars) *Scope {
	variables := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		variables[k] = v
	}
	return &hcl.EvalContext{Variables: variables}
}

// ChildContext builds a block scope chained to parent.
func ChildContext(parent *Scope, bindings map[string]cty.Value) *Scope {
	child := parent.NewChild()
	child.Variables = bindings
	return child
}

// RootContext walks up to the top-level scope. Partials evaluate against
// their parameters plus top-level data, never the reference site's block
// scope.
func RootContext(ec *Scope) *Scope {
	for ec.Parent() != nil {
		ec = ec.Parent()
	}
	return ec
}

// Eval evaluates a bound expression in the given scope.
func Eval(expr hcl.Expression, ec *Scope) (cty.Value, error) {
	v, diags := expr.Value(ec)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluating expression: %s", diags.Error())
	}
	return v, nil
}

// Truthy reports whether a value selects the then-branch of a
// conditional. Null and unknown are false; bools are themselves; numbers
// are true unless zero; strings are true unless empty; collections are
// true unless empty.
func Truthy(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() {
		return false
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return v.True()
	case ty == cty.Number:
		return v.AsBigFloat().Sign() != 0
	case ty == cty.String:
		return v.AsString() != ""
	case ty.IsObjectType():
		return len(ty.AttributeTypes()) > 0
	case ty.IsListType() || ty.IsSetType() || ty.IsMapType() || ty.IsTupleType():
		return v.LengthInt() > 0
	default:
		return true
	}
}

// Format renders a value as output text. Conversion failures (null or
// unknown values, collections) are formatting failures surfaced to the
// host.
func Format(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", fmt.Errorf("cannot render a null value")
	}
	if !v.IsKnown() {
		return "", fmt.Errorf("cannot render an unknown value")
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("cannot render %s value as text: %w", v.Type().FriendlyName(), err)
	}
	return s.AsString(), nil
}

// Elements returns the items of an iterable value in iteration order.
// Lists, sets, and tuples yield their elements; maps and objects yield
// their values in key order. Anything else is a render failure.
func Elements(v cty.Value) ([]cty.Value, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("cannot iterate over an unknown value")
	}
	ty := v.Type()
	if ty.IsObjectType() {
		attrs := ty.AttributeTypes()
		names := make([]string, 0, len(attrs))
		for name := range attrs {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]cty.Value, 0, len(names))
		for _, name := range names {
			out = append(out, v.GetAttr(name))
		}
		return out, nil
	}
	if !(ty.IsListType() || ty.IsSetType() || ty.IsMapType() || ty.IsTupleType()) {
		return nil, fmt.Errorf("cannot iterate over %s value", ty.FriendlyName())
	}
	if v.LengthInt() == 0 {
		return nil, nil
	}
	out := make([]cty.Value, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, item := it.Element()
		out = append(out, item)
	}
	return out, nil
}
