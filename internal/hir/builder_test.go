package hir

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stampgo/internal/exprcheck"
	"github.com/vk/stampgo/internal/lexer"
	"github.com/vk/stampgo/internal/parser"
	"github.com/vk/stampgo/internal/resolver"
	"github.com/vk/stampgo/internal/template"
)

func build(t *testing.T, src string, mode template.Mode, partials map[string]string) *Unit {
	t.Helper()
	unit, err := tryBuild(src, mode, partials)
	require.NoError(t, err)
	return unit
}

func tryBuild(src string, mode template.Mode, partials map[string]string) (*Unit, error) {
	ctx := context.Background()
	tpl := template.New("test.hbs", src, mode)
	tokens, err := lexer.Scan(tpl)
	if err != nil {
		return nil, err
	}
	root, err := parser.Parse(tpl, tokens)
	if err != nil {
		return nil, err
	}
	table, err := resolver.New(resolver.MapLoader(partials)).Resolve(ctx, root)
	if err != nil {
		return nil, err
	}
	return Build(ctx, root, table, exprcheck.New())
}

func litText(t *testing.T, n Node) string {
	t.Helper()
	lit, ok := n.(*LitRun)
	require.True(t, ok, "expected LitRun, got %T", n)
	return lit.Text
}

func TestBuild_MergesLiteralsAcrossComments(t *testing.T) {
	t.Parallel()

	unit := build(t, "a{{! gone }}b{{!-- also gone --}}c", template.ModeText, nil)

	require.Len(t, unit.Nodes, 1)
	assert.Equal(t, "abc", litText(t, unit.Nodes[0]))
}

func TestBuild_NoAdjacentLitRuns(t *testing.T) {
	t.Parallel()

	unit := build(t, "a{{{{raw}}}}b{{{{/raw}}}}c{{! x }}d", template.ModeText, nil)

	require.Len(t, unit.Nodes, 1)
	assert.Equal(t, "abcd", litText(t, unit.Nodes[0]))
}

func TestBuild_EscapeModes(t *testing.T) {
	t.Parallel()

	t.Run("markup mode escapes plain expressions only", func(t *testing.T) {
		unit := build(t, "{{a}}{{{b}}}", template.ModeMarkup, nil)
		require.Len(t, unit.Nodes, 2)
		assert.Equal(t, EscapeMarkup, unit.Nodes[0].(*Expr).Escape)
		assert.Equal(t, EscapeNone, unit.Nodes[1].(*Expr).Escape)
	})

	t.Run("text mode never escapes", func(t *testing.T) {
		unit := build(t, "{{a}}{{{b}}}", template.ModeText, nil)
		assert.Equal(t, EscapeNone, unit.Nodes[0].(*Expr).Escape)
		assert.Equal(t, EscapeNone, unit.Nodes[1].(*Expr).Escape)
	})
}

func TestBuild_TrimBefore(t *testing.T) {
	t.Parallel()

	// Spaces and tabs go first, then at most one newline, then trimming
	// stops.
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"spaces only", "a  \t{{~x}}", "a"},
		{"one newline after spaces", "a  \n  {{~x}}", "a  "},
		{"second newline survives", "a\n\n{{~x}}", "a\n"},
		{"crlf counts as one newline", "a\r\n{{~x}}", "a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unit := build(t, tc.src, template.ModeText, nil)
			require.Len(t, unit.Nodes, 2)
			assert.Equal(t, tc.want, litText(t, unit.Nodes[0]))
		})
	}
}

func TestBuild_TrimAfter(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{x~}}  \n  next", template.ModeText, nil)

	require.Len(t, unit.Nodes, 2)
	assert.Equal(t, "  next", litText(t, unit.Nodes[1]))
}

func TestBuild_TrimSeesUnmergedEdges(t *testing.T) {
	t.Parallel()

	// The comment splits the text into two segments that merge into one
	// run. The trim marker may only eat the final unmerged segment, so the
	// newline that belongs to the first segment stays.
	unit := build(t, "a \n{{! gap }}  {{~x}}", template.ModeText, nil)

	require.Len(t, unit.Nodes, 2)
	assert.Equal(t, "a \n", litText(t, unit.Nodes[0]))
}

func TestBuild_TrimRemovingWholeLiteral(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{a}}  {{~b}}", template.ModeText, nil)

	require.Len(t, unit.Nodes, 2)
	_, ok := unit.Nodes[0].(*Expr)
	assert.True(t, ok)
	_, ok = unit.Nodes[1].(*Expr)
	assert.True(t, ok)
}

func TestBuild_RawBlockImmuneToTrims(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{{{raw}}}}  keep  {{{{/raw}}}}{{~x~}}  after", template.ModeText, nil)

	require.Len(t, unit.Nodes, 3)
	assert.Equal(t, "  keep  ", litText(t, unit.Nodes[0]))
	assert.Equal(t, "after", litText(t, unit.Nodes[2]))
}

func TestBuild_BlockInnerTrims(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{#if x~}}\n  body\n{{~/if}}", template.ModeText, nil)

	require.Len(t, unit.Nodes, 1)
	cond := unit.Nodes[0].(*If)
	require.Len(t, cond.Then, 1)
	assert.Equal(t, "  body", litText(t, cond.Then[0]))
}

func TestBuild_ElseTrims(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{#if x}}yes \n{{~else~}}\n no{{/if}}", template.ModeText, nil)

	cond := unit.Nodes[0].(*If)
	require.Len(t, cond.Then, 1)
	assert.Equal(t, "yes ", litText(t, cond.Then[0]))
	require.Len(t, cond.Else, 1)
	assert.Equal(t, " no", litText(t, cond.Else[0]))
}

func TestBuild_ElseIfLowersToNestedIf(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{#if a}}1{{else if b}}2{{else}}3{{/if}}", template.ModeText, nil)

	require.Len(t, unit.Nodes, 1)
	outer := unit.Nodes[0].(*If)
	assert.Equal(t, "a", outer.CondSrc)
	require.Len(t, outer.Then, 1)
	assert.Equal(t, "1", litText(t, outer.Then[0]))

	require.Len(t, outer.Else, 1)
	inner := outer.Else[0].(*If)
	assert.Equal(t, "b", inner.CondSrc)
	require.Len(t, inner.Then, 1)
	assert.Equal(t, "2", litText(t, inner.Then[0]))
	require.Len(t, inner.Else, 1)
	assert.Equal(t, "3", litText(t, inner.Else[0]))
}

func TestBuild_ElseIfTrims(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{#if a}}1 \n{{~else if b~}}\n 2{{/if}}", template.ModeText, nil)

	outer := unit.Nodes[0].(*If)
	require.Len(t, outer.Then, 1)
	assert.Equal(t, "1 ", litText(t, outer.Then[0]))
	inner := outer.Else[0].(*If)
	require.Len(t, inner.Then, 1)
	assert.Equal(t, " 2", litText(t, inner.Then[0]))
}

func TestBuild_EmptyRawBlockDoesNotShieldTrims(t *testing.T) {
	t.Parallel()

	unit := build(t, "a  {{{{raw}}}}{{{{/raw}}}}{{~x}}", template.ModeText, nil)

	require.Len(t, unit.Nodes, 2)
	assert.Equal(t, "a", litText(t, unit.Nodes[0]))
}

func TestBuild_UnlessSwapsBranches(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{#unless ok}}a{{else}}b{{/unless}}", template.ModeText, nil)

	cond := unit.Nodes[0].(*If)
	assert.Equal(t, "ok", cond.CondSrc)
	require.Len(t, cond.Then, 1)
	assert.Equal(t, "b", litText(t, cond.Then[0]))
	require.Len(t, cond.Else, 1)
	assert.Equal(t, "a", litText(t, cond.Else[0]))
}

func TestBuild_EachScope(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{#each items}}{{this}}{{index}}{{name}}{{/each}}", template.ModeText, nil)

	each := unit.Nodes[0].(*Each)
	assert.Equal(t, "this", each.ItemVar)
	assert.Equal(t, "index", each.IndexVar)
	require.Len(t, each.Body, 3)
	assert.Equal(t, []string{"this"}, each.Body[0].(*Expr).Locals)
	assert.Equal(t, []string{"index"}, each.Body[1].(*Expr).Locals)
	assert.Empty(t, each.Body[2].(*Expr).Locals)
}

func TestBuild_NestedEachShadowsInnermost(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{#each rows}}{{#each this}}{{this}}{{/each}}{{/each}}", template.ModeText, nil)

	outer := unit.Nodes[0].(*Each)
	inner := outer.Body[0].(*Each)
	// Both the inner iterable and the inner body's "this" resolve to a
	// local binding; the innermost scope wins at render time.
	assert.Equal(t, []string{"this"}, inner.Body[0].(*Expr).Locals)
}

func TestBuild_EachElseOutsideIterationScope(t *testing.T) {
	t.Parallel()

	unit := build(t, "{{#each items}}x{{else}}{{this}}{{/each}}", template.ModeText, nil)

	each := unit.Nodes[0].(*Each)
	require.Len(t, each.Else, 1)
	// "this" in the empty branch is not bound by the loop.
	assert.Empty(t, each.Else[0].(*Expr).Locals)
}

func TestBuild_PartialBodyScopeIsParamsAndTopLevel(t *testing.T) {
	t.Parallel()

	partials := map[string]string{"card": "{{title}}{{site}}"}
	unit := build(t, "{{#each items}}{{> card title=this}}{{/each}}", template.ModeText, partials)

	each := unit.Nodes[0].(*Each)
	p := each.Body[0].(*Partial)
	require.Len(t, p.Body, 2)
	// Inside the partial body only the parameter is local; "site" falls
	// through to top-level data even though the call site sits in a loop.
	assert.Equal(t, []string{"title"}, p.Body[0].(*Expr).Locals)
	assert.Empty(t, p.Body[1].(*Expr).Locals)
}

func TestBuild_PartialBodiesShared(t *testing.T) {
	t.Parallel()

	partials := map[string]string{"card": "{{title}}"}
	unit := build(t, "{{> card title=a}}{{> card title=b}}", template.ModeText, partials)

	first := unit.Nodes[0].(*Partial)
	second := unit.Nodes[1].(*Partial)
	assert.Equal(t, first.Key, second.Key)
	// Same memo key means one shared lowered body.
	require.Len(t, first.Body, 1)
	assert.Same(t, first.Body[0], second.Body[0])
	require.Len(t, unit.Partials, 1)
}

func TestBuild_PartialKeyIncludesParamSet(t *testing.T) {
	t.Parallel()

	partials := map[string]string{"card": "{{title}}"}
	unit := build(t, "{{> card}}{{> card title=a}}", template.ModeText, partials)

	plain := unit.Nodes[0].(*Partial)
	withParam := unit.Nodes[1].(*Partial)
	assert.NotEqual(t, plain.Key, withParam.Key)
	require.Len(t, unit.Partials, 2)
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		src    string
		detail string
	}{
		{"unknown helper", "{{#with x}}{{/with}}", "unknown helper"},
		{"missing block argument", "{{#if}}x{{/if}}", "requires an argument"},
		{"empty expression", "{{ }}", "empty expression"},
		{"invalid expression", "{{a +}}", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tryBuild(tc.src, template.ModeText, nil)
			require.Error(t, err)

			var bindErr *BindingError
			require.True(t, errors.As(err, &bindErr))
			assert.Equal(t, "test.hbs", bindErr.Template)
			if tc.detail != "" {
				assert.Contains(t, bindErr.Detail, tc.detail)
			}
		})
	}
}

func TestBuild_InvalidExpressionInsidePartialNamesPartial(t *testing.T) {
	t.Parallel()

	partials := map[string]string{"bad": "{{x +}}"}
	_, err := tryBuild("{{> bad}}", template.ModeText, partials)
	require.Error(t, err)

	var bindErr *BindingError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, "bad", bindErr.Template)
}
