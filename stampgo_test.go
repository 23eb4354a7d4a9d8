package stampgo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stampgo/runtime"
	"github.com/vk/stampgo/runtime/view"
)

func TestCompile_InlineSource(t *testing.T) {
	t.Parallel()

	program, err := Compile(context.Background(), Config{Source: "Hi {{who}}"})
	require.NoError(t, err)
	assert.Equal(t, "inline", program.Name())

	var b strings.Builder
	require.NoError(t, program.Render(&b, runtime.Vars{"who": cty.StringVal("there")}))
	assert.Equal(t, "Hi there", b.String())
}

func TestCompile_FromPathInfersModeAndPartials(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"),
		[]byte("{{> nav}}<p>{{x}}</p>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nav.html"),
		[]byte("<nav/>"), 0644))

	program, err := Compile(context.Background(), Config{
		Path: filepath.Join(dir, "page.html"),
		Ext:  ".html",
	})
	require.NoError(t, err)
	assert.Equal(t, "page.html", program.Name())

	var b strings.Builder
	require.NoError(t, program.Render(&b, runtime.Vars{"x": cty.StringVal("<i>")}))
	assert.Equal(t, "<nav/><p>&lt;i&gt;</p>", b.String())
}

func TestCompile_ModeOverride(t *testing.T) {
	t.Parallel()

	program, err := Compile(context.Background(), Config{Source: "{{x}}", Mode: "markup"})
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, program.Render(&b, runtime.Vars{"x": cty.StringVal("<i>")}))
	assert.Equal(t, "&lt;i&gt;", b.String())
}

func TestCompile_ConfigErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("source and path are exclusive", func(t *testing.T) {
		_, err := Compile(ctx, Config{Source: "x", Path: "y"})
		require.Error(t, err)
	})

	t.Run("one of source or path is required", func(t *testing.T) {
		_, err := Compile(ctx, Config{})
		require.Error(t, err)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := Compile(ctx, Config{Source: "x", Mode: "loud"})
		require.Error(t, err)
	})

	t.Run("partials unavailable for inline source", func(t *testing.T) {
		_, err := Compile(ctx, Config{Source: "{{> head}}"})
		require.Error(t, err)
	})
}

func TestCompileView(t *testing.T) {
	t.Parallel()

	program, err := CompileView(context.Background(), Config{
		Source: "<b>{{x}}</b>",
		Mode:   "markup",
	})
	require.NoError(t, err)

	tree, err := program.Mount(runtime.Vars{"x": cty.StringVal("1")})
	require.NoError(t, err)
	assert.Equal(t, "<b>1</b>", view.Serialize(tree))

	next, patches, err := program.Update(tree, runtime.Vars{"x": cty.StringVal("2")})
	require.NoError(t, err)
	assert.Equal(t, "<b>2</b>", view.Serialize(next))
	require.Len(t, patches, 1)
	assert.Equal(t, view.OpSetText, patches[0].Op)
}

func TestCompileView_TextModeRejected(t *testing.T) {
	t.Parallel()

	_, err := CompileView(context.Background(), Config{Source: "{{x}}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markup")
}
