package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stampgo/internal/compiler"
	"github.com/vk/stampgo/internal/resolver"
	"github.com/vk/stampgo/internal/template"
	"github.com/vk/stampgo/runtime"
	"github.com/vk/stampgo/runtime/view"
)

// MustCompile compiles an in-memory template with the buffer backend and
// fails the test on any pipeline error.
func MustCompile(t *testing.T, source string, mode template.Mode, partials map[string]string) *runtime.Program {
	t.Helper()

	tpl := template.New("test.hbs", source, mode)
	res, err := compiler.Compile(context.Background(), tpl, compiler.Options{
		Backend: compiler.BackendBuffer,
		Loader:  resolver.MapLoader(partials),
	})
	require.NoError(t, err)
	return res.Program
}

// MustCompileView compiles an in-memory markup template with the view
// backend and fails the test on any pipeline error.
func MustCompileView(t *testing.T, source string, partials map[string]string) *view.Program {
	t.Helper()

	tpl := template.New("test.hbs", source, template.ModeMarkup)
	res, err := compiler.Compile(context.Background(), tpl, compiler.Options{
		Backend: compiler.BackendView,
		Loader:  resolver.MapLoader(partials),
	})
	require.NoError(t, err)
	return res.ViewProgram
}

// Render runs a compiled program against the given values and returns the
// produced text.
func Render(t *testing.T, program *runtime.Program, vars runtime.Vars) string {
	t.Helper()

	var buf SafeBuffer
	err := program.Render(&buf, vars)
	require.NoError(t, err)
	return buf.String()
}

// Vals is shorthand for building a value set from native Go strings.
func Vals(pairs map[string]string) runtime.Vars {
	vars := make(runtime.Vars, len(pairs))
	for k, v := range pairs {
		vars[k] = cty.StringVal(v)
	}
	return vars
}
