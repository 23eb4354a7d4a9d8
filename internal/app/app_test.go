package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stampgo/internal/app"
	"github.com/vk/stampgo/internal/testutil"
)

func TestRun_CompileOnly(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/a.hbs":        "Hello {{name}}",
		"templates/sub/b.hbs":    "{{#if x}}y{{/if}}",
		"templates/ignored.txt":  "{{not scanned}}",
		"templates/sub/note.txt": "also skipped",
	}

	result := testutil.RunAppTest(t, files, nil)

	require.NoError(t, result.Err)
	assert.Empty(t, result.Output)
	assert.Contains(t, result.LogOutput, "Template discovery complete.")
	assert.Contains(t, result.LogOutput, "count=2")
}

func TestRun_RendersWithData(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/greet.hbs": "Hello, {{name}}!",
		"data.hcl":            `name = "world"`,
	}

	result := testutil.RunAppTest(t, files, func(dir string, cfg *app.Config) {
		cfg.DataPath = filepath.Join(dir, "data.hcl")
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "Hello, world!", result.Output)
}

func TestRun_WritesToOutDir(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/index.html.hbs": "<p>{{msg}}</p>",
		"data.hcl":                 `msg = "<hi>"`,
	}

	var outDir string
	result := testutil.RunAppTest(t, files, func(dir string, cfg *app.Config) {
		outDir = filepath.Join(dir, "out")
		cfg.DataPath = filepath.Join(dir, "data.hcl")
		cfg.OutDir = outDir
	})

	require.NoError(t, result.Err)
	// The template extension is stripped from the output name, and the
	// .html hint put the unit in markup mode.
	data, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>&lt;hi&gt;</p>", string(data))
}

func TestRun_PartialsDir(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/a.hbs":  "[{{> sig}}]",
		"templates/b.hbs":  "({{> sig}})",
		"partials/sig.hbs": "-sig-",
		"data.hcl":         `unused = 1`,
	}

	result := testutil.RunAppTest(t, files, func(dir string, cfg *app.Config) {
		cfg.PartialsDir = filepath.Join(dir, "partials")
		cfg.DataPath = filepath.Join(dir, "data.hcl")
		cfg.WorkerCount = 1
	})

	require.NoError(t, result.Err)
	assert.Contains(t, result.Output, "[-sig-]")
	assert.Contains(t, result.Output, "(-sig-)")
}

func TestRun_FailuresAreIsolatedPerUnit(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/good.hbs":   "fine",
		"templates/broken.hbs": "{{#if x}}never closed",
	}

	result := testutil.RunAppTest(t, files, nil)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "1 of 2 template units failed")
	assert.Contains(t, result.LogOutput, "Template unit failed.")
	assert.Contains(t, result.LogOutput, "broken.hbs")
}

func TestRun_NoTemplatesFound(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/readme.md": "nothing compilable here",
	}

	result := testutil.RunAppTest(t, files, nil)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "no .hbs templates found")
}

func TestRun_SingleFilePath(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/only.hbs": "solo {{x}}",
		"data.hcl":           `x = "run"`,
	}

	result := testutil.RunAppTest(t, files, func(dir string, cfg *app.Config) {
		cfg.TemplatesPath = filepath.Join(dir, "templates", "only.hbs")
		cfg.DataPath = filepath.Join(dir, "data.hcl")
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "solo run", result.Output)
}

func TestRun_ModeOverride(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/t.hbs": "{{x}}",
		"data.hcl":        `x = "<b>"`,
	}

	result := testutil.RunAppTest(t, files, func(dir string, cfg *app.Config) {
		cfg.Mode = "markup"
		cfg.DataPath = filepath.Join(dir, "data.hcl")
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "&lt;b&gt;", result.Output)
}

func TestRun_BadDataFile(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"templates/t.hbs": "x",
		"data.hcl":        `this is not valid hcl {{{`,
	}

	result := testutil.RunAppTest(t, files, func(dir string, cfg *app.Config) {
		cfg.DataPath = filepath.Join(dir, "data.hcl")
	})

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "data file")
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	t.Run("requires a templates path", func(t *testing.T) {
		_, err := app.NewConfig(app.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TemplatesPath")
	})

	t.Run("applies defaults", func(t *testing.T) {
		cfg, err := app.NewConfig(app.Config{TemplatesPath: "x"})
		require.NoError(t, err)
		assert.Equal(t, ".hbs", cfg.Ext)
		assert.Equal(t, "auto", cfg.Mode)
		assert.Equal(t, "buffer", cfg.Backend)
		assert.Equal(t, "none", cfg.Print)
		assert.Equal(t, 4, cfg.WorkerCount)
	})

	t.Run("rejects invalid enums", func(t *testing.T) {
		_, err := app.NewConfig(app.Config{TemplatesPath: "x", Mode: "loud"})
		require.Error(t, err)
		_, err = app.NewConfig(app.Config{TemplatesPath: "x", Backend: "quantum"})
		require.Error(t, err)
		_, err = app.NewConfig(app.Config{TemplatesPath: "x", Print: "everything"})
		require.Error(t, err)
	})
}
